// Package models defines the records exchanged between the data-access layer
// and the reconciliation scorer: bank transactions, receipts, match
// suggestions and subscription tier data.
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date layout used for transaction and receipt dates.
const DateLayout = "2006-01-02"

// TransactionStatus represents the reconciliation lifecycle of a transaction
type TransactionStatus string

const (
	TransactionUnreconciled TransactionStatus = "unreconciled"
	TransactionMatched      TransactionStatus = "matched"
	TransactionApproved     TransactionStatus = "approved"
	TransactionRejected     TransactionStatus = "rejected"
)

// IsValid checks if the transaction status is one of the known values
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionUnreconciled, TransactionMatched, TransactionApproved, TransactionRejected:
		return true
	default:
		return false
	}
}

// TransactionType is derived from the sign of the amount
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Transaction represents a bank transaction imported from a statement or feed
type Transaction struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	BankStatementID string            `json:"bank_statement_id,omitempty"`
	Date            time.Time         `json:"date"`
	Description     string            `json:"description"`
	Amount          decimal.Decimal   `json:"amount"`
	Category        *string           `json:"category,omitempty"`
	Status          TransactionStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Type returns income for non-negative amounts and expense otherwise
func (t *Transaction) Type() TransactionType {
	if t.Amount.IsNegative() {
		return TransactionTypeExpense
	}
	return TransactionTypeIncome
}

// Validate checks the transaction against the invariants the scorer relies on.
// now bounds the transaction date; only its calendar day is considered.
func (t *Transaction) Validate(now time.Time) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transaction ID cannot be empty")
	}

	if t.Date.IsZero() {
		return fmt.Errorf("transaction %s: date cannot be zero", t.ID)
	}

	if CalendarDate(t.Date).After(CalendarDate(now)) {
		return fmt.Errorf("transaction %s: date %s is in the future", t.ID, t.Date.Format(DateLayout))
	}

	if !t.Status.IsValid() {
		return fmt.Errorf("transaction %s: invalid status %q", t.ID, t.Status)
	}

	return nil
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, Amount: %s, Date: %s, Description: %q}",
		t.ID, t.Amount.StringFixed(2), t.Date.Format(DateLayout), t.Description)
}

// MarshalJSON renders the amount as a fixed two-decimal string and the date as a calendar date
func (t *Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	return json.Marshal(&struct {
		Amount string          `json:"amount"`
		Date   string          `json:"date"`
		Type   TransactionType `json:"type"`
		*Alias
	}{
		Amount: t.Amount.StringFixed(2),
		Date:   t.Date.Format(DateLayout),
		Type:   t.Type(),
		Alias:  (*Alias)(t),
	})
}

// ProcessingStatus is the OCR processing state of a receipt
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// IsValid checks if the processing status is one of the known values
func (s ProcessingStatus) IsValid() bool {
	switch s {
	case ProcessingPending, ProcessingInProgress, ProcessingCompleted, ProcessingFailed:
		return true
	default:
		return false
	}
}

// Receipt represents an uploaded receipt and the fields extracted from it by OCR.
// Extracted fields stay nil until processing completes.
type Receipt struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	FilePath         string           `json:"file_path"`
	Date             *time.Time       `json:"receipt_date,omitempty"`
	MerchantName     *string          `json:"merchant_name,omitempty"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	TaxAmount        *decimal.Decimal `json:"tax_amount,omitempty"`
	OCRData          json.RawMessage  `json:"ocr_data,omitempty"`
	OCRConfidence    *float64         `json:"ocr_confidence,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	FileSize         int64            `json:"file_size"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Validate checks the receipt fields that are present
func (r *Receipt) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("receipt ID cannot be empty")
	}

	if !r.ProcessingStatus.IsValid() {
		return fmt.Errorf("receipt %s: invalid processing status %q", r.ID, r.ProcessingStatus)
	}

	if r.OCRConfidence != nil {
		c := *r.OCRConfidence
		if math.IsNaN(c) || c < 0 || c > 1 {
			return fmt.Errorf("receipt %s: OCR confidence must be between 0 and 1, got %v", r.ID, c)
		}
	}

	if r.Date != nil && r.Date.IsZero() {
		return fmt.Errorf("receipt %s: receipt date is set but zero", r.ID)
	}

	if r.FileSize < 0 {
		return fmt.Errorf("receipt %s: file size cannot be negative", r.ID)
	}

	if len(r.OCRData) > 0 && !json.Valid(r.OCRData) {
		return fmt.Errorf("receipt %s: OCR data is not valid JSON", r.ID)
	}

	return nil
}

// Merchant returns the merchant name or an empty string
func (r *Receipt) Merchant() string {
	if r.MerchantName == nil {
		return ""
	}
	return *r.MerchantName
}

// String returns a string representation of the Receipt
func (r *Receipt) String() string {
	date, amount := "-", "-"
	if r.Date != nil {
		date = r.Date.Format(DateLayout)
	}
	if r.Amount != nil {
		amount = r.Amount.StringFixed(2)
	}
	return fmt.Sprintf("Receipt{ID: %s, Merchant: %q, Amount: %s, Date: %s}",
		r.ID, r.Merchant(), amount, date)
}

// CalendarDate strips the time of day, keeping the year, month and day as seen in t's location
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a calendar date in DateLayout
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", value, err)
	}
	return t, nil
}

// AmountFromFloat converts a float amount, rejecting NaN and infinities
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("amount must be a finite number, got %v", f)
	}
	return decimal.NewFromFloat(f), nil
}

// ParseAmount parses a decimal amount, tolerating a leading currency symbol and thousands separators
func ParseAmount(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(value)
	negative := false
	if strings.HasPrefix(cleaned, "-") {
		negative = true
		cleaned = strings.TrimPrefix(cleaned, "-")
	}
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}
