package parsers

import (
	"fmt"
	"strings"
	"time"

	"previa-reconciliation-service/internal/models"
)

// Logical field names shared by the parsers and their column aliases
const (
	FieldID               = "id"
	FieldUserID           = "user_id"
	FieldBankStatementID  = "bank_statement_id"
	FieldDate             = "date"
	FieldDescription      = "description"
	FieldAmount           = "amount"
	FieldCategory         = "category"
	FieldStatus           = "status"
	FieldCreatedAt        = "created_at"
	FieldFilePath         = "file_path"
	FieldMerchantName     = "merchant_name"
	FieldTaxAmount        = "tax_amount"
	FieldOCRData          = "ocr_data"
	FieldOCRConfidence    = "ocr_confidence"
	FieldProcessingStatus = "processing_status"
	FieldFileSize         = "file_size"
)

// DefaultDateFormats are tried in order when parsing dates
var DefaultDateFormats = []string{
	models.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"02/01/2006",
}

// TransactionParserConfig holds configuration for parsing transaction exports
type TransactionParserConfig struct {
	Delimiter     rune                `json:"delimiter"`
	DateFormats   []string            `json:"date_formats"`
	ColumnAliases map[string][]string `json:"column_aliases,omitempty"`

	// Now bounds transaction dates; defaults to time.Now
	Now func() time.Time `json:"-"`
}

// DefaultTransactionParserConfig returns a configuration matching the hosted database export
func DefaultTransactionParserConfig() *TransactionParserConfig {
	return &TransactionParserConfig{
		Delimiter:     ',',
		DateFormats:   DefaultDateFormats,
		ColumnAliases: make(map[string][]string),
		Now:           time.Now,
	}
}

// Validate checks if the transaction parser configuration is valid
func (c *TransactionParserConfig) Validate() error {
	return validateCommon(c.Delimiter, c.DateFormats)
}

func (c *TransactionParserConfig) columns() []Column {
	return withAliases([]Column{
		{Field: FieldID, Headers: []string{"id", "transaction_id", "trx_id"}, Required: true},
		{Field: FieldUserID, Headers: []string{"user_id"}},
		{Field: FieldBankStatementID, Headers: []string{"bank_statement_id", "statement_id"}},
		{Field: FieldDate, Headers: []string{"date", "transaction_date", "posted_date"}, Required: true},
		{Field: FieldDescription, Headers: []string{"description", "narrative", "details"}, Required: true},
		{Field: FieldAmount, Headers: []string{"amount", "transaction_amount"}, Required: true},
		{Field: FieldCategory, Headers: []string{"category"}},
		{Field: FieldStatus, Headers: []string{"status", "reconciliation_status"}},
		{Field: FieldCreatedAt, Headers: []string{"created_at"}},
	}, c.ColumnAliases)
}

// ReceiptParserConfig holds configuration for parsing receipt exports
type ReceiptParserConfig struct {
	Delimiter     rune                `json:"delimiter"`
	DateFormats   []string            `json:"date_formats"`
	ColumnAliases map[string][]string `json:"column_aliases,omitempty"`

	// DefaultStatus applies when the export has no processing status column
	DefaultStatus models.ProcessingStatus `json:"default_status"`
}

// DefaultReceiptParserConfig returns a configuration matching the hosted database export
func DefaultReceiptParserConfig() *ReceiptParserConfig {
	return &ReceiptParserConfig{
		Delimiter:     ',',
		DateFormats:   DefaultDateFormats,
		ColumnAliases: make(map[string][]string),
		DefaultStatus: models.ProcessingCompleted,
	}
}

// Validate checks if the receipt parser configuration is valid
func (c *ReceiptParserConfig) Validate() error {
	if err := validateCommon(c.Delimiter, c.DateFormats); err != nil {
		return err
	}
	if !c.DefaultStatus.IsValid() {
		return fmt.Errorf("invalid default processing status %q", c.DefaultStatus)
	}
	return nil
}

func (c *ReceiptParserConfig) columns() []Column {
	return withAliases([]Column{
		{Field: FieldID, Headers: []string{"id", "receipt_id"}, Required: true},
		{Field: FieldUserID, Headers: []string{"user_id"}},
		{Field: FieldFilePath, Headers: []string{"file_path", "file", "path"}},
		{Field: FieldDate, Headers: []string{"receipt_date", "date"}},
		{Field: FieldMerchantName, Headers: []string{"merchant_name", "merchant", "vendor", "store"}},
		{Field: FieldAmount, Headers: []string{"amount", "total", "total_amount"}},
		{Field: FieldTaxAmount, Headers: []string{"tax_amount", "gst", "tax"}},
		{Field: FieldOCRData, Headers: []string{"ocr_data"}},
		{Field: FieldOCRConfidence, Headers: []string{"ocr_confidence", "confidence"}},
		{Field: FieldProcessingStatus, Headers: []string{"processing_status", "status"}},
		{Field: FieldFileSize, Headers: []string{"file_size", "size"}},
		{Field: FieldCreatedAt, Headers: []string{"created_at", "uploaded_at"}},
	}, c.ColumnAliases)
}

func validateCommon(delimiter rune, dateFormats []string) error {
	if delimiter == 0 || delimiter == '"' || delimiter == '\n' || delimiter == '\r' {
		return fmt.Errorf("invalid delimiter %q", delimiter)
	}
	if len(dateFormats) == 0 {
		return fmt.Errorf("at least one date format is required")
	}
	for _, f := range dateFormats {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("date formats cannot be empty")
		}
	}
	return nil
}

// withAliases puts user supplied header names ahead of the built-in ones
func withAliases(columns []Column, aliases map[string][]string) []Column {
	for i, col := range columns {
		if extra, ok := aliases[col.Field]; ok {
			columns[i].Headers = append(append([]string{}, extra...), col.Headers...)
		}
	}
	return columns
}
