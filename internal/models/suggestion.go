package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ConfidenceLevel is the action tier a match suggestion falls into
type ConfidenceLevel string

const (
	// ConfidenceHigh marks a pair eligible for automatic approval
	ConfidenceHigh ConfidenceLevel = "high"
	// ConfidenceMedium marks a pair surfaced for human confirmation
	ConfidenceMedium ConfidenceLevel = "medium"
	// ConfidenceLow marks a pair that is not surfaced
	ConfidenceLow ConfidenceLevel = "low"
)

// String returns the string representation of ConfidenceLevel
func (l ConfidenceLevel) String() string {
	return string(l)
}

// MatchSuggestion pairs one transaction with one receipt together with the
// computed confidence. It is never persisted by this module.
type MatchSuggestion struct {
	Transaction     *Transaction    `json:"transaction"`
	Receipt         *Receipt        `json:"receipt"`
	ConfidenceScore int             `json:"confidence_score"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	MatchReasons    []string        `json:"match_reasons"`

	DateScore     float64 `json:"date_score"`
	AmountScore   float64 `json:"amount_score"`
	MerchantScore float64 `json:"merchant_score"`

	// DateDifferenceDays is nil when the receipt has no date
	DateDifferenceDays *int `json:"date_difference_days,omitempty"`
	// AmountDifference is nil when the receipt has no amount
	AmountDifference *decimal.Decimal `json:"amount_difference,omitempty"`
}

// String returns a short human-readable description of the suggestion
func (s *MatchSuggestion) String() string {
	return fmt.Sprintf("MatchSuggestion{Transaction: %s, Receipt: %s, Confidence: %d (%s)}",
		s.Transaction.ID, s.Receipt.ID, s.ConfidenceScore, s.ConfidenceLevel)
}

// ReconciliationStatus is the terminal state of a persisted reconciliation match
type ReconciliationStatus string

const (
	ReconciliationSuggested ReconciliationStatus = "suggested"
	ReconciliationApproved  ReconciliationStatus = "approved"
	ReconciliationRejected  ReconciliationStatus = "rejected"
)
