// Package matcher scores how well a bank transaction and a receipt describe
// the same purchase, and ranks receipt candidates for a transaction.
//
// A pair is scored on three independent signals, each normalised to [0,1]:
//   - Date proximity, with a hard cutoff at MaxDateDifferenceDays
//   - Amount proximity on absolute values, with a hard cutoff at MaxAmountDifference
//   - Merchant/description text similarity
//
// The weighted sum is scaled to an integer confidence in [0,100] and mapped to
// a level: high (auto-approvable), medium (suggested for review) or low.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	ranker, err := matcher.NewRanker(config)
//	if err != nil {
//		return err // invalid configuration
//	}
//	suggestions, err := ranker.RankCandidates(ctx, tx, receipts)
package matcher

import (
	"fmt"

	"previa-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// MatchingWeights defines the relative importance of each sub-score.
// The three weights must sum to exactly 1.0.
type MatchingWeights struct {
	Date     float64 `json:"date_weight" mapstructure:"date_weight"`
	Amount   float64 `json:"amount_weight" mapstructure:"amount_weight"`
	Merchant float64 `json:"merchant_weight" mapstructure:"merchant_weight"`
}

// Thresholds are fractions of the maximum confidence
type Thresholds struct {
	AutoApprove float64 `json:"auto_approve_threshold" mapstructure:"auto_approve_threshold"`
	Suggest     float64 `json:"suggest_threshold" mapstructure:"suggest_threshold"`
}

// OCRThresholds are the minimum OCR confidences at which extracted data is
// accepted without review. They are consumed by the OCR pipeline, not the scorer.
type OCRThresholds struct {
	AccountNumber float64 `json:"account_number_threshold" mapstructure:"account_number_threshold"`
	ReceiptData   float64 `json:"receipt_data_threshold" mapstructure:"receipt_data_threshold"`
}

// AcceptsReceiptData reports whether extracted receipt fields can be trusted
func (o OCRThresholds) AcceptsReceiptData(confidence float64) bool {
	return confidence >= o.ReceiptData
}

// AcceptsAccountNumber reports whether an extracted account number can be trusted
func (o OCRThresholds) AcceptsAccountNumber(confidence float64) bool {
	return confidence >= o.AccountNumber
}

// MatchingConfig holds every tunable of the scorer and ranker. Build one with
// a preset constructor, adjust it, and hand it to NewScorer or NewRanker, which
// validate and copy it; later changes to the original have no effect.
type MatchingConfig struct {
	Weights    MatchingWeights `json:"weights" mapstructure:"weights"`
	Thresholds Thresholds      `json:"thresholds" mapstructure:"thresholds"`

	// MaxDateDifferenceDays is the widest date gap, in calendar days, that still earns date credit
	MaxDateDifferenceDays int `json:"max_date_difference_days" mapstructure:"max_date_difference_days"`

	// MaxAmountDifference is the widest absolute amount gap, in currency units, that still earns amount credit
	MaxAmountDifference decimal.Decimal `json:"max_amount_difference" mapstructure:"-"`

	OCR OCRThresholds `json:"ocr" mapstructure:"ocr"`

	// MinReasonContribution is the weighted contribution (fraction of 1.0) a
	// sub-score needs before a match reason is reported for it
	MinReasonContribution float64 `json:"min_reason_contribution" mapstructure:"min_reason_contribution"`

	// Workers bounds how many pairs are scored concurrently
	Workers int `json:"workers" mapstructure:"workers"`
}

// DefaultMatchingConfig returns the production scoring configuration
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Weights: MatchingWeights{
			Date:     0.40,
			Amount:   0.40,
			Merchant: 0.20,
		},
		Thresholds: Thresholds{
			AutoApprove: 0.95,
			Suggest:     0.70,
		},
		MaxDateDifferenceDays: 3,
		MaxAmountDifference:   decimal.RequireFromString("0.50"),
		OCR: OCRThresholds{
			AccountNumber: 0.90,
			ReceiptData:   0.90,
		},
		MinReasonContribution: 0.05,
		Workers:               4,
	}
}

// StrictMatchingConfig only suggests near-identical pairs
func StrictMatchingConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.Thresholds = Thresholds{AutoApprove: 0.98, Suggest: 0.85}
	config.MaxDateDifferenceDays = 1
	config.MaxAmountDifference = decimal.RequireFromString("0.05")
	return config
}

// RelaxedMatchingConfig tolerates slow settlement and tips or surcharges
func RelaxedMatchingConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.Weights = MatchingWeights{Date: 0.30, Amount: 0.40, Merchant: 0.30}
	config.Thresholds = Thresholds{AutoApprove: 0.95, Suggest: 0.60}
	config.MaxDateDifferenceDays = 7
	config.MaxAmountDifference = decimal.RequireFromString("5.00")
	return config
}

// Validate checks the configuration invariants. Any failure is a programming
// or deployment error and must stop initialisation.
func (mc *MatchingConfig) Validate() error {
	if err := mc.Weights.Validate(); err != nil {
		return err
	}

	t := mc.Thresholds
	if !(t.Suggest > 0 && t.Suggest < t.AutoApprove && t.AutoApprove <= 1) {
		return errors.ConfigurationError(errors.CodeThresholdOrder, "matching.thresholds",
			fmt.Sprintf("suggest=%v auto_approve=%v", t.Suggest, t.AutoApprove), nil)
	}

	if mc.MaxDateDifferenceDays < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "matching.max_date_difference_days",
			mc.MaxDateDifferenceDays, nil)
	}

	if mc.MaxAmountDifference.IsNegative() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "matching.max_amount_difference",
			mc.MaxAmountDifference.String(), nil)
	}

	if !inUnitRange(mc.OCR.AccountNumber) {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "matching.ocr.account_number_threshold",
			mc.OCR.AccountNumber, nil)
	}

	if !inUnitRange(mc.OCR.ReceiptData) {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "matching.ocr.receipt_data_threshold",
			mc.OCR.ReceiptData, nil)
	}

	if !inUnitRange(mc.MinReasonContribution) {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "matching.min_reason_contribution",
			mc.MinReasonContribution, nil)
	}

	if mc.Workers < 1 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "matching.workers", mc.Workers, nil)
	}

	return nil
}

// Validate checks each weight is in [0,1] and that they sum to exactly 1.0.
// The sum is taken in decimal so that 0.4 + 0.4 + 0.2 is exact.
func (mw *MatchingWeights) Validate() error {
	named := []struct {
		name  string
		value float64
	}{
		{"matching.weights.date_weight", mw.Date},
		{"matching.weights.amount_weight", mw.Amount},
		{"matching.weights.merchant_weight", mw.Merchant},
	}

	total := decimal.Zero
	for _, w := range named {
		if !inUnitRange(w.value) {
			return errors.ConfigurationError(errors.CodeInvalidConfig, w.name, w.value, nil)
		}
		total = total.Add(decimal.NewFromFloat(w.value))
	}

	if !total.Equal(decimal.NewFromInt(1)) {
		return errors.ConfigurationError(errors.CodeWeightSum, "matching.weights", total.String(), nil)
	}

	return nil
}

// Clone creates a deep copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}
	clone := *mc
	return &clone
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{Weights: date=%.2f amount=%.2f merchant=%.2f, Suggest: %.2f, AutoApprove: %.2f, MaxDays: %d, MaxAmount: %s}",
		mc.Weights.Date, mc.Weights.Amount, mc.Weights.Merchant,
		mc.Thresholds.Suggest, mc.Thresholds.AutoApprove,
		mc.MaxDateDifferenceDays, mc.MaxAmountDifference.StringFixed(2))
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
