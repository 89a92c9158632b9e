package matcher

import (
	"fmt"
	"math"

	"previa-reconciliation-service/internal/models"
)

const (
	// closeMerchantScore is the merchant sub-score reported as a close match
	closeMerchantScore = 0.9
	maxConfidence      = 100
)

// Scorer computes the confidence of a single transaction/receipt pair.
// It is safe for concurrent use.
type Scorer struct {
	config *MatchingConfig
}

// NewScorer validates the configuration and returns a scorer bound to a copy of it
func NewScorer(config *MatchingConfig) (*Scorer, error) {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{config: config.Clone()}, nil
}

// MustNewScorer is like NewScorer but panics on an invalid configuration.
// Intended for package-level initialisation.
func MustNewScorer(config *MatchingConfig) *Scorer {
	s, err := NewScorer(config)
	if err != nil {
		panic(err)
	}
	return s
}

// Config returns a copy of the scorer configuration
func (s *Scorer) Config() *MatchingConfig {
	return s.config.Clone()
}

// ScoreMatch scores a transaction against a receipt. Both records are assumed
// to have passed boundary validation.
func (s *Scorer) ScoreMatch(tx *models.Transaction, receipt *models.Receipt) *models.MatchSuggestion {
	cfg := s.config

	suggestion := &models.MatchSuggestion{
		Transaction:   tx,
		Receipt:       receipt,
		DateScore:     DateScore(cfg, tx.Date, receipt.Date),
		AmountScore:   AmountScore(cfg, tx.Amount, receipt.Amount),
		MerchantScore: MerchantScore(tx.Description, receipt.Merchant()),
	}

	if receipt.Date != nil {
		days := DateDifferenceDays(tx.Date, *receipt.Date)
		suggestion.DateDifferenceDays = &days
	}
	if receipt.Amount != nil {
		diff := AmountDifference(tx.Amount, *receipt.Amount)
		suggestion.AmountDifference = &diff
	}

	total := cfg.Weights.Date*suggestion.DateScore +
		cfg.Weights.Amount*suggestion.AmountScore +
		cfg.Weights.Merchant*suggestion.MerchantScore

	suggestion.ConfidenceScore = toConfidence(total)
	suggestion.ConfidenceLevel = s.Classify(suggestion.ConfidenceScore)
	suggestion.MatchReasons = s.reasons(suggestion)

	return suggestion
}

// Classify maps a confidence in [0,100] onto a level
func (s *Scorer) Classify(confidence int) models.ConfidenceLevel {
	fraction := float64(confidence) / maxConfidence
	switch {
	case fraction >= s.config.Thresholds.AutoApprove:
		return models.ConfidenceHigh
	case fraction >= s.config.Thresholds.Suggest:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// Suggestible reports whether a confidence reaches the suggest threshold
func (s *Scorer) Suggestible(confidence int) bool {
	return float64(confidence)/maxConfidence >= s.config.Thresholds.Suggest
}

// AutoApprovable reports whether a suggestion may be approved without review
func (s *Scorer) AutoApprovable(suggestion *models.MatchSuggestion) bool {
	return suggestion != nil && s.Classify(suggestion.ConfidenceScore) == models.ConfidenceHigh
}

// reasons lists one clause per sub-score that moved the confidence noticeably,
// always in date, amount, merchant order
func (s *Scorer) reasons(sg *models.MatchSuggestion) []string {
	cfg := s.config
	reasons := make([]string, 0, 3)

	if sg.DateDifferenceDays != nil && cfg.Weights.Date*sg.DateScore >= cfg.MinReasonContribution && sg.DateScore > 0 {
		reasons = append(reasons, dateReason(*sg.DateDifferenceDays))
	}

	if sg.AmountDifference != nil && cfg.Weights.Amount*sg.AmountScore >= cfg.MinReasonContribution && sg.AmountScore > 0 {
		if sg.AmountDifference.IsZero() {
			reasons = append(reasons, "exact amount")
		} else {
			reasons = append(reasons, fmt.Sprintf("amount within $%s", sg.AmountDifference.StringFixed(2)))
		}
	}

	if cfg.Weights.Merchant*sg.MerchantScore >= cfg.MinReasonContribution && sg.MerchantScore > 0 {
		if sg.MerchantScore >= closeMerchantScore {
			reasons = append(reasons, "merchant name closely matches")
		} else {
			reasons = append(reasons, "merchant name partially matches")
		}
	}

	return reasons
}

func dateReason(days int) string {
	switch days {
	case 0:
		return "same date"
	case 1:
		return "date within 1 day"
	default:
		return fmt.Sprintf("date within %d days", days)
	}
}

// toConfidence scales a weighted sum in [0,1] to an integer percentage,
// rounding half away from zero
func toConfidence(total float64) int {
	if math.IsNaN(total) {
		return 0
	}
	c := int(math.Round(total * maxConfidence))
	if c < 0 {
		return 0
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}
