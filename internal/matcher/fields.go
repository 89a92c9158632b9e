package matcher

import (
	"strings"
	"time"
	"unicode"

	"previa-reconciliation-service/internal/models"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minContainmentRunes keeps very short names such as "bp" from matching every
// description that happens to contain those letters
const minContainmentRunes = 3

// DateDifferenceDays returns the absolute number of calendar days between two dates.
// Time of day is ignored.
func DateDifferenceDays(a, b time.Time) int {
	diff := models.CalendarDate(a).Sub(models.CalendarDate(b))
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}

// DateScore scores date proximity. A missing receipt date scores 0.
func DateScore(cfg *MatchingConfig, txDate time.Time, receiptDate *time.Time) float64 {
	if receiptDate == nil {
		return 0
	}

	days := DateDifferenceDays(txDate, *receiptDate)
	if days > cfg.MaxDateDifferenceDays {
		return 0
	}
	if cfg.MaxDateDifferenceDays == 0 {
		return 1
	}

	return clampUnit(1 - float64(days)/float64(cfg.MaxDateDifferenceDays))
}

// AmountDifference returns the gap between the absolute values of two amounts
func AmountDifference(a, b decimal.Decimal) decimal.Decimal {
	return a.Abs().Sub(b.Abs()).Abs()
}

// AmountScore scores amount proximity on absolute values, since the sign only
// encodes direction. A missing receipt amount scores 0.
func AmountScore(cfg *MatchingConfig, txAmount decimal.Decimal, receiptAmount *decimal.Decimal) float64 {
	if receiptAmount == nil {
		return 0
	}

	diff := AmountDifference(txAmount, *receiptAmount)
	if diff.GreaterThan(cfg.MaxAmountDifference) {
		return 0
	}
	if cfg.MaxAmountDifference.IsZero() {
		return 1
	}

	ratio := diff.Div(cfg.MaxAmountDifference).InexactFloat64()
	return clampUnit(1 - ratio)
}

// MerchantScore scores the similarity of a transaction description and a
// receipt merchant name. The score is symmetric, 1 for names that normalise
// to the same text, and 0 when either side is empty or the two share no characters.
func MerchantScore(a, b string) float64 {
	na, nb := NormalizeMerchant(a), NormalizeMerchant(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	ca, cb := strings.ReplaceAll(na, " ", ""), strings.ReplaceAll(nb, " ", "")
	if ca == cb {
		return 1
	}
	if containsEither(ca, cb) {
		return 1
	}

	jaccard := tokenJaccard(strings.Fields(na), strings.Fields(nb))
	return clampUnit(maxFloat(jaccard, editSimilarity(ca, cb)))
}

// NormalizeMerchant folds accents, lowercases, replaces punctuation with spaces
// and collapses whitespace
func NormalizeMerchant(s string) string {
	// transformers carry state, so each call gets its own chain
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func containsEither(a, b string) bool {
	shorter, longer := a, b
	if len([]rune(shorter)) > len([]rune(longer)) {
		shorter, longer = longer, shorter
	}
	if len([]rune(shorter)) < minContainmentRunes {
		return false
	}
	return strings.Contains(longer, shorter)
}

func tokenJaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, tok := range a {
		setA[tok] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, tok := range b {
		setB[tok] = struct{}{}
	}

	union := len(setA)
	intersection := 0
	for tok := range setB {
		if _, ok := setA[tok]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func editSimilarity(a, b string) float64 {
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
