package matcher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDateScore(t *testing.T) {
	config := DefaultMatchingConfig()
	base := day(2024, time.March, 1)

	tests := []struct {
		name     string
		receipt  *time.Time
		expected float64
	}{
		{"same day", datePtr(base), 1},
		{"one day after", datePtr(base.AddDate(0, 0, 1)), 2.0 / 3.0},
		{"one day before", datePtr(base.AddDate(0, 0, -1)), 2.0 / 3.0},
		{"two days", datePtr(base.AddDate(0, 0, 2)), 1.0 / 3.0},
		{"at tolerance", datePtr(base.AddDate(0, 0, 3)), 0},
		{"beyond tolerance", datePtr(base.AddDate(0, 0, 4)), 0},
		{"missing receipt date", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, DateScore(config, base, tt.receipt), 1e-9)
		})
	}
}

func TestDateScoreIgnoresTimeOfDay(t *testing.T) {
	config := DefaultMatchingConfig()
	late := time.Date(2024, time.March, 1, 23, 59, 0, 0, time.UTC)
	early := time.Date(2024, time.March, 2, 0, 1, 0, 0, time.UTC)

	assert.Equal(t, 1, DateDifferenceDays(late, early))
	assert.Equal(t, 0, DateDifferenceDays(late, day(2024, time.March, 1)))
	assert.InDelta(t, 2.0/3.0, DateScore(config, late, &early), 1e-9)
}

func TestDateScoreZeroTolerance(t *testing.T) {
	config := DefaultMatchingConfig()
	config.MaxDateDifferenceDays = 0
	base := day(2024, time.March, 1)

	assert.Equal(t, 1.0, DateScore(config, base, datePtr(base)))
	assert.Equal(t, 0.0, DateScore(config, base, datePtr(base.AddDate(0, 0, 1))))
}

func TestAmountScore(t *testing.T) {
	config := DefaultMatchingConfig()
	tx := decimal.RequireFromString("-45.00")

	tests := []struct {
		name     string
		receipt  *decimal.Decimal
		expected float64
	}{
		{"exact with opposite sign", amountPtr("45.00"), 1},
		{"exact same sign", amountPtr("-45.00"), 1},
		{"quarter off", amountPtr("45.25"), 0.5},
		{"ten cents under", amountPtr("44.90"), 0.8},
		{"at tolerance", amountPtr("45.50"), 0},
		{"beyond tolerance", amountPtr("46.00"), 0},
		{"missing receipt amount", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, AmountScore(config, tx, tt.receipt), 1e-9)
		})
	}
}

func TestAmountScoreZeroTolerance(t *testing.T) {
	config := DefaultMatchingConfig()
	config.MaxAmountDifference = decimal.Zero
	tx := decimal.RequireFromString("10.00")

	assert.Equal(t, 1.0, AmountScore(config, tx, amountPtr("10")))
	assert.Equal(t, 0.0, AmountScore(config, tx, amountPtr("10.01")))
}

func TestAmountDifference(t *testing.T) {
	diff := AmountDifference(decimal.RequireFromString("-45.00"), decimal.RequireFromString("45.30"))
	assert.True(t, diff.Equal(decimal.RequireFromString("0.30")), diff.String())
}

func TestMerchantScore(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical", "Woolworths", "Woolworths", 1},
		{"case and punctuation", "WOOLWORTHS-METRO", "woolworths metro", 1},
		{"accents folded", "Café Roma", "CAFE ROMA", 1},
		{"bank description contains merchant", "EFTPOS WOOLWORTHS 1234 SYDNEY", "Woolworths", 1},
		{"merchant contains description", "Woolworths", "Woolworths Metro", 1},
		{"spacing differs", "Coles Express", "ColesExpress", 1},
		{"no common characters", "abc", "xyz", 0},
		{"empty side", "", "Woolworths", 0},
		{"only punctuation", "***", "Woolworths", 0},
		{"short name is not contained", "BP", "BP Connect", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, MerchantScore(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.expected, MerchantScore(tt.b, tt.a), 1e-9, "score must be symmetric")
		})
	}
}

func TestMerchantScorePartial(t *testing.T) {
	score := MerchantScore("Bunnings Warehouse", "Bunnings Hardware")
	assert.Greater(t, score, 0.3)
	assert.Less(t, score, 0.9)
}

func TestNormalizeMerchant(t *testing.T) {
	tests := map[string]string{
		"  Café-Roma  #12 ": "cafe roma 12",
		"WOOLWORTHS":        "woolworths",
		"Crème Brûlée Co.":  "creme brulee co",
		"":                  "",
		"---":               "",
	}

	for in, want := range tests {
		assert.Equal(t, want, NormalizeMerchant(in), "input %q", in)
	}
}
