package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"previa-reconciliation-service/internal/matcher"
	"previa-reconciliation-service/internal/models"
	"previa-reconciliation-service/internal/tiers"
	apperrors "previa-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestBatchResult() *matcher.BatchResult {
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	receiptDate := date.AddDate(0, 0, 1)
	merchant := "Woolworths Metro"
	receiptAmount := decimal.RequireFromString("45.20")
	days := 1
	diff := decimal.Zero

	tx := &models.Transaction{
		ID:          "tx-1",
		Date:        date,
		Description: "WOOLWORTHS 1234 SYDNEY",
		Amount:      decimal.RequireFromString("-45.20"),
		Status:      models.TransactionUnreconciled,
	}
	receipt := &models.Receipt{
		ID:               "r-1",
		Date:             &receiptDate,
		MerchantName:     &merchant,
		Amount:           &receiptAmount,
		ProcessingStatus: models.ProcessingCompleted,
	}

	unmatchedMerchant := "Bunnings"
	return &matcher.BatchResult{
		Suggestions: []*models.MatchSuggestion{{
			Transaction:        tx,
			Receipt:            receipt,
			ConfidenceScore:    87,
			ConfidenceLevel:    models.ConfidenceMedium,
			MatchReasons:       []string{"date within 1 day", "exact amount"},
			DateScore:          0.6667,
			AmountScore:        1,
			MerchantScore:      0.6,
			DateDifferenceDays: &days,
			AmountDifference:   &diff,
		}},
		UnmatchedTransactions: []*models.Transaction{{
			ID:          "tx-2",
			Date:        date,
			Description: "Uber",
			Amount:      decimal.RequireFromString("-12.00"),
			Status:      models.TransactionUnreconciled,
		}},
		UnmatchedReceipts: []*models.Receipt{{
			ID:               "r-2",
			MerchantName:     &unmatchedMerchant,
			ProcessingStatus: models.ProcessingCompleted,
		}},
		Summary: matcher.BatchSummary{
			TotalTransactions:     2,
			TotalReceipts:         2,
			PairsScored:           4,
			Suggested:             1,
			MediumConfidence:      1,
			UnmatchedTransactions: 1,
			UnmatchedReceipts:     1,
			TotalAmountMatched:    decimal.RequireFromString("45.20"),
			ProcessingTime:        3 * time.Millisecond,
		},
	}
}

func newGenerator(t *testing.T, format OutputFormat) *ReportGenerator {
	t.Helper()
	config := DefaultReportConfig()
	config.Format = format
	generator, err := NewReportGenerator(config)
	require.NoError(t, err)
	return generator
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{"default config", nil, false},
		{"valid config", DefaultReportConfig(), false},
		{"invalid format", &ReportConfig{Format: "xml"}, true},
		{"negative max items", &ReportConfig{Format: FormatConsole, MaxItems: -1}, true},
		{"csv without delimiter", &ReportConfig{Format: FormatCSV}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, generator.Config())
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}

func TestBatchConsoleReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newGenerator(t, FormatConsole).GenerateBatchReport(createTestBatchResult(), &buf))

	out := buf.String()
	assert.Contains(t, out, "MATCH SUGGESTION REPORT")
	assert.Contains(t, out, "Suggested: 1 (50.0%)")
	assert.Contains(t, out, "Total Amount Matched: 45.20")
	assert.Contains(t, out, "tx-1 <-> r-1  87% MEDIUM")
	assert.Contains(t, out, "date within 1 day; exact amount")
	assert.Contains(t, out, "=== UNMATCHED TRANSACTIONS ===")
	assert.Contains(t, out, "ID: r-2, Amount: , Date: , Merchant: Bunnings")
}

func TestBatchConsoleReportMaxItems(t *testing.T) {
	result := createTestBatchResult()
	result.UnmatchedTransactions = append(result.UnmatchedTransactions, result.UnmatchedTransactions[0], result.UnmatchedTransactions[0])

	config := DefaultReportConfig()
	config.MaxItems = 1
	generator, err := NewReportGenerator(config)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, generator.GenerateBatchReport(result, &buf))
	assert.Contains(t, buf.String(), "... and 2 more")
}

func TestBatchJSONReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newGenerator(t, FormatJSON).GenerateBatchReport(createTestBatchResult(), &buf))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "summary")
	assert.Contains(t, decoded, "unmatched_receipts")

	suggestions, ok := decoded["suggestions"].([]interface{})
	require.True(t, ok)
	require.Len(t, suggestions, 1)
	first := suggestions[0].(map[string]interface{})
	assert.Equal(t, float64(87), first["confidence_score"])
	assert.Equal(t, "medium", first["confidence_level"])

	tx := first["transaction"].(map[string]interface{})
	assert.Equal(t, "-45.20", tx["amount"])
	assert.Equal(t, "2025-01-10", tx["date"])
}

func TestBatchJSONReportWithoutUnmatched(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON
	config.IncludeUnmatched = false
	generator, err := NewReportGenerator(config)
	require.NoError(t, err)

	result := createTestBatchResult()
	result.Suggestions = nil

	var buf bytes.Buffer
	require.NoError(t, generator.GenerateBatchReport(result, &buf))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.NotContains(t, decoded, "unmatched_transactions")
	assert.Equal(t, []interface{}{}, decoded["suggestions"])
}

func TestBatchCSVReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newGenerator(t, FormatCSV).GenerateBatchReport(createTestBatchResult(), &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, suggestionHeaders, records[0])
	assert.Equal(t, []string{
		"Suggestion", "tx-1", "r-1", "-45.20", "45.20", "2025-01-10", "2025-01-11",
		"Woolworths Metro", "87", "medium", "1", "0.00", "date within 1 day; exact amount",
	}, records[1])
	assert.Equal(t, "Unmatched Transaction", records[2][0])
	assert.Equal(t, "Unmatched Receipt", records[3][0])
	assert.Equal(t, "r-2", records[3][2])
}

func TestSuggestionReport(t *testing.T) {
	suggestions := createTestBatchResult().Suggestions

	var buf bytes.Buffer
	require.NoError(t, newGenerator(t, FormatConsole).GenerateSuggestionReport("candidates for tx-1", suggestions, &buf))
	assert.Contains(t, buf.String(), "=== CANDIDATES FOR TX-1 ===")
	assert.Contains(t, buf.String(), "1. tx-1 <-> r-1")

	buf.Reset()
	require.NoError(t, newGenerator(t, FormatConsole).GenerateSuggestionReport("candidates", nil, &buf))
	assert.Contains(t, buf.String(), "No candidates reached the suggestion threshold")

	buf.Reset()
	require.NoError(t, newGenerator(t, FormatJSON).GenerateSuggestionReport("candidates", nil, &buf))
	assert.JSONEq(t, "[]", buf.String())
}

func TestUsageReport(t *testing.T) {
	validator, err := tiers.NewValidator(nil)
	require.NoError(t, err)

	data := models.UserTierData{UserID: "u-1", Tier: models.TierUser}
	reports := []tiers.UsageReport{
		validator.Check(data, models.ResourceAccounts, 3),
		validator.Check(data, models.ResourceReceipts, 45),
		validator.Check(data, models.ResourceTransactions, 10),
	}

	var buf bytes.Buffer
	require.NoError(t, newGenerator(t, FormatConsole).GenerateUsageReport(reports, &buf))
	out := buf.String()
	assert.Contains(t, out, "accounts:     3 / 3 (100%)  Up to 3 accounts")
	assert.Contains(t, out, "Limit reached. Upgrade to Premium")
	assert.Contains(t, out, "Approaching limit.")

	buf.Reset()
	require.NoError(t, newGenerator(t, FormatCSV).GenerateUsageReport(reports, &buf))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"u-1", "user", "receipts", "45", "50", "true", "true", "90"}, records[2][:8])

	buf.Reset()
	require.NoError(t, newGenerator(t, FormatJSON).GenerateUsageReport(reports[:1], &buf))
	assert.True(t, strings.Contains(buf.String(), `"can_create": false`))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestSafeReportGenerator(t *testing.T) {
	t.Run("writes report", func(t *testing.T) {
		srg, err := NewSafeReportGenerator(nil, nil)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, srg.WriteBatchReport(createTestBatchResult(), &buf))
		assert.Contains(t, buf.String(), "MATCH SUGGESTION REPORT")
	})

	t.Run("nil result", func(t *testing.T) {
		srg, err := NewSafeReportGenerator(nil, nil)
		require.NoError(t, err)
		err = srg.WriteBatchReport(nil, &bytes.Buffer{})
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewSafeReportGenerator(&ReportConfig{Format: "xml"}, nil)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfiguration))
	})

	t.Run("write failure", func(t *testing.T) {
		srg, err := NewSafeReportGenerator(nil, nil)
		require.NoError(t, err)
		err = srg.WriteUsageReport(nil, failingWriter{})
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryFile))
	})
}

func TestGenerateBackupPath(t *testing.T) {
	assert.Equal(t, "/tmp/report_backup.json", generateBackupPath("/tmp/report.json"))
	assert.Equal(t, "out_backup", generateBackupPath("out"))
}
