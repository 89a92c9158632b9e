package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func validTransaction() *Transaction {
	return &Transaction{
		ID:          "tx-1",
		UserID:      "user-1",
		Date:        time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Description: "Woolworths",
		Amount:      decimal.RequireFromString("-45.00"),
		Status:      TransactionUnreconciled,
	}
}

func TestTransaction_Type(t *testing.T) {
	tx := validTransaction()
	assert.Equal(t, TransactionTypeExpense, tx.Type())

	tx.Amount = decimal.Zero
	assert.Equal(t, TransactionTypeIncome, tx.Type())

	tx.Amount = decimal.RequireFromString("12.50")
	assert.Equal(t, TransactionTypeIncome, tx.Type())
}

func TestTransaction_Validate(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(tx *Transaction)
		wantErr string
	}{
		{name: "valid", mutate: func(tx *Transaction) {}},
		{name: "same day later hour", mutate: func(tx *Transaction) {
			tx.Date = time.Date(2025, 1, 10, 23, 0, 0, 0, time.UTC)
		}},
		{name: "empty id", mutate: func(tx *Transaction) { tx.ID = " " }, wantErr: "ID cannot be empty"},
		{name: "zero date", mutate: func(tx *Transaction) { tx.Date = time.Time{} }, wantErr: "date cannot be zero"},
		{name: "future date", mutate: func(tx *Transaction) {
			tx.Date = time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
		}, wantErr: "in the future"},
		{name: "bad status", mutate: func(tx *Transaction) { tx.Status = "pending" }, wantErr: "invalid status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(tx)
			err := tx.Validate(now)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReceipt_Validate(t *testing.T) {
	conf := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		receipt Receipt
		wantErr bool
	}{
		{name: "minimal pending", receipt: Receipt{ID: "r1", ProcessingStatus: ProcessingPending}},
		{name: "completed with confidence", receipt: Receipt{ID: "r1", ProcessingStatus: ProcessingCompleted, OCRConfidence: conf(0.93)}},
		{name: "missing id", receipt: Receipt{ProcessingStatus: ProcessingPending}, wantErr: true},
		{name: "unknown status", receipt: Receipt{ID: "r1", ProcessingStatus: "done"}, wantErr: true},
		{name: "confidence above one", receipt: Receipt{ID: "r1", ProcessingStatus: ProcessingCompleted, OCRConfidence: conf(1.2)}, wantErr: true},
		{name: "confidence NaN", receipt: Receipt{ID: "r1", ProcessingStatus: ProcessingCompleted, OCRConfidence: conf(math.NaN())}, wantErr: true},
		{name: "negative file size", receipt: Receipt{ID: "r1", ProcessingStatus: ProcessingPending, FileSize: -1}, wantErr: true},
		{name: "invalid ocr json", receipt: Receipt{ID: "r1", ProcessingStatus: ProcessingCompleted, OCRData: json.RawMessage("{")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.receipt.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReceipt_Merchant(t *testing.T) {
	r := &Receipt{ID: "r1"}
	assert.Equal(t, "", r.Merchant())

	r.MerchantName = strPtr("Coles")
	assert.Equal(t, "Coles", r.Merchant())
}

func TestAmountFromFloat(t *testing.T) {
	amount, err := AmountFromFloat(45.5)
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("45.5")))

	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := AmountFromFloat(f)
		assert.Error(t, err)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "45.00", want: "45"},
		{input: "-45.00", want: "-45"},
		{input: "$1,234.56", want: "1234.56"},
		{input: "-$12.10", want: "-12.1"},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "NaN", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestCalendarDate(t *testing.T) {
	loc := time.FixedZone("AEST", 10*3600)
	in := time.Date(2025, 1, 10, 23, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), CalendarDate(in))
}

func TestTransaction_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(validTransaction())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "-45.00", decoded["amount"])
	assert.Equal(t, "2025-01-10", decoded["date"])
	assert.Equal(t, "expense", decoded["type"])
}

func TestParseTierAndKind(t *testing.T) {
	tier, err := ParseSubscriptionTier("premium_user")
	require.NoError(t, err)
	assert.Equal(t, TierPremium, tier)

	_, err = ParseSubscriptionTier("gold")
	assert.Error(t, err)

	kind, err := ParseResourceKind("receipts")
	require.NoError(t, err)
	assert.Equal(t, ResourceReceipts, kind)

	_, err = ParseResourceKind("budgets")
	assert.Error(t, err)
}

func TestUserTierData_RawLimit(t *testing.T) {
	data := &UserTierData{AccountLimit: 3, TransactionLimitPerMonth: 500, ReceiptLimitPerMonth: 50}

	limit, ok := data.RawLimit(ResourceReceipts)
	assert.True(t, ok)
	assert.Equal(t, int64(50), limit)

	_, ok = data.RawLimit("budgets")
	assert.False(t, ok)
}
