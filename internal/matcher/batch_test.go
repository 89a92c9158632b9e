package matcher

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"previa-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchFixture() ([]*models.Transaction, []*models.Receipt) {
	base := day(2024, time.March, 1)

	matched := newTx("tx-3", base, "-45.00", "Woolworths")
	matched.Status = models.TransactionMatched

	pending := newReceipt("r-3", base, "45.00", "Woolworths")
	pending.ProcessingStatus = models.ProcessingPending

	txs := []*models.Transaction{
		newTx("tx-1", base, "-45.00", "Woolworths"),
		newTx("tx-2", base.AddDate(0, 0, 1), "-45.00", "Woolworths"),
		matched,
	}
	receipts := []*models.Receipt{
		newReceipt("r-1", base, "45.00", "Woolworths"),
		newReceipt("r-2", base.AddDate(0, 0, 2), "45.00", "Woolworths Metro"),
		pending,
		newReceipt("r-4", day(2024, time.January, 1), "999.00", "Qantas"),
	}
	return txs, receipts
}

func pairIDs(suggestions []*models.MatchSuggestion) [][2]string {
	ids := make([][2]string, len(suggestions))
	for i, s := range suggestions {
		ids[i] = [2]string{s.Transaction.ID, s.Receipt.ID}
	}
	return ids
}

func TestSuggestAssignsOneToOne(t *testing.T) {
	ranker := newTestRanker(t, DefaultMatchingConfig())
	txs, receipts := batchFixture()

	result, err := ranker.Suggest(context.Background(), txs, receipts)
	require.NoError(t, err)

	// tx-2 scores 87 against both r-1 and r-2; r-1 is already claimed by tx-1
	assert.Equal(t, [][2]string{{"tx-1", "r-1"}, {"tx-2", "r-2"}}, pairIDs(result.Suggestions))
	assert.Equal(t, 100, result.Suggestions[0].ConfidenceScore)
	assert.Equal(t, 87, result.Suggestions[1].ConfidenceScore)

	assert.Empty(t, result.UnmatchedTransactions)
	require.Len(t, result.UnmatchedReceipts, 1)
	assert.Equal(t, "r-4", result.UnmatchedReceipts[0].ID)

	summary := result.Summary
	assert.Equal(t, 3, summary.TotalTransactions)
	assert.Equal(t, 4, summary.TotalReceipts)
	assert.Equal(t, 1, summary.SkippedTransactions)
	assert.Equal(t, 1, summary.SkippedReceipts)
	assert.Equal(t, 2, summary.Suggested)
	assert.Equal(t, 1, summary.HighConfidence)
	assert.Equal(t, 1, summary.MediumConfidence)
	assert.Equal(t, 1, summary.AutoApprovable)
	assert.Equal(t, 0, summary.UnmatchedTransactions)
	assert.Equal(t, 1, summary.UnmatchedReceipts)
	assert.True(t, summary.TotalAmountMatched.Equal(decimal.RequireFromString("90.00")), summary.TotalAmountMatched.String())
}

func TestSuggestUsesDateIndexWhenDateCreditIsRequired(t *testing.T) {
	txs, receipts := batchFixture()

	strict := newTestRanker(t, DefaultMatchingConfig())
	result, err := strict.Suggest(context.Background(), txs, receipts)
	require.NoError(t, err)
	// r-4 is outside every transaction's date window
	assert.Equal(t, 4, result.Summary.PairsScored)

	relaxed := newTestRanker(t, RelaxedMatchingConfig())
	result, err = relaxed.Suggest(context.Background(), txs, receipts)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Summary.PairsScored)
}

func TestSuggestIsOrderIndependent(t *testing.T) {
	ranker := newTestRanker(t, DefaultMatchingConfig())
	txs, receipts := batchFixture()

	expected, err := ranker.Suggest(context.Background(), txs, receipts)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 20; i++ {
		txs, receipts := batchFixture()
		rng.Shuffle(len(txs), func(a, b int) { txs[a], txs[b] = txs[b], txs[a] })
		rng.Shuffle(len(receipts), func(a, b int) { receipts[a], receipts[b] = receipts[b], receipts[a] })

		got, err := ranker.Suggest(context.Background(), txs, receipts)
		require.NoError(t, err)
		assert.Equal(t, pairIDs(expected.Suggestions), pairIDs(got.Suggestions))
	}
}

func TestSuggestEmptyInput(t *testing.T) {
	ranker := newTestRanker(t, DefaultMatchingConfig())

	result, err := ranker.Suggest(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Suggestions)
	assert.Empty(t, result.UnmatchedTransactions)
	assert.Empty(t, result.UnmatchedReceipts)
	assert.True(t, result.Summary.TotalAmountMatched.IsZero())
}

func TestSuggestRejectsDuplicateTransactions(t *testing.T) {
	ranker := newTestRanker(t, DefaultMatchingConfig())
	base := day(2024, time.March, 1)
	txs := []*models.Transaction{
		newTx("tx-1", base, "-45.00", "Woolworths"),
		newTx("tx-1", base, "-12.00", "Coles"),
	}

	result, err := ranker.Suggest(context.Background(), txs, nil)
	assert.Nil(t, result)
	assert.Error(t, err)
}

func TestSuggestCancelled(t *testing.T) {
	ranker := newTestRanker(t, DefaultMatchingConfig())
	txs, receipts := batchFixture()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := ranker.Suggest(ctx, txs, receipts)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}
