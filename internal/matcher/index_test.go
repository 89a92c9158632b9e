package matcher

import (
	"testing"
	"time"

	"previa-reconciliation-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestReceiptIndex(t *testing.T) {
	base := day(2024, time.March, 10)
	undated := &models.Receipt{ID: "r-undated", ProcessingStatus: models.ProcessingCompleted}
	receipts := []*models.Receipt{
		newReceipt("r-same", base, "10.00", "A"),
		newReceipt("r-before", base.AddDate(0, 0, -2), "10.00", "B"),
		newReceipt("r-after", base.AddDate(0, 0, 3), "10.00", "C"),
		newReceipt("r-far", base.AddDate(0, 0, 4), "10.00", "D"),
		newReceipt("r-same-late", time.Date(2024, time.March, 10, 22, 0, 0, 0, time.UTC), "10.00", "E"),
		undated,
	}

	index := NewReceiptIndex(receipts)

	t.Run("window", func(t *testing.T) {
		got := index.GetByDateWindow(base, 3)
		ids := make([]string, len(got))
		for i, r := range got {
			ids[i] = r.ID
		}
		assert.Equal(t, []string{"r-same", "r-same-late", "r-before", "r-after"}, ids)
	})

	t.Run("zero window", func(t *testing.T) {
		assert.Len(t, index.GetByDateWindow(base, 0), 2)
	})

	t.Run("stats", func(t *testing.T) {
		stats := index.GetStats()
		assert.Equal(t, 6, stats.TotalReceipts)
		assert.Equal(t, 4, stats.UniqueDates)
		assert.Equal(t, 1, stats.UndatedReceipts)
		assert.Equal(t, 2, stats.MaxPerDate)
		assert.InDelta(t, 1.25, stats.AvgPerDate, 1e-9)
		assert.Equal(t, "2024-03-08", stats.EarliestDate)
		assert.Equal(t, "2024-03-14", stats.LatestDate)
	})

	t.Run("empty", func(t *testing.T) {
		stats := NewReceiptIndex(nil).GetStats()
		assert.Equal(t, IndexStats{}, stats)
	})
}
