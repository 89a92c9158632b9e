package matcher

import (
	"sort"
	"time"

	"previa-reconciliation-service/internal/models"
)

// ReceiptIndex buckets receipts by calendar date so a batch pass only scores
// pairs that can still earn date credit
type ReceiptIndex struct {
	// DateIndex maps date strings (YYYY-MM-DD) to receipts
	DateIndex map[string][]*models.Receipt

	// Undated holds receipts without an extracted date
	Undated []*models.Receipt

	// AllReceipts holds all indexed receipts in input order
	AllReceipts []*models.Receipt
}

// IndexStats provides statistics about a receipt index
type IndexStats struct {
	TotalReceipts   int     `json:"total_receipts"`
	UniqueDates     int     `json:"unique_dates"`
	UndatedReceipts int     `json:"undated_receipts"`
	AvgPerDate      float64 `json:"avg_per_date"`
	MaxPerDate      int     `json:"max_per_date"`
	EarliestDate    string  `json:"earliest_date,omitempty"`
	LatestDate      string  `json:"latest_date,omitempty"`
}

// NewReceiptIndex creates a new receipt index
func NewReceiptIndex(receipts []*models.Receipt) *ReceiptIndex {
	index := &ReceiptIndex{
		DateIndex:   make(map[string][]*models.Receipt),
		AllReceipts: receipts,
	}

	for _, r := range receipts {
		if r.Date == nil {
			index.Undated = append(index.Undated, r)
			continue
		}
		key := models.CalendarDate(*r.Date).Format(models.DateLayout)
		index.DateIndex[key] = append(index.DateIndex[key], r)
	}

	return index
}

// GetByDateWindow returns receipts dated within days calendar days of date,
// nearest dates first
func (ri *ReceiptIndex) GetByDateWindow(date time.Time, days int) []*models.Receipt {
	day := models.CalendarDate(date)

	var receipts []*models.Receipt
	receipts = append(receipts, ri.DateIndex[day.Format(models.DateLayout)]...)
	for offset := 1; offset <= days; offset++ {
		receipts = append(receipts, ri.DateIndex[day.AddDate(0, 0, -offset).Format(models.DateLayout)]...)
		receipts = append(receipts, ri.DateIndex[day.AddDate(0, 0, offset).Format(models.DateLayout)]...)
	}
	return receipts
}

// GetStats returns statistics about the index
func (ri *ReceiptIndex) GetStats() IndexStats {
	stats := IndexStats{
		TotalReceipts:   len(ri.AllReceipts),
		UniqueDates:     len(ri.DateIndex),
		UndatedReceipts: len(ri.Undated),
	}

	if len(ri.DateIndex) == 0 {
		return stats
	}

	dates := make([]string, 0, len(ri.DateIndex))
	dated := 0
	for date, receipts := range ri.DateIndex {
		dates = append(dates, date)
		dated += len(receipts)
		if len(receipts) > stats.MaxPerDate {
			stats.MaxPerDate = len(receipts)
		}
	}
	sort.Strings(dates)

	stats.AvgPerDate = float64(dated) / float64(len(ri.DateIndex))
	stats.EarliestDate = dates[0]
	stats.LatestDate = dates[len(dates)-1]
	return stats
}
