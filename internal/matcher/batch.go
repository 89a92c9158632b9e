package matcher

import (
	"context"
	"sort"
	"time"

	"previa-reconciliation-service/internal/models"
	"previa-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// BatchResult is the outcome of a one-to-one suggestion pass over an export
type BatchResult struct {
	Suggestions           []*models.MatchSuggestion `json:"suggestions"`
	UnmatchedTransactions []*models.Transaction     `json:"unmatched_transactions"`
	UnmatchedReceipts     []*models.Receipt         `json:"unmatched_receipts"`
	Summary               BatchSummary              `json:"summary"`
}

// BatchSummary provides aggregate statistics about a batch pass
type BatchSummary struct {
	TotalTransactions     int `json:"total_transactions"`
	TotalReceipts         int `json:"total_receipts"`
	SkippedTransactions   int `json:"skipped_transactions"`
	SkippedReceipts       int `json:"skipped_receipts"`
	PairsScored           int `json:"pairs_scored"`
	Suggested             int `json:"suggested"`
	HighConfidence        int `json:"high_confidence"`
	MediumConfidence      int `json:"medium_confidence"`
	AutoApprovable        int `json:"auto_approvable"`
	UnmatchedTransactions int `json:"unmatched_transactions"`
	UnmatchedReceipts     int `json:"unmatched_receipts"`

	TotalAmountMatched decimal.Decimal `json:"total_amount_matched"`
	ProcessingTime     time.Duration   `json:"processing_time"`
}

// Suggest proposes at most one receipt per transaction, and vice versa, over
// whole exports. Only unreconciled transactions and completed receipts take
// part; the rest are counted as skipped. Pairs are claimed greedily in ranking
// order, so the result does not depend on input order.
func (r *Ranker) Suggest(ctx context.Context, txs []*models.Transaction, receipts []*models.Receipt) (*BatchResult, error) {
	start := time.Now()

	if err := r.validateTransactions(txs); err != nil {
		return nil, err
	}
	if err := validateReceipts(receipts); err != nil {
		return nil, err
	}

	eligibleTxs := make([]*models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Status == models.TransactionUnreconciled {
			eligibleTxs = append(eligibleTxs, tx)
		}
	}
	eligibleReceipts := make([]*models.Receipt, 0, len(receipts))
	for _, receipt := range receipts {
		if receipt.ProcessingStatus == models.ProcessingCompleted {
			eligibleReceipts = append(eligibleReceipts, receipt)
		}
	}

	pairs := r.candidatePairs(eligibleTxs, eligibleReceipts)

	log := r.log.WithFields(logger.Fields{
		"transactions": len(eligibleTxs),
		"receipts":     len(eligibleReceipts),
		"pairs":        len(pairs),
	})
	log.Debug("Scoring batch candidates")

	suggestions, err := r.scoreSuggestible(ctx, "suggest", pairs)
	if err != nil {
		return nil, err
	}
	sortSuggestions(suggestions, receiptFirst)

	assigned := assignOneToOne(suggestions)

	result := &BatchResult{
		Suggestions:           assigned,
		UnmatchedTransactions: unmatchedTransactions(eligibleTxs, assigned),
		UnmatchedReceipts:     unmatchedReceipts(eligibleReceipts, assigned),
	}
	result.Summary = r.summarize(result, len(txs), len(receipts), len(pairs))
	result.Summary.SkippedTransactions = len(txs) - len(eligibleTxs)
	result.Summary.SkippedReceipts = len(receipts) - len(eligibleReceipts)
	result.Summary.ProcessingTime = time.Since(start)

	log.WithField("suggested", len(assigned)).Debug("Batch suggestion complete")
	return result, nil
}

// candidatePairs lists the pairs worth scoring. When a pair without date
// credit cannot reach the suggest threshold, receipts are looked up through
// the date index instead of pairing everything.
func (r *Ranker) candidatePairs(txs []*models.Transaction, receipts []*models.Receipt) []pair {
	cfg := r.scorer.config
	withoutDate := toConfidence(cfg.Weights.Amount + cfg.Weights.Merchant)

	if r.scorer.Suggestible(withoutDate) {
		pairs := make([]pair, 0, len(txs)*len(receipts))
		for _, tx := range txs {
			for _, receipt := range receipts {
				pairs = append(pairs, pair{tx: tx, receipt: receipt})
			}
		}
		return pairs
	}

	index := NewReceiptIndex(receipts)
	var pairs []pair
	for _, tx := range txs {
		for _, receipt := range index.GetByDateWindow(tx.Date, cfg.MaxDateDifferenceDays) {
			pairs = append(pairs, pair{tx: tx, receipt: receipt})
		}
	}
	return pairs
}

// assignOneToOne walks ranked suggestions and keeps each one whose
// transaction and receipt are both still free
func assignOneToOne(ranked []*models.MatchSuggestion) []*models.MatchSuggestion {
	usedTx := make(map[string]bool)
	usedReceipt := make(map[string]bool)

	var assigned []*models.MatchSuggestion
	for _, s := range ranked {
		if usedTx[s.Transaction.ID] || usedReceipt[s.Receipt.ID] {
			continue
		}
		usedTx[s.Transaction.ID] = true
		usedReceipt[s.Receipt.ID] = true
		assigned = append(assigned, s)
	}
	return assigned
}

func unmatchedTransactions(txs []*models.Transaction, assigned []*models.MatchSuggestion) []*models.Transaction {
	matched := make(map[string]bool, len(assigned))
	for _, s := range assigned {
		matched[s.Transaction.ID] = true
	}

	unmatched := make([]*models.Transaction, 0, len(txs)-len(assigned))
	for _, tx := range txs {
		if !matched[tx.ID] {
			unmatched = append(unmatched, tx)
		}
	}
	sort.Slice(unmatched, func(i, j int) bool { return unmatched[i].ID < unmatched[j].ID })
	return unmatched
}

func unmatchedReceipts(receipts []*models.Receipt, assigned []*models.MatchSuggestion) []*models.Receipt {
	matched := make(map[string]bool, len(assigned))
	for _, s := range assigned {
		matched[s.Receipt.ID] = true
	}

	unmatched := make([]*models.Receipt, 0, len(receipts)-len(assigned))
	for _, receipt := range receipts {
		if !matched[receipt.ID] {
			unmatched = append(unmatched, receipt)
		}
	}
	sort.Slice(unmatched, func(i, j int) bool { return unmatched[i].ID < unmatched[j].ID })
	return unmatched
}

func (r *Ranker) summarize(result *BatchResult, totalTxs, totalReceipts, pairsScored int) BatchSummary {
	summary := BatchSummary{
		TotalTransactions:     totalTxs,
		TotalReceipts:         totalReceipts,
		PairsScored:           pairsScored,
		Suggested:             len(result.Suggestions),
		UnmatchedTransactions: len(result.UnmatchedTransactions),
		UnmatchedReceipts:     len(result.UnmatchedReceipts),
		TotalAmountMatched:    decimal.Zero,
	}

	for _, s := range result.Suggestions {
		switch s.ConfidenceLevel {
		case models.ConfidenceHigh:
			summary.HighConfidence++
		case models.ConfidenceMedium:
			summary.MediumConfidence++
		}
		if r.scorer.AutoApprovable(s) {
			summary.AutoApprovable++
		}
		summary.TotalAmountMatched = summary.TotalAmountMatched.Add(s.Transaction.Amount.Abs())
	}

	return summary
}
