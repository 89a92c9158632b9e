package matcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"previa-reconciliation-service/internal/models"
	"previa-reconciliation-service/pkg/errors"
	"previa-reconciliation-service/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Ranker validates candidate sets, scores them concurrently and orders the
// suggestions that reach the suggest threshold
type Ranker struct {
	scorer *Scorer
	now    func() time.Time
	log    logger.Logger
}

// RankerOption customises a Ranker
type RankerOption func(*Ranker)

// WithClock sets the clock used to reject future-dated transactions
func WithClock(now func() time.Time) RankerOption {
	return func(r *Ranker) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(log logger.Logger) RankerOption {
	return func(r *Ranker) {
		if log != nil {
			r.log = log.WithComponent("matcher")
		}
	}
}

// NewRanker validates the configuration and creates a ranker
func NewRanker(config *MatchingConfig, opts ...RankerOption) (*Ranker, error) {
	scorer, err := NewScorer(config)
	if err != nil {
		return nil, err
	}

	r := &Ranker{
		scorer: scorer,
		now:    time.Now,
		log:    logger.WithComponent("matcher"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Scorer returns the scorer used by the ranker
func (r *Ranker) Scorer() *Scorer {
	return r.scorer
}

// RankCandidates scores every receipt against the transaction and returns the
// suggestions at or above the suggest threshold, best first. An invalid record
// fails the whole call before anything is scored.
func (r *Ranker) RankCandidates(ctx context.Context, tx *models.Transaction, receipts []*models.Receipt) ([]*models.MatchSuggestion, error) {
	if err := r.validateTransactions([]*models.Transaction{tx}); err != nil {
		return nil, err
	}
	if err := validateReceipts(receipts); err != nil {
		return nil, err
	}

	pairs := make([]pair, len(receipts))
	for i, receipt := range receipts {
		pairs[i] = pair{tx: tx, receipt: receipt}
	}

	suggestions, err := r.scoreSuggestible(ctx, "rank_candidates", pairs)
	if err != nil {
		return nil, err
	}
	sortSuggestions(suggestions, receiptFirst)

	r.log.WithFields(logger.Fields{
		"transaction_id": tx.ID,
		"candidates":     len(receipts),
		"suggested":      len(suggestions),
	}).Debug("Ranked receipt candidates")

	return suggestions, nil
}

// BestSuggestion returns the top ranked suggestion, or nil when no receipt
// reaches the suggest threshold
func (r *Ranker) BestSuggestion(ctx context.Context, tx *models.Transaction, receipts []*models.Receipt) (*models.MatchSuggestion, error) {
	suggestions, err := r.RankCandidates(ctx, tx, receipts)
	if err != nil {
		return nil, err
	}
	if len(suggestions) == 0 {
		return nil, nil
	}
	return suggestions[0], nil
}

// RankTransactions is the inverse of RankCandidates: it ranks transactions
// for a single receipt, breaking full ties on transaction ID
func (r *Ranker) RankTransactions(ctx context.Context, receipt *models.Receipt, txs []*models.Transaction) ([]*models.MatchSuggestion, error) {
	if err := validateReceipts([]*models.Receipt{receipt}); err != nil {
		return nil, err
	}
	if err := r.validateTransactions(txs); err != nil {
		return nil, err
	}

	pairs := make([]pair, len(txs))
	for i, tx := range txs {
		pairs[i] = pair{tx: tx, receipt: receipt}
	}

	suggestions, err := r.scoreSuggestible(ctx, "rank_transactions", pairs)
	if err != nil {
		return nil, err
	}
	sortSuggestions(suggestions, transactionFirst)

	r.log.WithFields(logger.Fields{
		"receipt_id": receipt.ID,
		"candidates": len(txs),
		"suggested":  len(suggestions),
	}).Debug("Ranked transaction candidates")

	return suggestions, nil
}

type pair struct {
	tx      *models.Transaction
	receipt *models.Receipt
}

// scoreSuggestible scores pairs on a bounded worker pool and keeps the ones
// at or above the suggest threshold
func (r *Ranker) scoreSuggestible(ctx context.Context, operation string, pairs []pair) ([]*models.MatchSuggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.MatchingError(errors.CodeCancelled, operation, err)
	}

	scored := make([]*models.MatchSuggestion, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.scorer.config.Workers)
	for i, p := range pairs {
		if gctx.Err() != nil {
			break
		}
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scored[i] = r.scorer.ScoreMatch(p.tx, p.receipt)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.MatchingError(errors.CodeCancelled, operation, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.MatchingError(errors.CodeCancelled, operation, err)
	}

	suggestions := make([]*models.MatchSuggestion, 0, len(scored))
	for _, s := range scored {
		if r.scorer.Suggestible(s.ConfidenceScore) {
			suggestions = append(suggestions, s)
		}
	}
	return suggestions, nil
}

func (r *Ranker) validateTransactions(txs []*models.Transaction) error {
	now := r.now()
	seen := make(map[string]struct{}, len(txs))
	for i, tx := range txs {
		if tx == nil {
			return errors.ValidationError(errors.CodeMissingField, fmt.Sprintf("transactions[%d]", i), nil, nil)
		}
		if err := tx.Validate(now); err != nil {
			return errors.ValidationError(errors.CodeInvalidRecord, "transaction", tx.ID, err)
		}
		if _, dup := seen[tx.ID]; dup {
			return errors.ValidationError(errors.CodeInvalidRecord, "transaction", tx.ID,
				fmt.Errorf("duplicate transaction ID %s", tx.ID))
		}
		seen[tx.ID] = struct{}{}
	}
	return nil
}

func validateReceipts(receipts []*models.Receipt) error {
	seen := make(map[string]struct{}, len(receipts))
	for i, receipt := range receipts {
		if receipt == nil {
			return errors.ValidationError(errors.CodeMissingField, fmt.Sprintf("receipts[%d]", i), nil, nil)
		}
		if err := receipt.Validate(); err != nil {
			return errors.ValidationError(errors.CodeInvalidRecord, "receipt", receipt.ID, err)
		}
		if _, dup := seen[receipt.ID]; dup {
			return errors.ValidationError(errors.CodeInvalidRecord, "receipt", receipt.ID,
				fmt.Errorf("duplicate receipt ID %s", receipt.ID))
		}
		seen[receipt.ID] = struct{}{}
	}
	return nil
}

// idOrder picks which record ID breaks a tie first
type idOrder int

const (
	receiptFirst idOrder = iota
	transactionFirst
)

func sortSuggestions(suggestions []*models.MatchSuggestion, order idOrder) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		return compareSuggestions(suggestions[i], suggestions[j], order) < 0
	})
}

// compareSuggestions orders by confidence (higher first), date difference,
// amount difference (unknown last) and finally record IDs
func compareSuggestions(a, b *models.MatchSuggestion, order idOrder) int {
	if a.ConfidenceScore != b.ConfidenceScore {
		if a.ConfidenceScore > b.ConfidenceScore {
			return -1
		}
		return 1
	}

	if c := compareDays(a.DateDifferenceDays, b.DateDifferenceDays); c != 0 {
		return c
	}

	switch {
	case a.AmountDifference == nil && b.AmountDifference != nil:
		return 1
	case a.AmountDifference != nil && b.AmountDifference == nil:
		return -1
	case a.AmountDifference != nil && b.AmountDifference != nil:
		if c := a.AmountDifference.Cmp(*b.AmountDifference); c != 0 {
			return c
		}
	}

	receiptCmp := strings.Compare(a.Receipt.ID, b.Receipt.ID)
	txCmp := strings.Compare(a.Transaction.ID, b.Transaction.ID)
	if order == transactionFirst {
		receiptCmp, txCmp = txCmp, receiptCmp
	}
	if receiptCmp != 0 {
		return receiptCmp
	}
	return txCmp
}

func compareDays(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}
