package tiers

import (
	"fmt"
	"sort"

	"previa-reconciliation-service/internal/models"
	"previa-reconciliation-service/pkg/errors"
)

// TierLimits holds the limits of one subscription tier
type TierLimits struct {
	Accounts             Limit `json:"accounts"`
	TransactionsPerMonth Limit `json:"transactions_per_month"`
	ReceiptsPerMonth     Limit `json:"receipts_per_month"`
}

// For returns the limit governing a resource kind
func (tl TierLimits) For(kind models.ResourceKind) (Limit, bool) {
	switch kind {
	case models.ResourceAccounts:
		return tl.Accounts, true
	case models.ResourceTransactions:
		return tl.TransactionsPerMonth, true
	case models.ResourceReceipts:
		return tl.ReceiptsPerMonth, true
	default:
		return Limit{}, false
	}
}

// Policy maps each subscription tier to its limits
type Policy struct {
	Tiers map[models.SubscriptionTier]TierLimits `json:"tiers"`
}

// DefaultPolicy returns the production tier limits
func DefaultPolicy() *Policy {
	return &Policy{
		Tiers: map[models.SubscriptionTier]TierLimits{
			models.TierUser: {
				Accounts:             LimitOf(3),
				TransactionsPerMonth: LimitOf(500),
				ReceiptsPerMonth:     LimitOf(50),
			},
			models.TierPremium: {
				Accounts:             Unlimited(),
				TransactionsPerMonth: Unlimited(),
				ReceiptsPerMonth:     Unlimited(),
			},
		},
	}
}

// LimitFor returns the limit of a tier for a resource kind
func (p *Policy) LimitFor(tier models.SubscriptionTier, kind models.ResourceKind) (Limit, bool) {
	limits, ok := p.Tiers[tier]
	if !ok {
		return Limit{}, false
	}
	return limits.For(kind)
}

// Validate rejects unknown tiers, negative limits and a capped premium tier
func (p *Policy) Validate() error {
	if p == nil || len(p.Tiers) == 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "tiers", "empty policy", nil)
	}

	tiers := make([]string, 0, len(p.Tiers))
	for tier := range p.Tiers {
		tiers = append(tiers, string(tier))
	}
	sort.Strings(tiers)

	kinds := []models.ResourceKind{models.ResourceAccounts, models.ResourceTransactions, models.ResourceReceipts}
	for _, name := range tiers {
		tier := models.SubscriptionTier(name)
		if !tier.IsValid() {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "tiers", name, nil)
		}

		limits := p.Tiers[tier]
		for _, kind := range kinds {
			limit, _ := limits.For(kind)
			setting := fmt.Sprintf("tiers.%s.%s", tier, kind)

			if n, ok := limit.Max(); ok && n < 0 {
				return errors.ConfigurationError(errors.CodeInvalidConfig, setting, n, nil)
			}
			if tier == models.TierPremium && !limit.IsUnlimited() {
				return errors.ConfigurationError(errors.CodeInvalidConfig, setting, limit.String(), nil).
					WithSuggestion("premium tier limits must be unlimited")
			}
		}
	}

	return nil
}
