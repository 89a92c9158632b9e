package tiers

import (
	"fmt"
	"math"

	"previa-reconciliation-service/internal/models"
)

// Validator answers limit questions against a tier policy
type Validator struct {
	policy *Policy
}

// UsageReport summarises one user's usage of one resource kind
type UsageReport struct {
	UserID          string                  `json:"user_id"`
	Tier            models.SubscriptionTier `json:"tier"`
	Kind            models.ResourceKind     `json:"kind"`
	Current         int64                   `json:"current"`
	Limit           Limit                   `json:"limit"`
	CanCreate       bool                    `json:"can_create"`
	NearLimit       bool                    `json:"near_limit"`
	UsagePercentage int                     `json:"usage_percentage"`
	LimitMessage    string                  `json:"limit_message"`
	UpgradeMessage  string                  `json:"upgrade_message,omitempty"`
}

// NewValidator validates the policy and creates a validator
func NewValidator(policy *Policy) (*Validator, error) {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Validator{policy: policy}, nil
}

// CanCreate reports whether a user on tier may create another resource of
// kind at the current count. Unknown tiers and kinds may not create anything.
func (v *Validator) CanCreate(tier models.SubscriptionTier, kind models.ResourceKind, current int64) bool {
	limit, ok := v.policy.LimitFor(tier, kind)
	if !ok {
		return false
	}
	return limit.Allows(current)
}

// IsNearLimit reports whether usage has reached 90% of a finite limit
func IsNearLimit(current int64, limit Limit) bool {
	n, ok := limit.Max()
	if !ok {
		return false
	}
	return current*10 >= n*9
}

// UsagePercentage returns current as a whole percentage of limit in [0,100].
// Unlimited and zero limits report 0.
func UsagePercentage(current int64, limit Limit) int {
	n, ok := limit.Max()
	if !ok || n <= 0 {
		return 0
	}

	pct := math.Round(float64(current) * 100 / float64(n))
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return int(pct)
	}
}

// LimitMessage describes the limit of a tier for a resource kind
func (v *Validator) LimitMessage(tier models.SubscriptionTier, kind models.ResourceKind) string {
	if tier == models.TierPremium {
		return fmt.Sprintf("Unlimited %s", kind)
	}

	limit, ok := v.policy.LimitFor(tier, kind)
	if !ok {
		return fmt.Sprintf("No %s available on this plan", kind)
	}
	return limitMessage(kind, limit)
}

// UpgradeMessage is the call to action shown when a free-tier limit is close or reached
func UpgradeMessage(kind models.ResourceKind) string {
	switch kind {
	case models.ResourceAccounts:
		return "Upgrade to Premium to connect unlimited accounts"
	case models.ResourceTransactions:
		return "Upgrade to Premium for unlimited transactions each month"
	case models.ResourceReceipts:
		return "Upgrade to Premium for unlimited receipt uploads each month"
	default:
		return "Upgrade to Premium for unlimited usage"
	}
}

// Check builds a usage report for a user record. Limits stored on the record
// take precedence over the policy; the premium tier is always unlimited.
func (v *Validator) Check(data models.UserTierData, kind models.ResourceKind, current int64) UsageReport {
	limit := v.recordLimit(data, kind)

	report := UsageReport{
		UserID:          data.UserID,
		Tier:            data.Tier,
		Kind:            kind,
		Current:         current,
		Limit:           limit,
		CanCreate:       data.Tier.IsValid() && kind.IsValid() && limit.Allows(current),
		NearLimit:       IsNearLimit(current, limit),
		UsagePercentage: UsagePercentage(current, limit),
	}

	if data.Tier == models.TierPremium {
		report.LimitMessage = fmt.Sprintf("Unlimited %s", kind)
	} else {
		report.LimitMessage = limitMessage(kind, limit)
	}

	if data.Tier != models.TierPremium && (!report.CanCreate || report.NearLimit) {
		report.UpgradeMessage = UpgradeMessage(kind)
	}

	return report
}

func (v *Validator) recordLimit(data models.UserTierData, kind models.ResourceKind) Limit {
	if data.Tier == models.TierPremium {
		return Unlimited()
	}
	if raw, ok := data.RawLimit(kind); ok && raw > 0 {
		return LimitFromRecord(raw)
	}
	if limit, ok := v.policy.LimitFor(data.Tier, kind); ok {
		return limit
	}
	return LimitOf(0)
}

func limitMessage(kind models.ResourceKind, limit Limit) string {
	n, ok := limit.Max()
	if !ok {
		return fmt.Sprintf("Unlimited %s", kind)
	}

	noun := string(kind)
	if n == 1 {
		noun = noun[:len(noun)-1]
	}

	if kind == models.ResourceAccounts {
		return fmt.Sprintf("Up to %d %s", n, noun)
	}
	return fmt.Sprintf("Up to %d %s per month", n, noun)
}
