package models

import "fmt"

// SubscriptionTier is the paid plan of a user
type SubscriptionTier string

const (
	TierUser    SubscriptionTier = "user"
	TierPremium SubscriptionTier = "premium_user"
)

// IsValid checks if the tier is known
func (t SubscriptionTier) IsValid() bool {
	return t == TierUser || t == TierPremium
}

// ParseSubscriptionTier parses a tier name
func ParseSubscriptionTier(value string) (SubscriptionTier, error) {
	t := SubscriptionTier(value)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown subscription tier %q (expected %q or %q)", value, TierUser, TierPremium)
	}
	return t, nil
}

// ResourceKind is a resource whose creation is governed by tier limits
type ResourceKind string

const (
	ResourceAccounts     ResourceKind = "accounts"
	ResourceTransactions ResourceKind = "transactions"
	ResourceReceipts     ResourceKind = "receipts"
)

// IsValid checks if the resource kind is known
func (k ResourceKind) IsValid() bool {
	switch k {
	case ResourceAccounts, ResourceTransactions, ResourceReceipts:
		return true
	default:
		return false
	}
}

// ParseResourceKind parses a resource kind name
func ParseResourceKind(value string) (ResourceKind, error) {
	k := ResourceKind(value)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown resource kind %q (expected accounts, transactions or receipts)", value)
	}
	return k, nil
}

// UserTierData mirrors the per-user subscription record held by the backend.
// Limits use the backend's convention where very large values mean no limit.
type UserTierData struct {
	UserID                   string           `json:"user_id"`
	Tier                     SubscriptionTier `json:"tier"`
	AccountLimit             int64            `json:"account_limit"`
	TransactionLimitPerMonth int64            `json:"transaction_limit_per_month"`
	ReceiptLimitPerMonth     int64            `json:"receipt_limit_per_month"`
}

// RawLimit returns the record's limit for a resource kind
func (d *UserTierData) RawLimit(kind ResourceKind) (int64, bool) {
	switch kind {
	case ResourceAccounts:
		return d.AccountLimit, true
	case ResourceTransactions:
		return d.TransactionLimitPerMonth, true
	case ResourceReceipts:
		return d.ReceiptLimitPerMonth, true
	default:
		return 0, false
	}
}
