// Package tiers decides whether a user may create another account,
// transaction or receipt under their subscription tier, and produces the
// limit and upgrade messages shown alongside usage.
//
// Limits are either a finite maximum or Unlimited. The backend stores
// "unlimited" as a very large number; LimitFromRecord translates that
// convention so no arithmetic is ever done on the sentinel.
package tiers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LegacyUnlimitedSentinel is the smallest stored limit the backend treats as unlimited
const LegacyUnlimitedSentinel int64 = 999999

// Limit is a resource limit that is either a finite maximum or unlimited
type Limit struct {
	max       int64
	unlimited bool
}

// Unlimited returns a limit that never blocks creation
func Unlimited() Limit {
	return Limit{unlimited: true}
}

// LimitOf returns a finite limit of n
func LimitOf(n int64) Limit {
	return Limit{max: n}
}

// LimitFromRecord converts a stored limit, mapping the legacy sentinel to Unlimited
func LimitFromRecord(n int64) Limit {
	if n >= LegacyUnlimitedSentinel {
		return Unlimited()
	}
	return LimitOf(n)
}

// ParseLimit parses "unlimited" or a non-negative integer
func ParseLimit(value string) (Limit, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "unlimited" {
		return Unlimited(), nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return Limit{}, fmt.Errorf("invalid limit %q: expected a whole number or \"unlimited\"", value)
	}
	if n < 0 {
		return Limit{}, fmt.Errorf("invalid limit %q: must not be negative", value)
	}
	return LimitFromRecord(n), nil
}

// IsUnlimited reports whether the limit never blocks creation
func (l Limit) IsUnlimited() bool {
	return l.unlimited
}

// Max returns the finite maximum; ok is false for an unlimited limit
func (l Limit) Max() (n int64, ok bool) {
	if l.unlimited {
		return 0, false
	}
	return l.max, true
}

// Allows reports whether one more resource may be created at the current count
func (l Limit) Allows(current int64) bool {
	return l.unlimited || current < l.max
}

// String returns "unlimited" or the maximum
func (l Limit) String() string {
	if l.unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(l.max, 10)
}

// MarshalJSON renders an unlimited limit as the string "unlimited"
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unlimited {
		return json.Marshal("unlimited")
	}
	return json.Marshal(l.max)
}
