package enums

import "fmt"

// SubscriptionTier is the plan a user account is subscribed to.
type SubscriptionTier string

const (
	SubscriptionTierFree  SubscriptionTier = "free"
	SubscriptionTierBasic SubscriptionTier = "basic"
	SubscriptionTierPro   SubscriptionTier = "pro"
)

var validSubscriptionTiers = []SubscriptionTier{
	SubscriptionTierFree,
	SubscriptionTierBasic,
	SubscriptionTierPro,
}

var tierRank = map[SubscriptionTier]int{
	SubscriptionTierFree:  0,
	SubscriptionTierBasic: 1,
	SubscriptionTierPro:   2,
}

// monthly plan allowances, in generations
var tierMonthlyAllowance = map[SubscriptionTier]int{
	SubscriptionTierFree:  3,
	SubscriptionTierBasic: 20,
	SubscriptionTierPro:   60,
}

// String implements fmt.Stringer.
func (s SubscriptionTier) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubscriptionTier.
func (s SubscriptionTier) IsValid() bool {
	for _, candidate := range validSubscriptionTiers {
		if candidate == s {
			return true
		}
	}
	return false
}

// AtLeast reports whether the tier grants everything the other tier grants.
func (s SubscriptionTier) AtLeast(other SubscriptionTier) bool {
	return tierRank[s] >= tierRank[other]
}

// MonthlyAllowance returns the number of generations the plan includes per month.
func (s SubscriptionTier) MonthlyAllowance() int {
	return tierMonthlyAllowance[s]
}

// ParseSubscriptionTier converts the raw string to SubscriptionTier.
func ParseSubscriptionTier(value string) (SubscriptionTier, error) {
	for _, candidate := range validSubscriptionTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription tier %q", value)
}
