package billing

import (
	"github.com/shopspring/decimal"

	"github.com/dramaforge/dramaforge-backend/pkg/config"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
)

// Plan is one purchasable subscription tier.
type Plan struct {
	Tier           enums.SubscriptionTier `json:"tier"`
	Name           string                 `json:"name"`
	MonthlyPrice   decimal.Decimal        `json:"monthly_price"`
	Currency       string                 `json:"currency"`
	MonthlyCredits int                    `json:"monthly_credits"`
	StripePriceID  string                 `json:"-"`
	Features       []string               `json:"features"`
}

// TopUpPack is a one-off credit purchase.
type TopUpPack struct {
	Credits int             `json:"credits"`
	Price   decimal.Decimal `json:"price"`
}

var decimalHundred = decimal.NewFromInt(100)

// topUpPacks are the fixed one-off credit bundles offered at checkout.
var topUpPacks = []TopUpPack{
	{Credits: 10, Price: decimal.NewFromFloat(4.99)},
	{Credits: 30, Price: decimal.NewFromFloat(12.99)},
	{Credits: 100, Price: decimal.NewFromFloat(39.99)},
}

// Catalog returns the purchasable plans wired to the configured Stripe
// price ids. The free tier is not listed; accounts start there.
func Catalog(cfg config.StripeConfig) []Plan {
	return []Plan{
		{
			Tier:           enums.SubscriptionTierBasic,
			Name:           "Basic",
			MonthlyPrice:   decimal.NewFromFloat(9.99),
			Currency:       "usd",
			MonthlyCredits: enums.SubscriptionTierBasic.MonthlyAllowance(),
			StripePriceID:  cfg.BasicPriceID,
			Features: []string{
				"20 generations per month",
				"ElevenLabs voices",
				"Voice cloning",
			},
		},
		{
			Tier:           enums.SubscriptionTierPro,
			Name:           "Pro",
			MonthlyPrice:   decimal.NewFromFloat(29.99),
			Currency:       "usd",
			MonthlyCredits: enums.SubscriptionTierPro.MonthlyAllowance(),
			StripePriceID:  cfg.ProPriceID,
			Features: []string{
				"60 generations per month",
				"ElevenLabs voices",
				"Voice cloning",
				"Per-scene clip regeneration",
			},
		},
	}
}

// PlanForTier returns the catalog entry for a tier, or nil for free/unknown.
func PlanForTier(cfg config.StripeConfig, tier enums.SubscriptionTier) *Plan {
	for _, plan := range Catalog(cfg) {
		if plan.Tier == tier {
			return &plan
		}
	}
	return nil
}

// PackForCredits returns the top-up bundle of the given size, or nil.
func PackForCredits(credits int) *TopUpPack {
	for _, pack := range topUpPacks {
		if pack.Credits == credits {
			return &pack
		}
	}
	return nil
}

// Packs lists the available top-up bundles.
func Packs() []TopUpPack {
	return append([]TopUpPack(nil), topUpPacks...)
}
