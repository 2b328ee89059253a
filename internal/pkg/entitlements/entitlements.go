package entitlements

import "github.com/shravanlabs/shravan/app/models"

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// TierForSubscription maps a stored subscription onto the listening tier the
// rest of the product gates on. No subscription row means free tier.
func TierForSubscription(sub *models.Subscription) Tier {
	if sub != nil && sub.IsEntitling() {
		return TierPremium
	}
	return TierFree
}

// CanStreamPremium reports whether the tier unlocks premium audiobooks and
// the full sleep-sounds catalog.
func CanStreamPremium(tier Tier) bool {
	return tier == TierPremium
}
