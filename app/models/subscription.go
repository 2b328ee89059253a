package models

import "time"

const (
	ProviderRazorpay   = "razorpay"
	ProviderRevenueCat = "revenuecat"
)

const (
	SubStatusPending       = "pending"
	SubStatusAuthenticated = "authenticated"
	SubStatusActive        = "active"
	SubStatusHalted        = "halted"
	SubStatusCancelled     = "cancelled"
	SubStatusCompleted     = "completed"
	SubStatusExpired       = "expired"
	SubStatusPaused        = "paused"
	SubStatusResumed       = "resumed"
)

// Subscription is the canonical, provider-agnostic record of a user's
// recurring entitlement. SubscriptionID is the provider's external identifier
// and the idempotency key for upserts; a user may accumulate multiple rows
// over billing-cycle restarts but never two rows for the same external id.
type Subscription struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	SubscriptionID  string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"subscription_id"`
	UserID          *uint      `gorm:"index" json:"user_id,omitempty"`
	PlanID          string     `gorm:"type:varchar(191);index" json:"plan_id"`
	Status          string     `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	Provider        string     `gorm:"type:varchar(20);not null;index" json:"provider"`
	StartDate       *time.Time `gorm:"type:timestamp;default:null" json:"start_date,omitempty"`
	EndDate         *time.Time `gorm:"type:timestamp;default:null" json:"end_date,omitempty"`
	NextBillingDate *time.Time `gorm:"type:timestamp;default:null" json:"next_billing_date,omitempty"`
	IsTrial         bool       `gorm:"default:false" json:"is_trial"`
	TrialEndDate    *time.Time `gorm:"type:timestamp;default:null" json:"trial_end_date,omitempty"`
	UserCancelled   bool       `gorm:"default:false" json:"user_cancelled"`
	CancelledAt     *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	Metadata        string     `gorm:"type:longtext" json:"-"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEntitling reports whether this subscription currently grants premium
// listening access. Cancelled subscriptions keep entitling until their period
// actually ends, which the providers signal with a later expiration event.
func (s *Subscription) IsEntitling() bool {
	switch s.Status {
	case SubStatusActive, SubStatusAuthenticated, SubStatusResumed:
		return true
	case SubStatusCancelled:
		return s.EndDate != nil && s.EndDate.After(time.Now())
	default:
		return false
	}
}
