package models

import "time"

const (
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// Payment is one row per discrete charge attempt. SubscriptionID carries the
// provider's external subscription id and is best-effort: it stays empty when
// the provider's invoice lookup fails, and no referential integrity is
// enforced against the subscriptions table.
type Payment struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PaymentID      string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"payment_id"`
	Status         string    `gorm:"type:varchar(32);not null;index" json:"status"`
	Amount         int64     `gorm:"not null;default:0" json:"amount"`
	Currency       string    `gorm:"type:varchar(8);not null;default:'INR'" json:"currency"`
	UserID         *uint     `gorm:"index" json:"user_id,omitempty"`
	SubscriptionID string    `gorm:"type:varchar(191);index" json:"subscription_id"`
	Provider       string    `gorm:"type:varchar(20);not null;default:'razorpay'" json:"provider"`
	Method         string    `gorm:"type:varchar(32)" json:"method"`
	Metadata       string    `gorm:"type:longtext" json:"-"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
