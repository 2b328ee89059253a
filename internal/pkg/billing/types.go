package billing

import (
	"errors"
	"time"
)

// Normalization/processing failures that are expected in normal operation.
// They are acknowledged to the provider so it stops redelivering an event we
// will never be able to process.
var (
	ErrMissingSubscriptionID = errors.New("payload carries no subscription identifier")
	ErrMissingPaymentID      = errors.New("payload carries no payment identifier")
	ErrUnhandledEventType    = errors.New("unhandled event type")
)

// SubscriptionUpdate is the provider-agnostic value object produced by the
// normalizers and consumed by the store. Nil pointer fields mean "not supplied
// by this event" and leave previously stored values untouched on upsert;
// IsTrial and UserCancelled are derived on every event and always overwrite.
type SubscriptionUpdate struct {
	SubscriptionID  string
	UserID          *uint
	PlanID          string
	Status          string
	Provider        string
	StartDate       *time.Time
	EndDate         *time.Time
	NextBillingDate *time.Time
	IsTrial         bool
	TrialEndDate    *time.Time
	UserCancelled   bool
	CancelledAt     *time.Time
	Metadata        string
}

// PaymentInput is the normalized shape of a single charge attempt.
type PaymentInput struct {
	PaymentID      string
	Status         string
	Amount         int64
	Currency       string
	Method         string
	UserID         *uint
	SubscriptionID string
	InvoiceID      string
	Metadata       string
}
