package billing

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shravanlabs/shravan/app/models"
)

func TestRazorpayStatusToSubscriptionStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "created", want: models.SubStatusPending},
		{in: "authenticated", want: models.SubStatusAuthenticated},
		{in: "active", want: models.SubStatusActive},
		{in: "pending", want: models.SubStatusPending},
		{in: "halted", want: models.SubStatusHalted},
		{in: "cancelled", want: models.SubStatusCancelled},
		{in: "completed", want: models.SubStatusCompleted},
		{in: "expired", want: models.SubStatusExpired},
		{in: "paused", want: models.SubStatusPaused},
		{in: "resumed", want: models.SubStatusActive},
		{in: " Active ", want: models.SubStatusActive},
		// Unknown vocabulary keeps access rather than cutting the user off.
		{in: "brand_new_status", want: models.SubStatusActive},
	}

	for _, tt := range tests {
		if got := RazorpayStatusToSubscriptionStatus(tt.in); got != tt.want {
			t.Fatalf("RazorpayStatusToSubscriptionStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRazorpayNotes_EmptyArrayQuirk(t *testing.T) {
	var entity RazorpaySubscriptionEntity
	raw := []byte(`{"id":"sub_1","status":"active","notes":[]}`)
	if err := json.Unmarshal(raw, &entity); err != nil {
		t.Fatalf("expected [] notes to unmarshal, got %v", err)
	}
	if len(entity.Notes) != 0 {
		t.Fatalf("expected empty notes, got %v", entity.Notes)
	}

	raw = []byte(`{"id":"sub_1","status":"active","notes":{"user_id":"42","plan":"yearly","retries":3}}`)
	if err := json.Unmarshal(raw, &entity); err != nil {
		t.Fatalf("expected object notes to unmarshal, got %v", err)
	}
	if entity.Notes["retries"] != "3" {
		t.Fatalf("expected numeric note coerced to string, got %q", entity.Notes["retries"])
	}
	userID := entity.Notes.UserID()
	if userID == nil || *userID != 42 {
		t.Fatalf("expected user id 42 from notes, got %v", userID)
	}
}

func TestRazorpayNotes_UserIDKeys(t *testing.T) {
	tests := []struct {
		notes RazorpayNotes
		want  *uint
	}{
		{notes: RazorpayNotes{"user_id": "7"}, want: uintPtr(7)},
		{notes: RazorpayNotes{"userId": "8"}, want: uintPtr(8)},
		{notes: RazorpayNotes{"uid": "9"}, want: uintPtr(9)},
		{notes: RazorpayNotes{"user_id": "0"}, want: nil},
		{notes: RazorpayNotes{"user_id": "abc"}, want: nil},
		{notes: RazorpayNotes{}, want: nil},
	}

	for _, tt := range tests {
		got := tt.notes.UserID()
		if (got == nil) != (tt.want == nil) {
			t.Fatalf("notes %v: got %v, want %v", tt.notes, got, tt.want)
		}
		if got != nil && *got != *tt.want {
			t.Fatalf("notes %v: got %d, want %d", tt.notes, *got, *tt.want)
		}
	}
}

func TestParseRazorpayEvent(t *testing.T) {
	raw := []byte(`{
		"entity": "event",
		"event": "subscription.activated",
		"created_at": 1700000000,
		"payload": {
			"subscription": {
				"entity": {
					"id": "sub_N5vJ9r2c",
					"plan_id": "plan_premium_monthly",
					"customer_id": "cust_9f1",
					"status": "active",
					"start_at": 1700000000,
					"current_end": 1702592000,
					"charge_at": 1702592000,
					"notes": {"user_id": "42"}
				}
			}
		}
	}`)

	event, err := ParseRazorpayEvent(raw)
	if err != nil {
		t.Fatalf("ParseRazorpayEvent: %v", err)
	}
	if !event.IsSubscriptionEvent() || event.IsPaymentEvent() {
		t.Fatalf("expected subscription event classification, got sub=%v pay=%v",
			event.IsSubscriptionEvent(), event.IsPaymentEvent())
	}

	update, err := NormalizeRazorpaySubscription(event, raw)
	if err != nil {
		t.Fatalf("NormalizeRazorpaySubscription: %v", err)
	}

	if update.SubscriptionID != "sub_N5vJ9r2c" {
		t.Fatalf("unexpected subscription id %q", update.SubscriptionID)
	}
	if update.Provider != models.ProviderRazorpay {
		t.Fatalf("unexpected provider %q", update.Provider)
	}
	if update.Status != models.SubStatusActive {
		t.Fatalf("unexpected status %q", update.Status)
	}
	if update.PlanID != "plan_premium_monthly" {
		t.Fatalf("unexpected plan id %q", update.PlanID)
	}
	if update.UserID == nil || *update.UserID != 42 {
		t.Fatalf("expected user id 42, got %v", update.UserID)
	}
	if update.StartDate == nil || update.StartDate.Unix() != 1700000000 {
		t.Fatalf("unexpected start date %v", update.StartDate)
	}
	if update.NextBillingDate == nil || update.NextBillingDate.Unix() != 1702592000 {
		t.Fatalf("unexpected next billing date %v", update.NextBillingDate)
	}
	if update.UserCancelled || update.CancelledAt != nil {
		t.Fatalf("active event must not carry cancellation markers")
	}
	if !strings.Contains(update.Metadata, `"event":"subscription.activated"`) {
		t.Fatalf("expected metadata to record the event type, got %s", update.Metadata)
	}
}

func TestParseRazorpayEvent_Malformed(t *testing.T) {
	if _, err := ParseRazorpayEvent([]byte(`{not json`)); err == nil {
		t.Fatalf("expected parse error for invalid json")
	}
	if _, err := ParseRazorpayEvent([]byte(`{"entity":"event"}`)); err == nil {
		t.Fatalf("expected parse error for missing event type")
	}
}

func TestNormalizeRazorpaySubscription_EventOverridesEntityStatus(t *testing.T) {
	// Redelivered events can embed a stale entity; the event type wins.
	raw := []byte(`{
		"entity": "event",
		"event": "subscription.cancelled",
		"created_at": 1700000100,
		"payload": {
			"subscription": {
				"entity": {
					"id": "sub_stale",
					"status": "active",
					"ended_at": 1700000050,
					"notes": {"user_id": "7"}
				}
			}
		}
	}`)

	event, err := ParseRazorpayEvent(raw)
	if err != nil {
		t.Fatalf("ParseRazorpayEvent: %v", err)
	}
	update, err := NormalizeRazorpaySubscription(event, raw)
	if err != nil {
		t.Fatalf("NormalizeRazorpaySubscription: %v", err)
	}

	if update.Status != models.SubStatusCancelled {
		t.Fatalf("expected event type to override entity status, got %q", update.Status)
	}
	if !update.UserCancelled {
		t.Fatalf("expected cancelled update to mark user_cancelled")
	}
	if update.CancelledAt == nil || update.CancelledAt.Unix() != 1700000050 {
		t.Fatalf("expected cancelled_at from ended_at, got %v", update.CancelledAt)
	}
}

func TestNormalizeRazorpaySubscription_MissingEntity(t *testing.T) {
	raw := []byte(`{"entity":"event","event":"subscription.activated","payload":{}}`)
	event, err := ParseRazorpayEvent(raw)
	if err != nil {
		t.Fatalf("ParseRazorpayEvent: %v", err)
	}
	if _, err := NormalizeRazorpaySubscription(event, raw); err != ErrMissingSubscriptionID {
		t.Fatalf("expected ErrMissingSubscriptionID, got %v", err)
	}
}

func TestNormalizeRazorpayPayment(t *testing.T) {
	raw := []byte(`{
		"entity": "event",
		"event": "payment.failed",
		"created_at": 1700000200,
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_88x",
					"amount": 49900,
					"currency": "inr",
					"status": "captured",
					"invoice_id": "inv_55",
					"method": "upi",
					"notes": {"user_id": "42"}
				}
			}
		}
	}`)

	event, err := ParseRazorpayEvent(raw)
	if err != nil {
		t.Fatalf("ParseRazorpayEvent: %v", err)
	}
	if !event.IsPaymentEvent() {
		t.Fatalf("expected payment event classification")
	}

	in, err := NormalizeRazorpayPayment(event, raw)
	if err != nil {
		t.Fatalf("NormalizeRazorpayPayment: %v", err)
	}

	// payment.failed wins over the stale entity status.
	if in.Status != models.PaymentStatusFailed {
		t.Fatalf("expected event type to decide status, got %q", in.Status)
	}
	if in.PaymentID != "pay_88x" || in.Amount != 49900 {
		t.Fatalf("unexpected payment %q amount %d", in.PaymentID, in.Amount)
	}
	if in.Currency != "INR" {
		t.Fatalf("expected normalized currency INR, got %q", in.Currency)
	}
	if in.InvoiceID != "inv_55" {
		t.Fatalf("expected invoice reference, got %q", in.InvoiceID)
	}
	if in.UserID == nil || *in.UserID != 42 {
		t.Fatalf("expected user id from notes, got %v", in.UserID)
	}
}

func TestTimeFromEpochSeconds(t *testing.T) {
	var zero int64
	ts := int64(1700000000)

	if got := timeFromEpochSeconds(nil, &zero, &ts); got == nil || got.Unix() != ts {
		t.Fatalf("expected first positive candidate to win, got %v", got)
	}
	if got := timeFromEpochSeconds(nil, &zero); got != nil {
		t.Fatalf("expected nil for no positive candidate, got %v", got)
	}
	if got := timeFromEpochSeconds(&ts); got.Location() != time.UTC {
		t.Fatalf("expected UTC timestamps, got %v", got.Location())
	}
}

func uintPtr(v uint) *uint {
	return &v
}
