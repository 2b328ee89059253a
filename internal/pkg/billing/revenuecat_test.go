package billing

import (
	"testing"
	"time"

	"github.com/shravanlabs/shravan/app/models"
)

func TestSubscriptionIDFromRevenueCat_Priority(t *testing.T) {
	tests := []struct {
		body RevenueCatEventBody
		want string
	}{
		{body: RevenueCatEventBody{OriginalTransactionID: "orig_1", TransactionID: "txn_1", ID: "evt_1"}, want: "orig_1"},
		{body: RevenueCatEventBody{TransactionID: "txn_1", ID: "evt_1"}, want: "txn_1"},
		{body: RevenueCatEventBody{ID: "evt_1"}, want: "evt_1"},
		{body: RevenueCatEventBody{OriginalTransactionID: "  ", TransactionID: "txn_2"}, want: "txn_2"},
		{body: RevenueCatEventBody{}, want: ""},
	}

	for _, tt := range tests {
		if got := subscriptionIDFromRevenueCat(&tt.body); got != tt.want {
			t.Fatalf("subscriptionIDFromRevenueCat(%+v) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestUserIDFromAppUserID(t *testing.T) {
	if got := userIDFromAppUserID("42"); got == nil || *got != 42 {
		t.Fatalf("expected numeric app_user_id to resolve, got %v", got)
	}
	if got := userIDFromAppUserID("$RCAnonymousID:abc123", "7"); got == nil || *got != 7 {
		t.Fatalf("expected anonymous id to be skipped in favor of fallback, got %v", got)
	}
	if got := userIDFromAppUserID("$RCAnonymousID:abc123"); got != nil {
		t.Fatalf("expected anonymous-only candidates to resolve to nil, got %v", got)
	}
	if got := userIDFromAppUserID("not-a-number"); got != nil {
		t.Fatalf("expected non-numeric id to resolve to nil, got %v", got)
	}
}

func TestExpiryFromRevenueCat_Priority(t *testing.T) {
	ms := time.Now().Add(24*time.Hour).UnixMilli() / 1000 * 1000
	secs := ms/1000 + 3600
	entMs := ms + 7200000

	body := RevenueCatEventBody{
		ExpirationAtMs: &ms,
		ExpirationAt:   &secs,
		Entitlement:    &RevenueCatEntitlement{ExpiresAtMs: &entMs},
	}
	if got := expiryFromRevenueCat(&body); got == nil || got.UnixMilli() != ms {
		t.Fatalf("expected millisecond field to win, got %v", got)
	}

	body.ExpirationAtMs = nil
	if got := expiryFromRevenueCat(&body); got == nil || got.Unix() != secs {
		t.Fatalf("expected seconds field as second choice, got %v", got)
	}

	body.ExpirationAt = nil
	if got := expiryFromRevenueCat(&body); got == nil || got.UnixMilli() != entMs {
		t.Fatalf("expected entitlement sub-object as last resort, got %v", got)
	}

	body.Entitlement = nil
	if got := expiryFromRevenueCat(&body); got != nil {
		t.Fatalf("expected nil expiry when no field is present, got %v", got)
	}
}

func TestNormalizeRevenueCatEvent_Renewal(t *testing.T) {
	raw := []byte(`{
		"api_version": "1.0",
		"event": {
			"type": "RENEWAL",
			"id": "evt_9",
			"app_user_id": "42",
			"product_id": "premium_yearly",
			"period_type": "NORMAL",
			"store": "PLAY_STORE",
			"transaction_id": "txn_77",
			"original_transaction_id": "txn_1",
			"purchased_at_ms": 1700000000000,
			"expiration_at_ms": 4102444800000,
			"event_timestamp_ms": 1700000001000
		}
	}`)

	event, err := ParseRevenueCatEvent(raw)
	if err != nil {
		t.Fatalf("ParseRevenueCatEvent: %v", err)
	}
	if !IsActionableRevenueCatEvent(event.Event.Type) {
		t.Fatalf("expected RENEWAL to be actionable")
	}

	update, err := NormalizeRevenueCatEvent(event, raw)
	if err != nil {
		t.Fatalf("NormalizeRevenueCatEvent: %v", err)
	}

	if update.SubscriptionID != "txn_1" {
		t.Fatalf("expected stable original transaction id, got %q", update.SubscriptionID)
	}
	if update.Provider != models.ProviderRevenueCat {
		t.Fatalf("unexpected provider %q", update.Provider)
	}
	if update.Status != models.SubStatusActive {
		t.Fatalf("expected future expiry to mean active, got %q", update.Status)
	}
	if update.UserID == nil || *update.UserID != 42 {
		t.Fatalf("expected user 42, got %v", update.UserID)
	}
	if update.PlanID != "premium_yearly" {
		t.Fatalf("unexpected plan %q", update.PlanID)
	}
	if update.EndDate == nil || update.EndDate.UnixMilli() != 4102444800000 {
		t.Fatalf("unexpected end date %v", update.EndDate)
	}
	if update.NextBillingDate == nil || !update.NextBillingDate.Equal(*update.EndDate) {
		t.Fatalf("expected next billing date to track expiry")
	}
	if update.IsTrial || update.TrialEndDate != nil {
		t.Fatalf("NORMAL period must not be marked trial")
	}
}

func TestNormalizeRevenueCatEvent_PastExpiryMeansExpired(t *testing.T) {
	raw := []byte(`{
		"event": {
			"type": "RENEWAL",
			"id": "evt_old",
			"app_user_id": "42",
			"expiration_at_ms": 1500000000000
		}
	}`)

	event, err := ParseRevenueCatEvent(raw)
	if err != nil {
		t.Fatalf("ParseRevenueCatEvent: %v", err)
	}
	update, err := NormalizeRevenueCatEvent(event, raw)
	if err != nil {
		t.Fatalf("NormalizeRevenueCatEvent: %v", err)
	}
	if update.Status != models.SubStatusExpired {
		t.Fatalf("expected past expiry to mean expired, got %q", update.Status)
	}
}

func TestNormalizeRevenueCatEvent_TerminalTypeWins(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{eventType: "CANCELLATION", want: models.SubStatusCancelled},
		{eventType: "EXPIRATION", want: models.SubStatusExpired},
		{eventType: "BILLING_ISSUE", want: models.SubStatusHalted},
	}

	for _, tt := range tests {
		raw := []byte(`{
			"event": {
				"type": "` + tt.eventType + `",
				"id": "evt_t",
				"app_user_id": "42",
				"original_transaction_id": "txn_1",
				"expiration_at_ms": 4102444800000,
				"event_timestamp_ms": 1700000001000
			}
		}`)

		event, err := ParseRevenueCatEvent(raw)
		if err != nil {
			t.Fatalf("%s: ParseRevenueCatEvent: %v", tt.eventType, err)
		}
		update, err := NormalizeRevenueCatEvent(event, raw)
		if err != nil {
			t.Fatalf("%s: NormalizeRevenueCatEvent: %v", tt.eventType, err)
		}
		if update.Status != tt.want {
			t.Fatalf("%s: expected terminal type to override future expiry, got %q", tt.eventType, update.Status)
		}
		if tt.eventType == "CANCELLATION" {
			if !update.UserCancelled {
				t.Fatalf("expected cancellation to mark user_cancelled")
			}
			if update.CancelledAt == nil || update.CancelledAt.UnixMilli() != 1700000001000 {
				t.Fatalf("expected cancelled_at from event timestamp, got %v", update.CancelledAt)
			}
		}
	}
}

func TestNormalizeRevenueCatEvent_Trial(t *testing.T) {
	raw := []byte(`{
		"event": {
			"type": "INITIAL_PURCHASE",
			"id": "evt_trial",
			"app_user_id": "42",
			"original_transaction_id": "txn_trial",
			"period_type": "TRIAL",
			"expiration_at_ms": 4102444800000
		}
	}`)

	event, err := ParseRevenueCatEvent(raw)
	if err != nil {
		t.Fatalf("ParseRevenueCatEvent: %v", err)
	}
	update, err := NormalizeRevenueCatEvent(event, raw)
	if err != nil {
		t.Fatalf("NormalizeRevenueCatEvent: %v", err)
	}
	if !update.IsTrial {
		t.Fatalf("expected TRIAL period to mark trial")
	}
	if update.TrialEndDate == nil || !update.TrialEndDate.Equal(*update.EndDate) {
		t.Fatalf("expected trial end date to track expiry, got %v", update.TrialEndDate)
	}
}

func TestNormalizeRevenueCatEvent_MissingSubscriptionID(t *testing.T) {
	raw := []byte(`{"event":{"type":"RENEWAL","app_user_id":"42"}}`)
	event, err := ParseRevenueCatEvent(raw)
	if err != nil {
		t.Fatalf("ParseRevenueCatEvent: %v", err)
	}
	if _, err := NormalizeRevenueCatEvent(event, raw); err != ErrMissingSubscriptionID {
		t.Fatalf("expected ErrMissingSubscriptionID, got %v", err)
	}
}

func TestIsActionableRevenueCatEvent(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: "TEST", want: false},
		{in: "test", want: false},
		{in: "SUBSCRIBER_ALIAS", want: false},
		{in: "TRANSFER", want: false},
		{in: "INITIAL_PURCHASE", want: true},
		{in: "RENEWAL", want: true},
		{in: "CANCELLATION", want: true},
		{in: "UNCANCELLATION", want: true},
	}

	for _, tt := range tests {
		if got := IsActionableRevenueCatEvent(tt.in); got != tt.want {
			t.Fatalf("IsActionableRevenueCatEvent(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
