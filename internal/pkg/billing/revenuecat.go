package billing

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shravanlabs/shravan/app/models"
)

// RevenueCatEntitlement is the optional entitlement sub-object some event
// variants embed; it is the last-resort source for expiry timestamps.
type RevenueCatEntitlement struct {
	ExpiresAtMs  *int64 `json:"expires_at_ms"`
	ExpiresAt    *int64 `json:"expires_at"`
	ProductID    string `json:"product_identifier"`
	PeriodType   string `json:"period_type"`
}

// RevenueCatEventBody is the aggregator's event shape. Field availability
// varies per event type; everything here is optional except type.
type RevenueCatEventBody struct {
	Type                  string                 `json:"type"`
	ID                    string                 `json:"id"`
	AppUserID             string                 `json:"app_user_id"`
	OriginalAppUserID     string                 `json:"original_app_user_id"`
	ProductID             string                 `json:"product_id"`
	PeriodType            string                 `json:"period_type"`
	Store                 string                 `json:"store"`
	Environment           string                 `json:"environment"`
	TransactionID         string                 `json:"transaction_id"`
	OriginalTransactionID string                 `json:"original_transaction_id"`
	EntitlementID         string                 `json:"entitlement_id"`
	EntitlementIDs        []string               `json:"entitlement_ids"`
	CancelReason          string                 `json:"cancel_reason"`
	PurchasedAtMs         *int64                 `json:"purchased_at_ms"`
	PurchasedAt           *int64                 `json:"purchased_at"`
	ExpirationAtMs        *int64                 `json:"expiration_at_ms"`
	ExpirationAt          *int64                 `json:"expiration_at"`
	EventTimestampMs      int64                  `json:"event_timestamp_ms"`
	Entitlement           *RevenueCatEntitlement `json:"entitlement"`
}

type RevenueCatEvent struct {
	APIVersion string              `json:"api_version"`
	Event      RevenueCatEventBody `json:"event"`
}

func ParseRevenueCatEvent(payload []byte) (*RevenueCatEvent, error) {
	var event RevenueCatEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	if strings.TrimSpace(event.Event.Type) == "" {
		return nil, errors.New("revenuecat payload missing event type")
	}
	return &event, nil
}

// revenueCatTerminalStatus lists the event types that assert a state on their
// own and win over the expiry-derived status.
var revenueCatTerminalStatus = map[string]string{
	"CANCELLATION":  models.SubStatusCancelled,
	"EXPIRATION":    models.SubStatusExpired,
	"BILLING_ISSUE": models.SubStatusHalted,
}

// subscriptionIDFromRevenueCat picks the external subscription identifier from
// the aggregator's inconsistent candidate fields, in fixed priority order. The
// original transaction id is stable across renewals, which is exactly what the
// upsert key needs.
func subscriptionIDFromRevenueCat(body *RevenueCatEventBody) string {
	for _, candidate := range []string{body.OriginalTransactionID, body.TransactionID, body.ID} {
		if id := strings.TrimSpace(candidate); id != "" {
			return id
		}
	}
	return ""
}

// userIDFromAppUserID resolves the aggregator's customer reference back to an
// internal user id. The mobile clients register with RevenueCat using the
// numeric internal id as app_user_id.
func userIDFromAppUserID(candidates ...string) *uint {
	for _, candidate := range candidates {
		raw := strings.TrimSpace(candidate)
		// Anonymous RevenueCat ids look like "$RCAnonymousID:..." and carry
		// no resolvable user reference.
		if raw == "" || strings.HasPrefix(raw, "$RCAnonymous") {
			continue
		}
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil && id > 0 {
			u := uint(id)
			return &u
		}
	}
	return nil
}

// expiryFromRevenueCat resolves the entitlement expiry from whichever
// timestamp representation the payload provides: epoch milliseconds first,
// epoch seconds next, the entitlement sub-object last.
func expiryFromRevenueCat(body *RevenueCatEventBody) *time.Time {
	if t := timeFromEpochMillis(body.ExpirationAtMs); t != nil {
		return t
	}
	if t := timeFromEpochSeconds(body.ExpirationAt); t != nil {
		return t
	}
	if body.Entitlement != nil {
		if t := timeFromEpochMillis(body.Entitlement.ExpiresAtMs); t != nil {
			return t
		}
		return timeFromEpochSeconds(body.Entitlement.ExpiresAt)
	}
	return nil
}

// NormalizeRevenueCatEvent maps an aggregator webhook onto the canonical
// SubscriptionUpdate. Pure transformation, no shared state with the Razorpay
// normalizer.
func NormalizeRevenueCatEvent(event *RevenueCatEvent, rawPayload []byte) (SubscriptionUpdate, error) {
	body := &event.Event

	subscriptionID := subscriptionIDFromRevenueCat(body)
	if subscriptionID == "" {
		return SubscriptionUpdate{}, ErrMissingSubscriptionID
	}

	expiry := expiryFromRevenueCat(body)

	// Expiry decides between active and expired; an event type asserting a
	// terminal state always wins over the computed value.
	status := models.SubStatusActive
	if expiry != nil && expiry.Before(time.Now()) {
		status = models.SubStatusExpired
	}
	if terminal, ok := revenueCatTerminalStatus[strings.ToUpper(strings.TrimSpace(body.Type))]; ok {
		status = terminal
	}

	isTrial := strings.EqualFold(body.PeriodType, "TRIAL")

	update := SubscriptionUpdate{
		SubscriptionID:  subscriptionID,
		UserID:          userIDFromAppUserID(body.AppUserID, body.OriginalAppUserID),
		PlanID:          strings.TrimSpace(body.ProductID),
		Status:          status,
		Provider:        models.ProviderRevenueCat,
		StartDate:       firstTime(timeFromEpochMillis(body.PurchasedAtMs), timeFromEpochSeconds(body.PurchasedAt)),
		EndDate:         expiry,
		NextBillingDate: expiry,
		IsTrial:         isTrial,
		Metadata: buildMetadata(models.ProviderRevenueCat, body.Type, body.EventTimestampMs/1000, rawPayload, map[string]string{
			"store":                   body.Store,
			"environment":             body.Environment,
			"transaction_id":          body.TransactionID,
			"original_transaction_id": body.OriginalTransactionID,
			"entitlements":            strings.Join(body.EntitlementIDs, ","),
		}),
	}

	if isTrial {
		update.TrialEndDate = expiry
	}

	if status == models.SubStatusCancelled {
		update.UserCancelled = true
		cancelledAt := timeFromEpochMillis(&body.EventTimestampMs)
		if cancelledAt == nil {
			now := time.Now()
			cancelledAt = &now
		}
		update.CancelledAt = cancelledAt
	}

	return update, nil
}

// IsActionableRevenueCatEvent filters event types that carry no subscription
// state for us (TEST pings, subscriber aliasing).
func IsActionableRevenueCatEvent(eventType string) bool {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case "TEST", "SUBSCRIBER_ALIAS", "TRANSFER":
		return false
	default:
		return true
	}
}

func timeFromEpochMillis(candidates ...*int64) *time.Time {
	for _, c := range candidates {
		if c != nil && *c > 0 {
			t := time.UnixMilli(*c).UTC()
			return &t
		}
	}
	return nil
}

func firstTime(candidates ...*time.Time) *time.Time {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}
