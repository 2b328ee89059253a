package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shravanlabs/shravan/app/models"
	"github.com/shravanlabs/shravan/internal/pkg/env"
)

const defaultRazorpayAPIBaseURL = "https://api.razorpay.com/v1"

// RazorpayNotes is the free-form notes object Razorpay attaches to most
// entities. The API serializes an empty notes object as [] instead of {}, so
// plain map unmarshalling breaks on exactly the payloads that carry no notes.
type RazorpayNotes map[string]string

func (n *RazorpayNotes) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" || strings.HasPrefix(trimmed, "[") {
		*n = RazorpayNotes{}
		return nil
	}

	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(RazorpayNotes, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		}
	}
	*n = out
	return nil
}

// UserID extracts the internal user reference our checkout flow plants in the
// notes object when creating the subscription or order.
func (n RazorpayNotes) UserID() *uint {
	for _, key := range []string{"user_id", "userId", "uid"} {
		if raw, ok := n[key]; ok {
			if id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32); err == nil && id > 0 {
				u := uint(id)
				return &u
			}
		}
	}
	return nil
}

type RazorpaySubscriptionEntity struct {
	ID           string        `json:"id"`
	PlanID       string        `json:"plan_id"`
	CustomerID   string        `json:"customer_id"`
	Status       string        `json:"status"`
	CurrentStart *int64        `json:"current_start"`
	CurrentEnd   *int64        `json:"current_end"`
	ChargeAt     *int64        `json:"charge_at"`
	StartAt      *int64        `json:"start_at"`
	EndAt        *int64        `json:"end_at"`
	EndedAt      *int64        `json:"ended_at"`
	PaidCount    int           `json:"paid_count"`
	TotalCount   int           `json:"total_count"`
	Notes        RazorpayNotes `json:"notes"`
}

type RazorpayPaymentEntity struct {
	ID        string        `json:"id"`
	Amount    int64         `json:"amount"`
	Currency  string        `json:"currency"`
	Status    string        `json:"status"`
	OrderID   string        `json:"order_id"`
	InvoiceID string        `json:"invoice_id"`
	Method    string        `json:"method"`
	Email     string        `json:"email"`
	Contact   string        `json:"contact"`
	Notes     RazorpayNotes `json:"notes"`
}

// RazorpayEvent is the webhook envelope: {"entity":"event","event":"...",
// "payload":{"subscription":{"entity":{...}},"payment":{"entity":{...}}}}.
type RazorpayEvent struct {
	Entity    string `json:"entity"`
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Subscription struct {
			Entity *RazorpaySubscriptionEntity `json:"entity"`
		} `json:"subscription"`
		Payment struct {
			Entity *RazorpayPaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func ParseRazorpayEvent(payload []byte) (*RazorpayEvent, error) {
	var event RazorpayEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	if strings.TrimSpace(event.Event) == "" {
		return nil, errors.New("razorpay payload missing event type")
	}
	return &event, nil
}

// IsSubscriptionEvent reports whether the event describes subscription
// lifecycle state (as opposed to a payment-only event).
func (e *RazorpayEvent) IsSubscriptionEvent() bool {
	return strings.HasPrefix(e.Event, "subscription.")
}

// IsPaymentEvent reports whether the event describes a discrete charge attempt.
func (e *RazorpayEvent) IsPaymentEvent() bool {
	return strings.HasPrefix(e.Event, "payment.")
}

// razorpayStatusMap translates Razorpay's subscription status vocabulary onto
// the canonical status enum. Unknown statuses deliberately map to active:
// keeping access for a vocabulary drift beats cutting a paying user off.
var razorpayStatusMap = map[string]string{
	"created":       models.SubStatusPending,
	"authenticated": models.SubStatusAuthenticated,
	"active":        models.SubStatusActive,
	"pending":       models.SubStatusPending,
	"halted":        models.SubStatusHalted,
	"cancelled":     models.SubStatusCancelled,
	"completed":     models.SubStatusCompleted,
	"expired":       models.SubStatusExpired,
	"paused":        models.SubStatusPaused,
	"resumed":       models.SubStatusActive,
}

// razorpayEventStatusOverride lists the event types that assert a state by
// themselves. They win over whatever status the embedded entity reports,
// since out-of-date entities ride along on redelivered events.
var razorpayEventStatusOverride = map[string]string{
	"subscription.authenticated": models.SubStatusAuthenticated,
	"subscription.activated":     models.SubStatusActive,
	"subscription.charged":       models.SubStatusActive,
	"subscription.pending":       models.SubStatusPending,
	"subscription.halted":        models.SubStatusHalted,
	"subscription.cancelled":     models.SubStatusCancelled,
	"subscription.completed":     models.SubStatusCompleted,
	"subscription.paused":        models.SubStatusPaused,
	"subscription.resumed":       models.SubStatusActive,
}

func RazorpayStatusToSubscriptionStatus(status string) string {
	if mapped, ok := razorpayStatusMap[strings.ToLower(strings.TrimSpace(status))]; ok {
		return mapped
	}
	return models.SubStatusActive
}

// NormalizeRazorpaySubscription maps a subscription.* webhook event onto the
// canonical SubscriptionUpdate. It is a pure transformation; enrichment via
// the Razorpay API happens separately and best-effort.
func NormalizeRazorpaySubscription(event *RazorpayEvent, rawPayload []byte) (SubscriptionUpdate, error) {
	sub := event.Payload.Subscription.Entity
	if sub == nil || strings.TrimSpace(sub.ID) == "" {
		return SubscriptionUpdate{}, ErrMissingSubscriptionID
	}

	status := RazorpayStatusToSubscriptionStatus(sub.Status)
	if override, ok := razorpayEventStatusOverride[event.Event]; ok {
		status = override
	}

	update := SubscriptionUpdate{
		SubscriptionID:  strings.TrimSpace(sub.ID),
		UserID:          sub.Notes.UserID(),
		PlanID:          strings.TrimSpace(sub.PlanID),
		Status:          status,
		Provider:        models.ProviderRazorpay,
		StartDate:       timeFromEpochSeconds(sub.StartAt, sub.CurrentStart),
		EndDate:         timeFromEpochSeconds(sub.EndAt, sub.CurrentEnd),
		NextBillingDate: timeFromEpochSeconds(sub.ChargeAt),
		Metadata:        buildMetadata(models.ProviderRazorpay, event.Event, event.CreatedAt, rawPayload, map[string]string{"customer_id": sub.CustomerID}),
	}

	if status == models.SubStatusCancelled {
		update.UserCancelled = true
		cancelledAt := timeFromEpochSeconds(sub.EndedAt)
		if cancelledAt == nil {
			now := time.Now()
			cancelledAt = &now
		}
		update.CancelledAt = cancelledAt
	}

	return update, nil
}

// NormalizeRazorpayPayment maps a payment.* webhook event onto PaymentInput.
// SubscriptionID is left empty here; the caller may resolve it through the
// invoice lookup when the payment carries an invoice reference.
func NormalizeRazorpayPayment(event *RazorpayEvent, rawPayload []byte) (PaymentInput, error) {
	payment := event.Payload.Payment.Entity
	if payment == nil || strings.TrimSpace(payment.ID) == "" {
		return PaymentInput{}, ErrMissingPaymentID
	}

	status := strings.ToLower(strings.TrimSpace(payment.Status))
	switch event.Event {
	case "payment.failed":
		status = models.PaymentStatusFailed
	case "payment.authorized":
		status = models.PaymentStatusAuthorized
	case "payment.captured":
		status = models.PaymentStatusCaptured
	}

	return PaymentInput{
		PaymentID: strings.TrimSpace(payment.ID),
		Status:    status,
		Amount:    payment.Amount,
		Currency:  strings.ToUpper(strings.TrimSpace(payment.Currency)),
		Method:    strings.TrimSpace(payment.Method),
		UserID:    payment.Notes.UserID(),
		InvoiceID: strings.TrimSpace(payment.InvoiceID),
		Metadata:  buildMetadata(models.ProviderRazorpay, event.Event, event.CreatedAt, rawPayload, map[string]string{"order_id": payment.OrderID}),
	}, nil
}

// RazorpayInvoice is the subset of the invoice API response used for
// payment-to-subscription correlation.
type RazorpayInvoice struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`
	CustomerID     string `json:"customer_id"`
	Status         string `json:"status"`
}

// RazorpayPlan is the subset of the plan API response used for enrichment.
type RazorpayPlan struct {
	ID       string `json:"id"`
	Period   string `json:"period"`
	Interval int    `json:"interval"`
	Item     struct {
		Name     string `json:"name"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	} `json:"item"`
}

// RazorpayClient performs authenticated lookups against the Razorpay REST API.
// Every call carries an explicit timeout via its context plus the client-level
// deadline; webhook handling must never block on the provider indefinitely.
type RazorpayClient struct {
	KeyID      string
	KeySecret  string
	APIBaseURL string

	HTTPClient *http.Client
}

func NewRazorpayClientFromEnv() *RazorpayClient {
	return &RazorpayClient{
		KeyID:      strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_ID", "")),
		KeySecret:  strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_SECRET", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("RAZORPAY_API_BASE_URL", defaultRazorpayAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetInvoice fetches an invoice, used to resolve which subscription a charge
// belongs to.
func (c *RazorpayClient) GetInvoice(ctx context.Context, invoiceID string) (*RazorpayInvoice, error) {
	var invoice RazorpayInvoice
	if err := c.getJSON(ctx, "/invoices/"+strings.TrimSpace(invoiceID), &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetPlan fetches plan details for enrichment of normalized updates.
func (c *RazorpayClient) GetPlan(ctx context.Context, planID string) (*RazorpayPlan, error) {
	var plan RazorpayPlan
	if err := c.getJSON(ctx, "/plans/"+strings.TrimSpace(planID), &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (c *RazorpayClient) getJSON(ctx context.Context, path string, out any) error {
	if strings.TrimSpace(c.KeyID) == "" || strings.TrimSpace(c.KeySecret) == "" {
		return errors.New("RAZORPAY_KEY_ID/RAZORPAY_KEY_SECRET are not configured")
	}

	url := strings.TrimRight(c.APIBaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("razorpay request %s failed: status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return json.Unmarshal(body, out)
}

// timeFromEpochSeconds returns the first candidate that carries a positive
// epoch-seconds value.
func timeFromEpochSeconds(candidates ...*int64) *time.Time {
	for _, c := range candidates {
		if c != nil && *c > 0 {
			t := time.Unix(*c, 0).UTC()
			return &t
		}
	}
	return nil
}

// buildMetadata wraps the raw provider payload verbatim together with a small
// set of extracted identifiers. It exists for support visibility only and is
// never read back for logic.
func buildMetadata(provider, eventType string, eventTimestamp int64, rawPayload []byte, refs map[string]string) string {
	meta := map[string]any{
		"provider":        provider,
		"event":           eventType,
		"event_timestamp": eventTimestamp,
		"raw":             json.RawMessage(rawPayload),
	}
	for k, v := range refs {
		if strings.TrimSpace(v) != "" {
			meta[k] = v
		}
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		// Fall back to the untouched payload; metadata must never block processing.
		return string(rawPayload)
	}
	return string(encoded)
}
