package realtime

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventConnected             = "connected"
	EventHeartbeat             = "heartbeat"
	EventSubscriptionCreated   = "subscription_created"
	EventSubscriptionActivated = "subscription_activated"
	EventSubscriptionCancelled = "subscription_cancelled"
	EventPaymentSuccess        = "payment_success"
	EventPaymentFailed         = "payment_failed"
)

// Event is the canonical envelope pushed to streaming clients and across the
// pub/sub bridge. Heartbeats and connection acks use the same shape with the
// business fields empty.
type Event struct {
	ID             string      `json:"id"`
	Type           string      `json:"type"`
	UserID         uint        `json:"userId,omitempty"`
	SubscriptionID string      `json:"subscriptionId,omitempty"`
	PaymentID      string      `json:"paymentId,omitempty"`
	Data           interface{} `json:"data,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// NewEvent builds an envelope with a fresh id and current timestamp.
func NewEvent(eventType string, userID uint) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

// WriteSSE serializes the event in Server-Sent Events framing: one JSON object
// per message on a single data line.
func WriteSSE(w *bufio.Writer, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}
