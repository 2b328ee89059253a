package realtime

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventSubscriptionActivated, 42)

	if event.ID == "" {
		t.Fatalf("expected generated event id")
	}
	if event.Type != EventSubscriptionActivated || event.UserID != 42 {
		t.Fatalf("unexpected envelope %+v", event)
	}
	if event.Timestamp.IsZero() {
		t.Fatalf("expected timestamp set")
	}

	other := NewEvent(EventHeartbeat, 0)
	if other.ID == event.ID {
		t.Fatalf("expected unique ids per event")
	}
}

func TestEventJSONShape(t *testing.T) {
	event := NewEvent(EventPaymentSuccess, 7)
	event.PaymentID = "pay_1"
	event.Data = map[string]interface{}{"amount": 49900}

	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded["type"] != EventPaymentSuccess {
		t.Fatalf("unexpected type %v", decoded["type"])
	}
	if decoded["userId"] != float64(7) {
		t.Fatalf("unexpected userId %v", decoded["userId"])
	}
	if decoded["paymentId"] != "pay_1" {
		t.Fatalf("unexpected paymentId %v", decoded["paymentId"])
	}
	// Empty business fields stay off the wire.
	if _, ok := decoded["subscriptionId"]; ok {
		t.Fatalf("expected empty subscriptionId omitted")
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	event := NewEvent(EventConnected, 1)
	if err := WriteSSE(w, event); err != nil {
		t.Fatalf("WriteSSE: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "data: ") {
		t.Fatalf("expected SSE data frame, got %q", out)
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Fatalf("expected frame terminated by blank line, got %q", out)
	}

	var decoded Event
	if err := json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(out, "data: "), "\n\n")), &decoded); err != nil {
		t.Fatalf("frame payload is not valid json: %v", err)
	}
	if decoded.Type != EventConnected || decoded.UserID != 1 {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
}
