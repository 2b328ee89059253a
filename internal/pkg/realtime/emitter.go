package realtime

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2/log"
)

// Emitter wraps the hub with the typed event helpers the billing pipeline
// calls. With a bridge attached, events travel through the shared broker so
// every instance delivers them; without one they dispatch locally.
type Emitter struct {
	hub    *Hub
	bridge *Bridge
}

var (
	globalEmitter *Emitter
	emitterOnce   sync.Once
)

// GetEmitter returns the global emitter bound to the global hub.
func GetEmitter() *Emitter {
	emitterOnce.Do(func() {
		globalEmitter = NewEmitter(GetHub(), nil)
	})
	return globalEmitter
}

func NewEmitter(hub *Hub, bridge *Bridge) *Emitter {
	return &Emitter{hub: hub, bridge: bridge}
}

// AttachBridge routes subsequent emits through the shared broker.
func (e *Emitter) AttachBridge(bridge *Bridge) {
	e.bridge = bridge
}

func (e *Emitter) emit(event Event) {
	if e.bridge != nil {
		if err := e.bridge.Publish(context.Background(), event); err == nil {
			// The bridge subscription redelivers to the local hub.
			return
		} else {
			log.Warnf("[Realtime] bridge publish failed, delivering locally: %v", err)
		}
	}
	e.hub.Dispatch(event)
}

// EmitSubscriptionCreated announces a first-seen subscription for a user.
func (e *Emitter) EmitSubscriptionCreated(userID uint, subscriptionID string, data interface{}) {
	event := NewEvent(EventSubscriptionCreated, userID)
	event.SubscriptionID = subscriptionID
	event.Data = data
	e.emit(event)
}

// EmitSubscriptionActivated announces a subscription entering active state.
func (e *Emitter) EmitSubscriptionActivated(userID uint, subscriptionID string, data interface{}) {
	event := NewEvent(EventSubscriptionActivated, userID)
	event.SubscriptionID = subscriptionID
	event.Data = data
	e.emit(event)
}

// EmitSubscriptionCancelled announces a cancellation or expiry.
func (e *Emitter) EmitSubscriptionCancelled(userID uint, subscriptionID string, data interface{}) {
	event := NewEvent(EventSubscriptionCancelled, userID)
	event.SubscriptionID = subscriptionID
	event.Data = data
	e.emit(event)
}

// EmitPaymentSuccess announces a successful charge.
func (e *Emitter) EmitPaymentSuccess(userID uint, paymentID string, data interface{}) {
	event := NewEvent(EventPaymentSuccess, userID)
	event.PaymentID = paymentID
	event.Data = data
	e.emit(event)
}

// EmitPaymentFailed announces a failed charge attempt.
func (e *Emitter) EmitPaymentFailed(userID uint, paymentID string, data interface{}) {
	event := NewEvent(EventPaymentFailed, userID)
	event.PaymentID = paymentID
	event.Data = data
	e.emit(event)
}
