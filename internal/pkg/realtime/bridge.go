package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel the bridge publishes on.
const DefaultChannel = "realtime:events"

// Bridge fans events out across server instances through Redis pub/sub. A
// client connected to instance A still receives events caused by a webhook
// delivered to instance B: every instance publishes to the shared channel and
// every instance's bridge dispatches received events into its local hub.
type Bridge struct {
	rdb     *redis.Client
	hub     *Hub
	channel string

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	runMu   sync.Mutex
	running bool
}

func NewBridge(rdb *redis.Client, hub *Hub, channel string) *Bridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bridge{
		rdb:     rdb,
		hub:     hub,
		channel: channel,
	}
}

// Publish pushes the event onto the shared channel. The caller falls back to
// local dispatch when this fails, so a broker outage degrades to
// single-instance delivery instead of losing the event entirely.
func (b *Bridge) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

// Start subscribes to the shared channel and dispatches received events into
// the local hub until Stop is called.
func (b *Bridge) Start() {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	if b.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.running = true

	pubsub := b.rdb.Subscribe(ctx, b.channel)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Warnf("[Realtime] dropping undecodable bridge message: %v", err)
					continue
				}
				b.hub.Dispatch(event)
			}
		}
	}()

	log.Infof("[Realtime] pub/sub bridge subscribed to %s", b.channel)
}

// Stop unsubscribes and waits for the dispatch loop to exit.
func (b *Bridge) Stop() {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	if !b.running {
		return
	}
	b.cancel()
	b.wg.Wait()
	b.running = false
}
