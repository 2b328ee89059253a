package realtime

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// clientBuffer bounds how many undelivered events a single streaming
// connection may queue before it is treated as dead.
const clientBuffer = 16

// Client is one long-lived streaming connection owned by a single user. The
// stream handler consumes Ch; Done() closes when the client is deregistered.
type Client struct {
	ID     string
	UserID uint
	Ch     chan Event

	done     chan struct{}
	doneOnce sync.Once
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

// Hub is the per-process registry mapping user ids to their open streaming
// connections. It also carries a process-local subscriber bus so in-process
// consumers can observe the same events the streams receive.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*Client]struct{}

	busMu       sync.RWMutex
	subscribers []func(Event)

	heartbeatTicker *time.Ticker
	stopCh          chan struct{}
	wg              sync.WaitGroup
	running         bool
	runMu           sync.Mutex
}

var (
	globalHub *Hub
	hubOnce   sync.Once
)

// GetHub returns the global hub (singleton).
func GetHub() *Hub {
	hubOnce.Do(func() {
		globalHub = NewHub()
	})
	return globalHub
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uint]map[*Client]struct{}),
		stopCh:  make(chan struct{}),
	}
}

// AddClient registers a new streaming connection for the user.
func (h *Hub) AddClient(userID uint) *Client {
	client := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Ch:     make(chan Event, clientBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
	h.mu.Unlock()

	log.Infof("[Realtime] client %s connected for user %d", client.ID, userID)
	return client
}

// RemoveClient deregisters a connection and drops the user's registry entry
// entirely once its last connection is gone.
func (h *Hub) RemoveClient(client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	if set, ok := h.clients[client.UserID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	h.mu.Unlock()

	client.close()
	log.Infof("[Realtime] client %s disconnected for user %d", client.ID, client.UserID)
}

// SendToUser writes the event to every connection registered for the user and
// returns how many connections received it. A connection that is gone or can
// no longer keep up is pruned as a side effect; the caller never sees an
// error for it.
func (h *Hub) SendToUser(userID uint, event Event) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range targets {
		if h.deliver(client, event) {
			delivered++
		}
	}
	return delivered
}

// Broadcast sends the event to every registered connection. Administrative
// use and heartbeats only.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	targets := make([]*Client, 0)
	for _, set := range h.clients {
		for client := range set {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.deliver(client, event)
	}
}

func (h *Hub) deliver(client *Client, event Event) bool {
	select {
	case <-client.done:
		h.RemoveClient(client)
		return false
	case client.Ch <- event:
		return true
	default:
		// Buffer full: the consumer stopped draining, treat as dead.
		log.Warnf("[Realtime] pruning stalled client %s (user %d)", client.ID, client.UserID)
		h.RemoveClient(client)
		return false
	}
}

// Dispatch delivers an event to the owning user's connections and to every
// process-local bus subscriber. The pub/sub bridge calls this for events that
// arrived from other instances.
func (h *Hub) Dispatch(event Event) {
	if event.UserID != 0 {
		h.SendToUser(event.UserID, event)
	} else {
		h.Broadcast(event)
	}

	h.busMu.RLock()
	subscribers := h.subscribers
	h.busMu.RUnlock()
	for _, fn := range subscribers {
		fn(event)
	}
}

// Subscribe registers an in-process consumer for every dispatched event.
func (h *Hub) Subscribe(fn func(Event)) {
	h.busMu.Lock()
	h.subscribers = append(h.subscribers, fn)
	h.busMu.Unlock()
}

// ConnectionCount reports the number of open connections for a user.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// StartHeartbeat begins the periodic keep-alive writes to every open
// connection. The message carries no business data; it only keeps
// intermediary proxies from timing idle connections out.
func (h *Hub) StartHeartbeat(interval time.Duration) {
	h.runMu.Lock()
	defer h.runMu.Unlock()

	if h.running {
		return
	}
	h.stopCh = make(chan struct{})
	h.running = true

	h.heartbeatTicker = time.NewTicker(interval)
	h.wg.Add(1)
	go h.heartbeatWorker()

	log.Info("[Realtime] heartbeat started")
}

// Stop halts the heartbeat worker and waits for it to exit.
func (h *Hub) Stop() {
	h.runMu.Lock()
	defer h.runMu.Unlock()

	if !h.running {
		return
	}
	if h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
	}
	close(h.stopCh)
	h.wg.Wait()
	h.running = false

	log.Info("[Realtime] heartbeat stopped")
}

func (h *Hub) heartbeatWorker() {
	defer h.wg.Done()
	for {
		select {
		case <-h.stopCh:
			return
		case <-h.heartbeatTicker.C:
			h.Broadcast(NewEvent(EventHeartbeat, 0))
		}
	}
}
