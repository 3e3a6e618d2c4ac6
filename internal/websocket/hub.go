// Package websocket pushes refreshed job lists to connected dashboards.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"minuteride/internal/changefeed"
	"minuteride/internal/domain"
	"minuteride/internal/observability"
)

const refreshTimeout = 10 * time.Second

// JobLister returns the job list the actor is allowed to see, ready to encode.
type JobLister func(ctx context.Context, actor domain.Actor) (any, error)

// Message is what clients receive on every refresh.
type Message struct {
	Type   string          `json:"type"`
	Op     changefeed.Op   `json:"op,omitempty"`
	JobID  string          `json:"job_id,omitempty"`
	Jobs   json.RawMessage `json:"jobs"`
	SentAt string          `json:"sent_at"`
}

// Hub tracks connected clients and sends each its own view of the job board
// whenever the jobs table changes.
type Hub struct {
	lister JobLister
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}

	// pending coalesces bursts of change events into one refresh.
	pending chan changefeed.Event
}

// NewHub creates a new Hub.
func NewHub(lister JobLister, logger *slog.Logger) *Hub {
	return &Hub{
		lister:  lister,
		logger:  logger,
		clients: make(map[*Client]struct{}),
		pending: make(chan changefeed.Event, 1),
	}
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	observability.StreamClients.Inc()
	h.logger.Info("stream client connected", "actor_id", c.Actor.ID, "role", c.Actor.Role, "clients", n)
}

// Unregister removes a client and closes its send queue. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		observability.StreamClients.Dec()
		h.logger.Info("stream client disconnected", "actor_id", c.Actor.ID, "clients", n)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleJobChange schedules a refresh. It never blocks the feed.
func (h *Hub) HandleJobChange(_ context.Context, ev changefeed.Event) {
	select {
	case h.pending <- ev:
	default:
		// a refresh is already queued and will read the latest state
	}
}

// Run performs queued refreshes until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.pending:
			rctx, cancel := context.WithTimeout(ctx, refreshTimeout)
			h.Refresh(rctx, ev)
			cancel()
		}
	}
}

// Refresh sends every client its current job list.
func (h *Hub) Refresh(ctx context.Context, ev changefeed.Event) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	// Clients with the same actor share one listing.
	views := make(map[domain.Actor][]byte)
	for _, c := range clients {
		data, ok := views[c.Actor]
		if !ok {
			var err error
			data, err = h.render(ctx, c.Actor, ev)
			if err != nil {
				h.logger.Error("stream refresh failed", "actor_id", c.Actor.ID, "error", err)
				continue
			}
			views[c.Actor] = data
		}
		h.deliver(c, data)
	}
}

// SendInitial sends a newly connected client its current job list.
func (h *Hub) SendInitial(ctx context.Context, c *Client) {
	data, err := h.render(ctx, c.Actor, changefeed.Event{})
	if err != nil {
		h.logger.Error("stream snapshot failed", "actor_id", c.Actor.ID, "error", err)
		return
	}
	h.deliver(c, data)
}

func (h *Hub) render(ctx context.Context, actor domain.Actor, ev changefeed.Event) ([]byte, error) {
	jobs, err := h.lister(ctx, actor)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(jobs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{
		Type:   "jobs",
		Op:     ev.Op,
		JobID:  ev.JobID,
		Jobs:   raw,
		SentAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// deliver queues data for c, dropping the client if its buffer is full.
func (h *Hub) deliver(c *Client, data []byte) {
	h.mu.RLock()
	_, ok := h.clients[c]
	if ok {
		select {
		case c.send <- data:
			h.mu.RUnlock()
			return
		default:
		}
	}
	h.mu.RUnlock()

	if ok {
		h.logger.Warn("stream client too slow, disconnecting", "actor_id", c.Actor.ID)
		h.Unregister(c)
	}
}
