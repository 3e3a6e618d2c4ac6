// Package changefeed delivers job row change notifications to in-process subscribers.
package changefeed

import (
	"context"
	"sync"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Event describes one change to a jobs row.
type Event struct {
	Op      Op     `json:"op"`
	JobID   string `json:"id"`
	Status  string `json:"status"`
	Pickup  string `json:"pickup,omitempty"`
	Dropoff string `json:"dropoff,omitempty"`
}

// Handler receives change events. Handlers run on the feed's delivery goroutine
// and should hand slow work off.
type Handler func(ctx context.Context, ev Event)

// Feed is a change subscription. The returned function unsubscribes.
type Feed interface {
	Subscribe(h Handler) (unsubscribe func())
}

// Broker fans events out to subscribers. It is the in-process half of every feed.
type Broker struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	next     int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{handlers: make(map[int]Handler)}
}

// Subscribe registers h until the returned function is called.
func (b *Broker) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every current subscriber.
func (b *Broker) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}

// Subscribers returns the number of registered handlers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

var _ Feed = (*Broker)(nil)
