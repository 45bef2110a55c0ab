package events

import (
	"sync"
	"time"

	"backend/internal/models"
)

// Topics published over the bus.
const (
	TopicCartChanged    = "cart.changed"
	TopicOrderCompleted = "order.completed"
	TopicSalesUpdated   = "sales.updated"
)

// CartChanged announces that a session's cart was mutated. Subscribers
// re-read from the store; the payload carries no cart contents.
type CartChanged struct {
	Session string
}

// OrderCompleted is emitted exactly once per finalized order and is the
// trigger the sales aggregator consumes.
type OrderCompleted struct {
	OrderID   string
	Total     int64
	Items     []models.CartLine
	Timestamp time.Time
}

// SalesUpdated announces that the sales rollup snapshot changed.
type SalesUpdated struct{}

// Bus is the in-process notification channel between views. Delivery is
// synchronous: Publish returns only after every subscriber ran, so a caller
// reading right after a mutation observes the new state everywhere.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]map[int]func(any)
	nextID int
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]func(any))}
}

// Subscribe registers fn for a topic and returns an unsubscribe func.
func (b *Bus) Subscribe(topic string, fn func(payload any)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func(any))
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish invokes every subscriber of topic with the payload.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.Lock()
	fns := make([]func(any), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}
