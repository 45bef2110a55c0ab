package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"sync"

	"backend/internal/events"
	"backend/internal/models"
	"backend/internal/storage"
)

// Store owns the authoritative cart for one session and keeps every view of
// it consistent. Local mutations persist the snapshot and notify in-process
// subscribers before returning; writes arriving from another handle of the
// backing storage replace the in-memory state wholesale (last writer wins,
// no merge of concurrent edits).
type Store struct {
	snapshots storage.Store
	bus       *events.Bus
	session   string
	key       string

	mu        sync.Mutex
	lines     models.Cart
	lastSaved []byte
	subs      map[int]func()
	nextID    int

	cancelWatch func()
}

// New returns a store for the session. Call Load before first use and Close
// when the session goes away.
func New(snapshots storage.Store, bus *events.Bus, session string) *Store {
	s := &Store{
		snapshots: snapshots,
		bus:       bus,
		session:   session,
		key:       storage.CartKey(session),
		subs:      make(map[int]func()),
	}
	s.cancelWatch = snapshots.Watch(s.key, s.handleExternalChange)
	return s
}

// Session returns the session key this store belongs to.
func (s *Store) Session() string {
	return s.session
}

// Load reads the persisted snapshot. A missing or unparseable snapshot
// yields an empty cart; loading alone never writes one back.
func (s *Store) Load(ctx context.Context) {
	data, err := s.snapshots.Load(ctx, s.key)
	if err != nil {
		log.Println("[CART] [ERROR] snapshot read failed, starting empty:", err)
		data = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = decodeSnapshot(data)
	s.lastSaved = data
}

// AddItem appends a new line with quantity 1, or bumps the quantity of the
// existing line for the same item.
func (s *Store) AddItem(ctx context.Context, itemID, name string, unitPrice int64) error {
	s.mu.Lock()
	if i := s.lines.Find(itemID); i >= 0 {
		s.lines[i].Quantity++
	} else {
		s.lines = append(s.lines, models.CartLine{
			ItemID:    itemID,
			Name:      name,
			UnitPrice: unitPrice,
			Quantity:  1,
		})
	}
	return s.persistLocked(ctx)
}

// SetQuantity sets the line's quantity; zero or less removes the line.
func (s *Store) SetQuantity(ctx context.Context, itemID string, quantity int) error {
	s.mu.Lock()
	i := s.lines.Find(itemID)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	if quantity <= 0 {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	} else {
		s.lines[i].Quantity = quantity
	}
	return s.persistLocked(ctx)
}

// RemoveItem drops the line if present. An absent item is a no-op.
func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	s.mu.Lock()
	i := s.lines.Find(itemID)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	return s.persistLocked(ctx)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.lines = nil
	return s.persistLocked(ctx)
}

// Lines returns a copy of the current cart.
func (s *Store) Lines() models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(models.Cart, len(s.lines))
	copy(out, s.lines)
	return out
}

// ItemCount returns the total quantity across all lines.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines.ItemCount()
}

// Subtotal returns the cart value before tax, in minor units.
func (s *Store) Subtotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines.Subtotal()
}

// Subscribe registers fn to run whenever the cart changes, whether the
// change originated here or was detected from another handle's write.
// It returns an unsubscribe func.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Close detaches the store from storage change delivery.
func (s *Store) Close() {
	if s.cancelWatch != nil {
		s.cancelWatch()
	}
}

// persistLocked writes the snapshot if it differs from what is already
// stored, then notifies subscribers and the bus. It releases s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	var data []byte
	if len(s.lines) > 0 {
		encoded, err := json.Marshal(s.lines)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		data = encoded
	}

	if bytes.Equal(data, s.lastSaved) {
		s.mu.Unlock()
		return nil
	}

	var err error
	if data == nil {
		err = s.snapshots.Delete(ctx, s.key)
	} else {
		err = s.snapshots.Save(ctx, s.key, data)
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.lastSaved = data
	subs := s.subscribersLocked()
	s.mu.Unlock()

	s.bus.Publish(events.TopicCartChanged, events.CartChanged{Session: s.session})
	for _, fn := range subs {
		fn()
	}
	return nil
}

// handleExternalChange replaces in-memory state with the snapshot written
// by another handle. Last writer wins.
func (s *Store) handleExternalChange(ev storage.ChangeEvent) {
	s.mu.Lock()
	if bytes.Equal(ev.NewValue, s.lastSaved) {
		s.mu.Unlock()
		return
	}
	s.lines = decodeSnapshot(ev.NewValue)
	s.lastSaved = ev.NewValue
	subs := s.subscribersLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func (s *Store) subscribersLocked() []func() {
	subs := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func decodeSnapshot(data []byte) models.Cart {
	if len(data) == 0 {
		return nil
	}
	var lines models.Cart
	if err := json.Unmarshal(data, &lines); err != nil {
		log.Println("[CART] [ERROR] snapshot unparseable, starting empty:", err)
		return nil
	}
	return lines
}
