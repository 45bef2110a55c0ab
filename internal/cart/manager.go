package cart

import (
	"context"
	"sync"

	"backend/internal/events"
	"backend/internal/storage"
)

// Manager hands out one Store per session key. Stores are created lazily on
// first use and loaded from storage before being returned.
type Manager struct {
	snapshots storage.Store
	bus       *events.Bus

	mu     sync.Mutex
	stores map[string]*Store
}

// NewManager returns an empty manager over the given storage and bus.
func NewManager(snapshots storage.Store, bus *events.Bus) *Manager {
	return &Manager{
		snapshots: snapshots,
		bus:       bus,
		stores:    make(map[string]*Store),
	}
}

// Session returns the store for the session, creating and loading it on
// first use.
func (m *Manager) Session(ctx context.Context, session string) *Store {
	m.mu.Lock()
	store, ok := m.stores[session]
	m.mu.Unlock()
	if ok {
		return store
	}

	store = New(m.snapshots, m.bus, session)
	store.Load(ctx)

	m.mu.Lock()
	if existing, ok := m.stores[session]; ok {
		m.mu.Unlock()
		store.Close()
		return existing
	}
	m.stores[session] = store
	m.mu.Unlock()
	return store
}

// Close detaches every store from storage change delivery.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, store := range m.stores {
		store.Close()
	}
	m.stores = make(map[string]*Store)
}
