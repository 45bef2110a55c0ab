package storage

import (
	"context"
	"sync"
)

// MemoryBackend is the shared in-memory snapshot backing. Every Attach call
// produces an independent handle over the same data. A write through one
// handle synchronously notifies watchers on every other handle, and never
// the writer's own.
type MemoryBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	handles []*MemoryStore
}

// NewMemoryBackend returns an empty shared backing.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Attach returns a new handle over the shared data.
func (b *MemoryBackend) Attach() *MemoryStore {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := &MemoryStore{backend: b}
	b.handles = append(b.handles, h)
	return h
}

func (b *MemoryBackend) write(writer *MemoryStore, key string, data []byte) {
	b.mu.Lock()
	if data == nil {
		delete(b.data, key)
	} else {
		stored := make([]byte, len(data))
		copy(stored, data)
		b.data[key] = stored
	}
	handles := make([]*MemoryStore, len(b.handles))
	copy(handles, b.handles)
	b.mu.Unlock()

	ev := ChangeEvent{Key: key, NewValue: data}
	for _, h := range handles {
		if h != writer {
			h.deliver(ev)
		}
	}
}

func (b *MemoryBackend) read(key string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored, ok := b.data[key]
	if !ok {
		return nil
	}
	out := make([]byte, len(stored))
	copy(out, stored)
	return out
}

// MemoryStore is one handle ("tab") over a MemoryBackend.
type MemoryStore struct {
	backend *MemoryBackend

	mu       sync.Mutex
	watchers map[string]map[int]func(ChangeEvent)
	nextID   int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a single-handle store over a fresh backend,
// convenient when cross-handle delivery is not under test.
func NewMemoryStore() *MemoryStore {
	return NewMemoryBackend().Attach()
}

func (s *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	return s.backend.read(key), nil
}

func (s *MemoryStore) Save(ctx context.Context, key string, data []byte) error {
	s.backend.write(s, key, data)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.backend.write(s, key, nil)
	return nil
}

func (s *MemoryStore) Watch(key string, fn func(ChangeEvent)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watchers == nil {
		s.watchers = make(map[string]map[int]func(ChangeEvent))
	}
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[int]func(ChangeEvent))
	}
	id := s.nextID
	s.nextID++
	s.watchers[key][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers[key], id)
	}
}

func (s *MemoryStore) deliver(ev ChangeEvent) {
	s.mu.Lock()
	fns := make([]func(ChangeEvent), 0, len(s.watchers[ev.Key]))
	for _, fn := range s.watchers[ev.Key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
