package storage

import (
	"bytes"
	"context"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const snapshotCollection = "snapshots"

type snapshotDocument struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoStore keeps each snapshot in its own document and replaces the whole
// document on save. Changes written by other processes are picked up by a
// long-interval poll; the poll is a defensive fallback, same-process views
// are notified through the event bus before it ever runs.
type MongoStore struct {
	col      *mongo.Collection
	interval time.Duration

	mu       sync.Mutex
	watchers map[string]map[int]func(ChangeEvent)
	lastSeen map[string][]byte
	nextID   int
	done     chan struct{}
	started  bool
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore returns a store over the snapshots collection. pollInterval
// bounds how stale another process's view can get; zero disables polling.
func NewMongoStore(db *mongo.Database, pollInterval time.Duration) *MongoStore {
	return &MongoStore{
		col:      db.Collection(snapshotCollection),
		interval: pollInterval,
		watchers: make(map[string]map[int]func(ChangeEvent)),
		lastSeen: make(map[string][]byte),
		done:     make(chan struct{}),
	}
}

func (s *MongoStore) Load(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc snapshotDocument
	err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

func (s *MongoStore) Save(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	doc := snapshotDocument{Key: key, Data: data, UpdatedAt: time.Now()}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return err
	}

	s.markSeen(key, data)
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return err
	}

	s.markSeen(key, nil)
	return nil
}

func (s *MongoStore) Watch(key string, fn func(ChangeEvent)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watchers[key] == nil {
		s.watchers[key] = make(map[int]func(ChangeEvent))
	}
	id := s.nextID
	s.nextID++
	s.watchers[key][id] = fn

	if !s.started && s.interval > 0 {
		s.started = true
		go s.poll()
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers[key], id)
	}
}

// Close stops the fallback poller.
func (s *MongoStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		close(s.done)
		s.started = false
	}
}

// markSeen records this handle's own write so the poller does not report it
// back as an external change.
func (s *MongoStore) markSeen(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data == nil {
		delete(s.lastSeen, key)
		return
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	s.lastSeen[key] = stored
}

func (s *MongoStore) poll() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.checkWatched()
		}
	}
}

func (s *MongoStore) checkWatched() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.watchers))
	for key, fns := range s.watchers {
		if len(fns) > 0 {
			keys = append(keys, key)
		}
	}
	s.mu.Unlock()

	for _, key := range keys {
		data, err := s.Load(context.Background(), key)
		if err != nil {
			log.Println("[STORAGE] [ERROR] poll read failed for", key, ":", err)
			continue
		}

		s.mu.Lock()
		changed := !bytes.Equal(s.lastSeen[key], data)
		if changed {
			if data == nil {
				delete(s.lastSeen, key)
			} else {
				s.lastSeen[key] = data
			}
		}
		fns := make([]func(ChangeEvent), 0, len(s.watchers[key]))
		for _, fn := range s.watchers[key] {
			fns = append(fns, fn)
		}
		s.mu.Unlock()

		if !changed {
			continue
		}
		ev := ChangeEvent{Key: key, NewValue: data}
		for _, fn := range fns {
			fn(ev)
		}
	}
}
