package storage

import "context"

// Snapshot keys shared by every view of the application. The cart key is
// per session; the order ledger and the sales rollup are global.
const (
	OrdersKey = "restaurantOrders"
	SalesKey  = "restaurantSalesData"

	cartKeyPrefix = "restaurantCart:"
)

// CartKey returns the snapshot key holding the given session's cart.
func CartKey(session string) string {
	return cartKeyPrefix + session
}

// ChangeEvent describes a snapshot written by another handle of the same
// backing store. NewValue is nil when the key was deleted.
type ChangeEvent struct {
	Key      string
	NewValue []byte
}

// Snapshots persists whole serialized values under well-known keys.
// Replacing the full snapshot is the only mutation primitive; no partial
// update is ever visible to other readers.
type Snapshots interface {
	// Load returns the stored snapshot, or (nil, nil) when the key is absent.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the snapshot stored under key.
	Save(ctx context.Context, key string, data []byte) error

	// Delete removes the snapshot. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Watcher delivers change notifications for writes performed through other
// handles of the same backing store. A handle never observes its own writes
// here; same-handle views are told through the in-process event bus instead.
type Watcher interface {
	// Watch registers fn for changes to key and returns a cancel func.
	Watch(key string, fn func(ChangeEvent)) (cancel func())
}

// Store combines snapshot persistence with cross-handle change delivery.
type Store interface {
	Snapshots
	Watcher
}
