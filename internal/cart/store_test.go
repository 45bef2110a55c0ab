package cart

import (
	"context"
	"reflect"
	"testing"

	"backend/internal/events"
	"backend/internal/storage"
)

func TestLoadWithoutSnapshotYieldsEmptyCart(t *testing.T) {
	ctx := context.Background()
	snapshots := storage.NewMemoryStore()
	store := New(snapshots, events.NewBus(), "s1")
	defer store.Close()

	store.Load(ctx)

	if len(store.Lines()) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(store.Lines()))
	}

	data, err := snapshots.Load(ctx, storage.CartKey("s1"))
	if err != nil {
		t.Fatalf("snapshot read failed: %v", err)
	}
	if data != nil {
		t.Fatalf("load alone must not write a snapshot, found %s", data)
	}
}

func TestLoadRecoversFromCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	snapshots := storage.NewMemoryStore()
	if err := snapshots.Save(ctx, storage.CartKey("s1"), []byte("{not json")); err != nil {
		t.Fatalf("seed corrupt snapshot failed: %v", err)
	}

	store := New(snapshots, events.NewBus(), "s1")
	defer store.Close()
	store.Load(ctx)

	if len(store.Lines()) != 0 {
		t.Fatalf("expected empty cart after corrupt snapshot, got %v", store.Lines())
	}
}

func TestAddItemMergesDuplicateLines(t *testing.T) {
	ctx := context.Background()
	store := New(storage.NewMemoryStore(), events.NewBus(), "s1")
	defer store.Close()
	store.Load(ctx)

	if err := store.AddItem(ctx, "1", "Margherita Pizza", 1299); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := store.AddItem(ctx, "1", "Margherita Pizza", 1299); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	lines := store.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected exactly one line, got %d", len(lines))
	}
	if lines[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", lines[0].Quantity)
	}
}

func TestAddRemoveSymmetry(t *testing.T) {
	ctx := context.Background()
	store := New(storage.NewMemoryStore(), events.NewBus(), "s1")
	defer store.Close()
	store.Load(ctx)

	if err := store.AddItem(ctx, "2", "Caesar Salad", 899); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	before := store.Lines()

	if err := store.AddItem(ctx, "3", "Chicken Burger", 1499); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := store.RemoveItem(ctx, "3"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if !reflect.DeepEqual(before, store.Lines()) {
		t.Fatalf("expected cart restored to %v, got %v", before, store.Lines())
	}
}

func TestSetQuantityFloorRemovesLine(t *testing.T) {
	ctx := context.Background()
	for _, quantity := range []int{0, -1} {
		store := New(storage.NewMemoryStore(), events.NewBus(), "s1")
		store.Load(ctx)

		if err := store.AddItem(ctx, "1", "Margherita Pizza", 1299); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if err := store.SetQuantity(ctx, "1", quantity); err != nil {
			t.Fatalf("set quantity failed: %v", err)
		}
		if len(store.Lines()) != 0 {
			t.Fatalf("expected line removed for quantity=%d, got %v", quantity, store.Lines())
		}
		store.Close()
	}
}

func TestRemoveAbsentItemIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := New(storage.NewMemoryStore(), events.NewBus(), "s1")
	defer store.Close()
	store.Load(ctx)

	notified := 0
	defer store.Subscribe(func() { notified++ })()

	if err := store.RemoveItem(ctx, "missing"); err != nil {
		t.Fatalf("remove of absent item returned error: %v", err)
	}
	if notified != 0 {
		t.Fatalf("expected no notification for a no-op, got %d", notified)
	}
}

func TestRedundantMutationDoesNotRewrite(t *testing.T) {
	ctx := context.Background()
	store := New(storage.NewMemoryStore(), events.NewBus(), "s1")
	defer store.Close()
	store.Load(ctx)

	if err := store.AddItem(ctx, "1", "Margherita Pizza", 1299); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	notified := 0
	defer store.Subscribe(func() { notified++ })()

	if err := store.SetQuantity(ctx, "1", 1); err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	if notified != 0 {
		t.Fatalf("expected unchanged snapshot to skip persist and notify, got %d notifications", notified)
	}
}

func TestExternalWriteReplacesStateAndNotifies(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	bus := events.NewBus()

	tabA := New(backend.Attach(), bus, "s1")
	defer tabA.Close()
	tabA.Load(ctx)

	tabB := New(backend.Attach(), events.NewBus(), "s1")
	defer tabB.Close()
	tabB.Load(ctx)

	notified := 0
	defer tabB.Subscribe(func() { notified++ })()

	if err := tabA.AddItem(ctx, "1", "Margherita Pizza", 1299); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if notified != 1 {
		t.Fatalf("expected one cross-handle notification, got %d", notified)
	}
	if !reflect.DeepEqual(tabA.Lines(), tabB.Lines()) {
		t.Fatalf("expected tabs to converge, got %v vs %v", tabA.Lines(), tabB.Lines())
	}
}

// Concurrent edits are resolved by snapshot replacement: whichever write
// lands last overwrites the other's effect. This is the documented
// consistency model, not a defect.
func TestLastWriterWinsWithoutMerge(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()

	tabA := New(backend.Attach(), events.NewBus(), "s1")
	defer tabA.Close()
	tabA.Load(ctx)

	if err := tabA.AddItem(ctx, "1", "Margherita Pizza", 1299); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// a stale snapshot from another writer lands after tabA's edit
	raw := backend.Attach()
	if err := raw.Save(ctx, storage.CartKey("s1"), []byte(`[{"itemId":"2","name":"Caesar Salad","unitPrice":899,"quantity":1}]`)); err != nil {
		t.Fatalf("raw write failed: %v", err)
	}

	lines := tabA.Lines()
	if len(lines) != 1 || lines[0].ItemID != "2" {
		t.Fatalf("expected last write to win wholesale, got %v", lines)
	}
}
