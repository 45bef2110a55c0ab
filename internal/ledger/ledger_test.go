package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"backend/internal/cart"
	"backend/internal/events"
	"backend/internal/models"
	"backend/internal/sales"
	"backend/internal/storage"
)

func newTestCart(t *testing.T, snapshots storage.Store, bus *events.Bus) *cart.Store {
	t.Helper()
	store := cart.New(snapshots, bus, "s1")
	t.Cleanup(store.Close)
	store.Load(context.Background())
	return store
}

func takeoutInfo() models.CustomerInfo {
	return models.CustomerInfo{
		FullName:    "Ada Lovelace",
		PhoneNumber: "0300 1234567",
		OrderType:   models.OrderTypeTakeout,
	}
}

func TestFinalizeClearsCartAndAppendsOnce(t *testing.T) {
	ctx := context.Background()
	snapshots := storage.NewMemoryStore()
	bus := events.NewBus()
	store := newTestCart(t, snapshots, bus)
	orders := New(snapshots, bus, Config{TaxRatePercent: 8})

	if err := store.AddItem(ctx, "1", "Margherita Pizza", 1299); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	order, err := orders.Finalize(ctx, store, takeoutInfo())
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if len(store.Lines()) != 0 {
		t.Fatalf("expected empty cart after finalize, got %v", store.Lines())
	}
	list, err := orders.Orders(ctx)
	if err != nil {
		t.Fatalf("orders read failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected ledger length 1, got %d", len(list))
	}
	if list[0].OrderID != order.OrderID {
		t.Fatalf("expected appended order %s, got %s", order.OrderID, list[0].OrderID)
	}
	if !strings.HasPrefix(order.OrderID, "GLB-") {
		t.Fatalf("expected timestamp-derived order id, got %s", order.OrderID)
	}
}

func TestFinalizeEmptyCartRejected(t *testing.T) {
	ctx := context.Background()
	snapshots := storage.NewMemoryStore()
	bus := events.NewBus()
	store := newTestCart(t, snapshots, bus)
	orders := New(snapshots, bus, Config{TaxRatePercent: 8})

	_, err := orders.Finalize(ctx, store, takeoutInfo())
	if _, ok := err.(EmptyCartError); !ok {
		t.Fatalf("expected EmptyCartError, got %v", err)
	}

	list, err := orders.Orders(ctx)
	if err != nil {
		t.Fatalf("orders read failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected ledger unchanged, got %d entries", len(list))
	}
}

func TestFinalizeValidatesCustomerInfo(t *testing.T) {
	tests := []struct {
		name  string
		info  models.CustomerInfo
		field string
	}{
		{
			name:  "missing full name",
			info:  models.CustomerInfo{PhoneNumber: "0300 1234567", OrderType: models.OrderTypeTakeout},
			field: "fullName",
		},
		{
			name:  "missing phone",
			info:  models.CustomerInfo{FullName: "Ada", OrderType: models.OrderTypeTakeout},
			field: "phoneNumber",
		},
		{
			name:  "malformed phone",
			info:  models.CustomerInfo{FullName: "Ada", PhoneNumber: "abc", OrderType: models.OrderTypeTakeout},
			field: "phoneNumber",
		},
		{
			name:  "unknown order type",
			info:  models.CustomerInfo{FullName: "Ada", PhoneNumber: "0300 1234567", OrderType: "Drive-through"},
			field: "orderType",
		},
		{
			name:  "dine-in without table",
			info:  models.CustomerInfo{FullName: "Ada", PhoneNumber: "0300 1234567", OrderType: models.OrderTypeDineIn},
			field: "tableNumber",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			snapshots := storage.NewMemoryStore()
			bus := events.NewBus()
			store := newTestCart(t, snapshots, bus)
			orders := New(snapshots, bus, Config{TaxRatePercent: 8})

			if err := store.AddItem(ctx, "1", "Margherita Pizza", 1299); err != nil {
				t.Fatalf("add failed: %v", err)
			}

			_, err := orders.Finalize(ctx, store, tt.info)
			verr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, f := range verr.Fields {
				if f.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected field %s in %v", tt.field, verr.Fields)
			}

			if len(store.Lines()) != 1 {
				t.Fatal("expected cart untouched after rejected finalize")
			}
			list, err := orders.Orders(ctx)
			if err != nil {
				t.Fatalf("orders read failed: %v", err)
			}
			if len(list) != 0 {
				t.Fatal("expected ledger unchanged after rejected finalize")
			}
		})
	}
}

func TestFinalizeAppliesServiceFee(t *testing.T) {
	ctx := context.Background()
	snapshots := storage.NewMemoryStore()
	bus := events.NewBus()
	store := newTestCart(t, snapshots, bus)
	orders := New(snapshots, bus, Config{TaxRatePercent: 8, ServiceFee: 50})

	if err := store.AddItem(ctx, "1", "Margherita Pizza", 1000); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	order, err := orders.Finalize(ctx, store, takeoutInfo())
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if order.Total != 1000+80+50 {
		t.Fatalf("expected total 1130, got %d", order.Total)
	}
}

func TestCheckoutFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	snapshots := storage.NewMemoryStore()
	bus := events.NewBus()
	store := newTestCart(t, snapshots, bus)
	orders := New(snapshots, bus, Config{TaxRatePercent: 8})

	aggregator := sales.New(snapshots, bus)
	defer aggregator.Close()
	aggregator.Load(ctx)

	if err := store.AddItem(ctx, "1", "Pizza", 1000); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := store.AddItem(ctx, "1", "Pizza", 1000); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	lines := store.Lines()
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("expected one line with quantity 2, got %v", lines)
	}

	order, err := orders.Finalize(ctx, store, takeoutInfo())
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if order.Subtotal != 2000 || order.Tax != 160 || order.Total != 2160 {
		t.Fatalf("expected 2000/160/2160, got %d/%d/%d", order.Subtotal, order.Tax, order.Total)
	}

	today := time.Now().Format("2006-01-02")
	rollup := aggregator.Rollup()
	if len(rollup.Daily) == 0 || rollup.Daily[0].PeriodKey != today {
		t.Fatalf("expected today's bucket at the front, got %v", rollup.Daily)
	}
	if rollup.Daily[0].OrderCount != 1 || rollup.Daily[0].Revenue != 2160 {
		t.Fatalf("expected orderCount=1 revenue=2160, got %d/%d",
			rollup.Daily[0].OrderCount, rollup.Daily[0].Revenue)
	}
}
