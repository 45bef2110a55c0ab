package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"backend/internal/cart"
	"backend/internal/events"
	"backend/internal/models"
	"backend/internal/storage"
)

var phonePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)

// Config carries the checkout pricing knobs.
type Config struct {
	// TaxRatePercent is applied to the subtotal, e.g. 8 for 8%.
	TaxRatePercent int64
	// ServiceFee is a fixed amount added to every total, in minor units.
	ServiceFee int64
}

// Ledger durably records completed orders. The persisted list is
// append-only: entries are never edited or removed.
type Ledger struct {
	snapshots storage.Store
	bus       *events.Bus
	cfg       Config
	now       func() time.Time

	mu sync.Mutex
}

// New returns a ledger over the given storage and bus.
func New(snapshots storage.Store, bus *events.Bus, cfg Config) *Ledger {
	return &Ledger{
		snapshots: snapshots,
		bus:       bus,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Finalize turns the session's cart into a CompletedOrder: computes the
// totals, appends the order to the persisted list, emits the
// order-completed event and clears the cart. On any failure nothing is
// appended and the cart keeps its lines.
func (l *Ledger) Finalize(ctx context.Context, store *cart.Store, info models.CustomerInfo) (models.CompletedOrder, error) {
	lines := store.Lines()
	if len(lines) == 0 {
		return models.CompletedOrder{}, EmptyCartError{}
	}
	if err := validateCustomerInfo(info); err != nil {
		return models.CompletedOrder{}, err
	}

	now := l.now()
	subtotal := lines.Subtotal()
	tax := subtotal * l.cfg.TaxRatePercent / 100

	order := models.CompletedOrder{
		OrderID:    fmt.Sprintf("GLB-%d", now.UnixMilli()),
		Items:      lines,
		Subtotal:   subtotal,
		Tax:        tax,
		ServiceFee: l.cfg.ServiceFee,
		Total:      subtotal + tax + l.cfg.ServiceFee,
		Customer:   sanitizeCustomerInfo(info),
		Timestamp:  now,
	}

	if err := l.append(ctx, order); err != nil {
		return models.CompletedOrder{}, err
	}

	l.bus.Publish(events.TopicOrderCompleted, events.OrderCompleted{
		OrderID:   order.OrderID,
		Total:     order.Total,
		Items:     order.Items,
		Timestamp: order.Timestamp,
	})

	if err := store.Clear(ctx); err != nil {
		log.Println("[LEDGER] [ERROR] cart clear after finalize failed:", err)
	}

	log.Println("[LEDGER] [INFO] order finalized:", order.OrderID)
	return order, nil
}

// Orders returns the full ledger, oldest first.
func (l *Ledger) Orders(ctx context.Context) ([]models.CompletedOrder, error) {
	data, err := l.snapshots.Load(ctx, storage.OrdersKey)
	if err != nil {
		return nil, err
	}
	return decodeOrders(data), nil
}

// Order returns the entry with the given id, or false when absent.
func (l *Ledger) Order(ctx context.Context, orderID string) (models.CompletedOrder, bool, error) {
	orders, err := l.Orders(ctx)
	if err != nil {
		return models.CompletedOrder{}, false, err
	}
	for _, order := range orders {
		if order.OrderID == orderID {
			return order, true, nil
		}
	}
	return models.CompletedOrder{}, false, nil
}

func (l *Ledger) append(ctx context.Context, order models.CompletedOrder) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.snapshots.Load(ctx, storage.OrdersKey)
	if err != nil {
		return err
	}
	orders := decodeOrders(data)
	orders = append(orders, order)

	encoded, err := json.Marshal(orders)
	if err != nil {
		return err
	}
	return l.snapshots.Save(ctx, storage.OrdersKey, encoded)
}

func decodeOrders(data []byte) []models.CompletedOrder {
	if len(data) == 0 {
		return nil
	}
	var orders []models.CompletedOrder
	if err := json.Unmarshal(data, &orders); err != nil {
		log.Println("[LEDGER] [ERROR] order snapshot unparseable, starting empty:", err)
		return nil
	}
	return orders
}

func validateCustomerInfo(info models.CustomerInfo) error {
	var verr ValidationError

	if strings.TrimSpace(info.FullName) == "" {
		verr.add("fullName", "full name is required")
	}

	phone := strings.TrimSpace(info.PhoneNumber)
	if phone == "" {
		verr.add("phoneNumber", "phone number is required")
	} else if !phonePattern.MatchString(phone) {
		verr.add("phoneNumber", "phone number is invalid")
	}

	switch info.OrderType {
	case models.OrderTypeDineIn:
		if strings.TrimSpace(info.TableNumber) == "" {
			verr.add("tableNumber", "table number is required for dine-in orders")
		}
	case models.OrderTypeDelivery, models.OrderTypeTakeout:
	default:
		verr.add("orderType", "order type must be Dine-in, Delivery or Takeout")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func sanitizeCustomerInfo(info models.CustomerInfo) models.CustomerInfo {
	info.FullName = strings.TrimSpace(info.FullName)
	info.PhoneNumber = strings.TrimSpace(info.PhoneNumber)
	info.TableNumber = strings.TrimSpace(info.TableNumber)
	return info
}
