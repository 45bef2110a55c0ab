package sales

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"backend/internal/events"
	"backend/internal/models"
	"backend/internal/storage"
)

// Retained window sizes: the 7 most recent days and 6 most recent months.
const (
	dailyWindow   = 7
	monthlyWindow = 6
)

const (
	dayKeyLayout   = "2006-01-02"
	monthKeyLayout = "January 2006"
)

// Aggregator keeps the daily and monthly sales rollups consistent with the
// order ledger without rescanning it. It subscribes to the order-completed
// event, so the ledger's finalize is the one trigger; a repeated call for an
// already-processed order id is a silent no-op.
type Aggregator struct {
	snapshots storage.Store
	bus       *events.Bus
	now       func() time.Time

	mu        sync.Mutex
	rollup    models.SalesRollup
	processed map[string]struct{}
	subs      map[int]func()
	nextID    int

	cancelBus   func()
	cancelWatch func()
}

// New returns an aggregator wired to the bus and watching the persisted
// rollup for writes from other handles. Call Load before serving reads.
func New(snapshots storage.Store, bus *events.Bus) *Aggregator {
	a := &Aggregator{
		snapshots: snapshots,
		bus:       bus,
		now:       time.Now,
		processed: make(map[string]struct{}),
		subs:      make(map[int]func()),
	}

	a.cancelBus = bus.Subscribe(events.TopicOrderCompleted, func(payload any) {
		order, ok := payload.(events.OrderCompleted)
		if !ok {
			return
		}
		if err := a.RecordCompletedOrder(context.Background(), order); err != nil {
			log.Println("[SALES] [ERROR] record order failed:", err)
		}
	})
	a.cancelWatch = snapshots.Watch(storage.SalesKey, a.handleExternalChange)

	return a
}

// Load reads the persisted rollup. When none exists, or the payload is
// unparseable, it seeds zeroed buckets for the retained window and persists
// the seed.
func (a *Aggregator) Load(ctx context.Context) {
	data, err := a.snapshots.Load(ctx, storage.SalesKey)
	if err != nil {
		log.Println("[SALES] [ERROR] rollup read failed, seeding zero data:", err)
		data = nil
	}

	a.mu.Lock()
	if rollup, ok := decodeRollup(data); ok {
		a.rollup = rollup
		a.rebuildProcessedLocked()
		a.mu.Unlock()
		return
	}
	a.rollup = a.seedRollup()
	a.rebuildProcessedLocked()
	if err := a.persistLocked(ctx); err != nil {
		log.Println("[SALES] [ERROR] seed rollup write failed:", err)
	}
	a.mu.Unlock()
}

// RecordCompletedOrder folds one completed order into the daily and monthly
// buckets and persists the rollup. Calling it again with the same order id
// changes nothing.
func (a *Aggregator) RecordCompletedOrder(ctx context.Context, order events.OrderCompleted) error {
	a.mu.Lock()
	if _, seen := a.processed[order.OrderID]; seen {
		a.mu.Unlock()
		log.Println("[SALES] [WARN] order already recorded, skipping:", order.OrderID)
		return nil
	}

	dayKey := order.Timestamp.Format(dayKeyLayout)
	monthKey := order.Timestamp.Format(monthKeyLayout)

	a.rollup.Daily = applyOrder(a.rollup.Daily, dayKey, order.Total, dailyWindow)
	a.rollup.Monthly = applyOrder(a.rollup.Monthly, monthKey, order.Total, monthlyWindow)
	a.rollup.ProcessedIDs = append(a.rollup.ProcessedIDs, order.OrderID)
	a.processed[order.OrderID] = struct{}{}

	if err := a.persistLocked(ctx); err != nil {
		a.mu.Unlock()
		return err
	}
	subs := a.subscribersLocked()
	a.mu.Unlock()

	a.bus.Publish(events.TopicSalesUpdated, events.SalesUpdated{})
	for _, fn := range subs {
		fn()
	}

	log.Println("[SALES] [INFO] order recorded:", order.OrderID)
	return nil
}

// Rollup returns a copy of the retained buckets, most recent first.
func (a *Aggregator) Rollup() models.SalesRollup {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := models.SalesRollup{
		Daily:   make([]models.SalesBucket, len(a.rollup.Daily)),
		Monthly: make([]models.SalesBucket, len(a.rollup.Monthly)),
	}
	copy(out.Daily, a.rollup.Daily)
	copy(out.Monthly, a.rollup.Monthly)
	return out
}

// Rebuild replays the full ledger into a fresh rollup. The result matches
// what incremental recording of the same orders would have produced.
func (a *Aggregator) Rebuild(ctx context.Context, orders []models.CompletedOrder) error {
	a.mu.Lock()
	a.rollup = a.seedRollup()
	a.processed = make(map[string]struct{})
	for _, order := range orders {
		if _, seen := a.processed[order.OrderID]; seen {
			continue
		}
		dayKey := order.Timestamp.Format(dayKeyLayout)
		monthKey := order.Timestamp.Format(monthKeyLayout)
		a.rollup.Daily = applyOrder(a.rollup.Daily, dayKey, order.Total, dailyWindow)
		a.rollup.Monthly = applyOrder(a.rollup.Monthly, monthKey, order.Total, monthlyWindow)
		a.rollup.ProcessedIDs = append(a.rollup.ProcessedIDs, order.OrderID)
		a.processed[order.OrderID] = struct{}{}
	}
	err := a.persistLocked(ctx)
	subs := a.subscribersLocked()
	a.mu.Unlock()

	if err != nil {
		return err
	}
	a.bus.Publish(events.TopicSalesUpdated, events.SalesUpdated{})
	for _, fn := range subs {
		fn()
	}
	return nil
}

// Subscribe registers fn to run after every rollup change, local or
// detected from another handle's write. It returns an unsubscribe func.
func (a *Aggregator) Subscribe(fn func()) (cancel func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	a.subs[id] = fn

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subs, id)
	}
}

// Close detaches the aggregator from the bus and from storage delivery.
func (a *Aggregator) Close() {
	if a.cancelBus != nil {
		a.cancelBus()
	}
	if a.cancelWatch != nil {
		a.cancelWatch()
	}
}

func (a *Aggregator) persistLocked(ctx context.Context) error {
	encoded, err := json.Marshal(a.rollup)
	if err != nil {
		return err
	}
	return a.snapshots.Save(ctx, storage.SalesKey, encoded)
}

// handleExternalChange replaces the in-memory rollup with the snapshot
// written by another handle.
func (a *Aggregator) handleExternalChange(ev storage.ChangeEvent) {
	rollup, ok := decodeRollup(ev.NewValue)
	if !ok {
		log.Println("[SALES] [ERROR] external rollup snapshot unparseable, keeping current")
		return
	}

	a.mu.Lock()
	a.rollup = rollup
	a.rebuildProcessedLocked()
	subs := a.subscribersLocked()
	a.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func (a *Aggregator) rebuildProcessedLocked() {
	a.processed = make(map[string]struct{}, len(a.rollup.ProcessedIDs))
	for _, id := range a.rollup.ProcessedIDs {
		a.processed[id] = struct{}{}
	}
}

func (a *Aggregator) subscribersLocked() []func() {
	subs := make([]func(), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	return subs
}

// seedRollup builds the zeroed retained window: today back 6 days and this
// month back 5 months, most recent first.
func (a *Aggregator) seedRollup() models.SalesRollup {
	now := a.now()
	rollup := models.SalesRollup{
		Daily:   make([]models.SalesBucket, 0, dailyWindow),
		Monthly: make([]models.SalesBucket, 0, monthlyWindow),
	}
	for i := 0; i < dailyWindow; i++ {
		rollup.Daily = append(rollup.Daily, models.SalesBucket{
			PeriodKey: now.AddDate(0, 0, -i).Format(dayKeyLayout),
			Change:    "0%",
		})
	}
	for i := 0; i < monthlyWindow; i++ {
		rollup.Monthly = append(rollup.Monthly, models.SalesBucket{
			PeriodKey: now.AddDate(0, -i, 0).Format(monthKeyLayout),
			Change:    "0%",
		})
	}
	return rollup
}

// applyOrder folds one order total into the bucket list: increment the
// matching bucket, or insert a new one at the front and evict past the
// window. Change strings are refreshed against each bucket's predecessor.
func applyOrder(buckets []models.SalesBucket, periodKey string, total int64, window int) []models.SalesBucket {
	found := false
	for i := range buckets {
		if buckets[i].PeriodKey == periodKey {
			buckets[i].OrderCount++
			buckets[i].Revenue += total
			found = true
			break
		}
	}
	if !found {
		buckets = append([]models.SalesBucket{{
			PeriodKey:  periodKey,
			OrderCount: 1,
			Revenue:    total,
		}}, buckets...)
		if len(buckets) > window {
			buckets = buckets[:window]
		}
	}

	for i := range buckets {
		if i+1 < len(buckets) {
			buckets[i].Change = percentChange(buckets[i].Revenue, buckets[i+1].Revenue)
		} else {
			buckets[i].Change = "0%"
		}
	}
	return buckets
}

// percentChange renders (current-previous)/previous. A zero previous period
// reports +100% for any growth and 0% otherwise, avoiding division by zero.
func percentChange(current, previous int64) string {
	if previous == 0 {
		if current > 0 {
			return "+100%"
		}
		return "0%"
	}
	pct := int(math.Round(float64(current-previous) / float64(previous) * 100))
	if pct > 0 {
		return "+" + strconv.Itoa(pct) + "%"
	}
	return strconv.Itoa(pct) + "%"
}

func decodeRollup(data []byte) (models.SalesRollup, bool) {
	if len(data) == 0 {
		return models.SalesRollup{}, false
	}
	var rollup models.SalesRollup
	if err := json.Unmarshal(data, &rollup); err != nil {
		log.Println("[SALES] [ERROR] rollup snapshot unparseable:", err)
		return models.SalesRollup{}, false
	}
	if rollup.Daily == nil || rollup.Monthly == nil {
		return models.SalesRollup{}, false
	}
	return rollup, true
}
