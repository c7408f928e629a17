// Package localcache keeps the shopper's own orders on the local machine across
// several storage tiers so losing any one of them can be repaired from another.
package localcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"deenice_finds/internal/domain"
	"deenice_finds/internal/events"
	"deenice_finds/internal/localstore"

	"github.com/sirupsen/logrus"
)

const (
	KeyOrders    = "orders"
	KeyBackup    = "orders_backup"
	KeySyncState = "sync_state"
	blockPrefix  = "order:"
)

// LegacyKeys are order list keys written by earlier clients, scanned last in the primary tier.
var LegacyKeys = []string{"deeniceOrders", "userOrders", "orders_v1", "df_orders"}

type Tiers struct {
	Primary localstore.Store
	Backup  localstore.Store
	Session localstore.Store
	Blocks  localstore.Store
}

// SyncState is the sync engine's cursor, kept next to the orders it describes.
type SyncState struct {
	LastSync *time.Time `json:"lastSync,omitempty"`
	Revision uint64     `json:"revision,omitempty"`
}

type Cache struct {
	mu     sync.Mutex
	tiers  Tiers
	bus    *events.Bus
	origin string
	now    func() time.Time
	log    *logrus.Logger
}

// New builds a cache over tiers. origin tags StorageChanged events written by this cache.
func New(tiers Tiers, bus *events.Bus, origin string, logger *logrus.Logger) *Cache {
	return &Cache{
		tiers:  tiers,
		bus:    bus,
		origin: origin,
		now:    time.Now,
		log:    logger,
	}
}

func (c *Cache) Origin() string { return c.origin }

func decodeList(data []byte) ([]domain.Order, error) {
	var orders []domain.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// readList returns the list stored at key, or nil when it is absent, empty or unreadable.
func (c *Cache) readList(store localstore.Store, tier, key string) []domain.Order {
	data, ok, err := store.Get(key)
	if err != nil {
		c.log.Warnf("LocalCache: Failed to read %s/%s: %v", tier, key, err)
		return nil
	}
	if !ok {
		return nil
	}
	orders, err := decodeList(data)
	if err != nil {
		c.log.Warnf("LocalCache: Corrupt order list in %s/%s: %v", tier, key, err)
		return nil
	}
	return orders
}

func (c *Cache) readBlocks() []domain.Order {
	keys, err := c.tiers.Blocks.Keys()
	if err != nil {
		c.log.Warnf("LocalCache: Failed to list block store: %v", err)
		return nil
	}
	var orders []domain.Order
	for _, key := range keys {
		if !strings.HasPrefix(key, blockPrefix) {
			continue
		}
		data, ok, err := c.tiers.Blocks.Get(key)
		if err != nil || !ok {
			continue
		}
		var o domain.Order
		if err := json.Unmarshal(data, &o); err != nil {
			c.log.Warnf("LocalCache: Skipping corrupt block %s: %v", key, err)
			continue
		}
		orders = append(orders, o)
	}
	return orders
}

// normalize drops duplicate ids (first wins) and sorts newest orderDate first.
func normalize(orders []domain.Order) []domain.Order {
	seen := make(map[string]struct{}, len(orders))
	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.ID == "" {
			continue
		}
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderDate.After(out[j].OrderDate)
	})
	return out
}

// Get returns the local order list. It never fails: if every tier is unreadable the list is empty.
func (c *Cache) Get() []domain.Order {
	c.mu.Lock()
	orders, restored := c.get()
	c.mu.Unlock()

	if restored != nil {
		c.publish(restored)
	}
	return orders
}

// get must be called with c.mu held. restored is non-nil when tiers were rewritten.
func (c *Cache) get() (orders, restored []domain.Order) {
	if list := c.readList(c.tiers.Primary, "primary", KeyOrders); len(list) > 0 {
		return normalize(list), nil
	}

	if list := c.readList(c.tiers.Backup, "backup", KeyBackup); len(list) > 0 {
		list = normalize(list)
		c.log.Warnf("LocalCache: Primary empty, restored %d orders from backup", len(list))
		if err := c.putList(c.tiers.Primary, KeyOrders, list); err != nil {
			c.log.Errorf("LocalCache: Failed to restore primary from backup: %v", err)
		}
		return list, nil
	}

	if list := c.readList(c.tiers.Session, "session", KeyOrders); len(list) > 0 {
		c.log.Warnf("LocalCache: Using %d orders from session tier", len(list))
		return normalize(list), nil
	}

	if list := c.readBlocks(); len(list) > 0 {
		c.log.Warnf("LocalCache: Rebuilt %d orders from block store", len(list))
		return normalize(list), nil
	}

	for _, key := range LegacyKeys {
		if list := c.readList(c.tiers.Primary, "primary", key); len(list) > 0 {
			list = c.enrich(normalize(list))
			c.log.Infof("LocalCache: Migrating %d orders from legacy key %s", len(list), key)
			if err := c.writeAll(list); err != nil {
				c.log.Errorf("LocalCache: Legacy migration failed: %v", err)
			}
			return list, list
		}
	}
	return []domain.Order{}, nil
}

// enrich appends a progressHistory entry when the last one does not carry the current status.
func (c *Cache) enrich(orders []domain.Order) []domain.Order {
	for i := range orders {
		o := &orders[i]
		if n := len(o.ProgressHistory); n > 0 && o.ProgressHistory[n-1].Status == o.Status {
			continue
		}
		at := o.StatusUpdated
		if at.IsZero() {
			at = c.now()
		}
		o.ProgressHistory = append(o.ProgressHistory, domain.ProgressEntry{
			Status:    o.Status,
			Timestamp: at,
			Step:      len(o.ProgressHistory) + 1,
		})
	}
	return orders
}

func (c *Cache) putList(store localstore.Store, key string, orders []domain.Order) error {
	data, err := json.Marshal(orders)
	if err != nil {
		return err
	}
	return store.Put(key, data)
}

// writeAll must be called with c.mu held. It fails only when every tier failed.
func (c *Cache) writeAll(orders []domain.Order) error {
	var errs []error
	writes := []struct {
		tier  string
		store localstore.Store
		key   string
	}{
		{"primary", c.tiers.Primary, KeyOrders},
		{"backup", c.tiers.Backup, KeyBackup},
		{"session", c.tiers.Session, KeyOrders},
	}
	for _, w := range writes {
		if err := c.putList(w.store, w.key, orders); err != nil {
			c.log.Errorf("LocalCache: Failed to write %s tier: %v", w.tier, err)
			errs = append(errs, fmt.Errorf("%s: %w", w.tier, err))
		}
	}

	blockErrs := 0
	for _, o := range orders {
		data, err := json.Marshal(o)
		if err == nil {
			err = c.tiers.Blocks.Put(blockPrefix+o.ID, data)
		}
		if err != nil {
			blockErrs++
			if blockErrs == 1 {
				errs = append(errs, fmt.Errorf("blocks: %w", err))
			}
		}
	}
	if blockErrs > 0 {
		c.log.Errorf("LocalCache: Failed to write %d order blocks", blockErrs)
	}

	if len(errs) == 4 {
		return errors.Join(errs...)
	}
	return nil
}

// Save replaces the local order list on every tier and notifies listeners.
func (c *Cache) Save(orders []domain.Order) error {
	c.mu.Lock()
	list := c.enrich(normalize(cloneAll(orders)))
	err := c.writeAll(list)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("save local orders: %w", err)
	}
	c.log.Debugf("LocalCache: Saved %d orders", len(list))
	c.publish(list)
	return nil
}

// Update runs fn on the current list and writes what it returns, holding the cache lock
// from the read to the write so concurrent writers cannot drop each other's orders.
// fn reports whether anything changed; when it did not, nothing is written.
func (c *Cache) Update(fn func(orders []domain.Order) ([]domain.Order, bool)) error {
	c.mu.Lock()
	current, _ := c.get()
	next, changed := fn(cloneAll(current))
	if !changed {
		c.mu.Unlock()
		return nil
	}
	list := c.enrich(normalize(cloneAll(next)))
	err := c.writeAll(list)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("save local orders: %w", err)
	}
	c.log.Debugf("LocalCache: Updated %d orders", len(list))
	c.publish(list)
	return nil
}

// Add inserts or replaces one order.
func (c *Cache) Add(order domain.Order) error {
	return c.Update(func(orders []domain.Order) ([]domain.Order, bool) {
		out := make([]domain.Order, 0, len(orders)+1)
		out = append(out, order.Clone())
		for _, o := range orders {
			if o.ID != order.ID {
				out = append(out, o)
			}
		}
		return out, true
	})
}

func (c *Cache) publish(orders []domain.Order) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.StorageChanged{Key: KeyOrders, Orders: cloneAll(orders), Origin: c.origin})
}

func cloneAll(orders []domain.Order) []domain.Order {
	out := make([]domain.Order, len(orders))
	for i := range orders {
		out[i] = orders[i].Clone()
	}
	return out
}

// ApplyStatusChange mirrors an admin status change into the local copy. It reports
// whether the order was known locally.
func (c *Cache) ApplyStatusChange(ev events.OrderStatusChanged) (bool, error) {
	found := false
	err := c.Update(func(orders []domain.Order) ([]domain.Order, bool) {
		for i := range orders {
			if orders[i].ID != ev.OrderID {
				continue
			}
			found = true
			orders[i].Status = ev.To
			orders[i].StatusUpdated = ev.StatusUpdated
			if ev.CompletedDate != nil {
				t := *ev.CompletedDate
				orders[i].CompletedDate = &t
			}
		}
		return orders, found
	})
	return found, err
}

func (c *Cache) LoadSyncState() SyncState {
	var st SyncState
	data, ok, err := c.tiers.Primary.Get(KeySyncState)
	if err != nil || !ok {
		return st
	}
	if err := json.Unmarshal(data, &st); err != nil {
		c.log.Warnf("LocalCache: Ignoring corrupt sync state: %v", err)
		return SyncState{}
	}
	return st
}

func (c *Cache) SaveSyncState(st SyncState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.tiers.Primary.Put(KeySyncState, data)
}

// FollowStatusChanges applies every OrderStatusChanged seen on bus to the local copy.
func (c *Cache) FollowStatusChanges(bus *events.Bus) func() {
	return bus.Subscribe(func(e events.Event) {
		ev, ok := e.(events.OrderStatusChanged)
		if !ok {
			return
		}
		if _, err := c.ApplyStatusChange(ev); err != nil {
			c.log.Errorf("LocalCache: Failed to apply status change for %s: %v", ev.OrderID, err)
		}
	})
}
