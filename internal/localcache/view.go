package localcache

import (
	"sync"

	"deenice_finds/internal/domain"
	"deenice_finds/internal/events"
)

// View is a live in-memory copy of the local order list. It re-renders from
// StorageChanged payloads and never calls the server.
type View struct {
	mu       sync.RWMutex
	orders   []domain.Order
	onChange func([]domain.Order)
	unsub    func()
}

// NewView seeds the view from cache and follows later writes published on bus.
func NewView(cache *Cache, bus *events.Bus) *View {
	v := &View{orders: cache.Get()}
	v.unsub = bus.Subscribe(func(e events.Event) {
		sc, ok := e.(events.StorageChanged)
		if !ok || sc.Key != KeyOrders {
			return
		}
		v.mu.Lock()
		v.orders = cloneAll(sc.Orders)
		fn := v.onChange
		v.mu.Unlock()
		if fn != nil {
			fn(v.Orders())
		}
	})
	return v
}

func (v *View) Orders() []domain.Order {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return cloneAll(v.orders)
}

// OnChange registers fn to run after every refresh. A later call replaces it.
func (v *View) OnChange(fn func([]domain.Order)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

func (v *View) Close() {
	v.unsub()
}
