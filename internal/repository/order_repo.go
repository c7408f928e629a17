package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"deenice_finds/internal/domain"

	"github.com/sirupsen/logrus"
)

// orderRepository keeps the authoritative order list in memory, newest first,
// and mirrors it to a Snapshotter on Save.
type orderRepository struct {
	mu       sync.RWMutex
	orders   []domain.Order
	revision uint64

	saveMu    sync.Mutex
	snapshot  Snapshotter
	revisions Snapshotter
	log       *logrus.Logger
}

type OrderRepositoryOption func(*orderRepository)

// WithRevisionStore persists the revision high-water mark next to the order array, so the
// counter survives a restart even when the order carrying the highest revision is gone.
func WithRevisionStore(s Snapshotter) OrderRepositoryOption {
	return func(r *orderRepository) { r.revisions = s }
}

type revisionMark struct {
	Revision uint64 `json:"revision"`
}

func NewOrderRepository(snapshot Snapshotter, logger *logrus.Logger, opts ...OrderRepositoryOption) domain.OrderRepository {
	r := &orderRepository{
		orders:   []domain.Order{},
		snapshot: snapshot,
		log:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// loadMark returns the persisted high-water mark, or 0 when there is none.
func (r *orderRepository) loadMark(ctx context.Context) uint64 {
	if r.revisions == nil {
		return 0
	}
	data, err := r.revisions.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrSnapshotNotFound) {
			r.log.Warnf("Failed to load revision mark from %s: %v", r.revisions.Backend(), err)
		}
		return 0
	}
	var mark revisionMark
	if err := json.Unmarshal(data, &mark); err != nil {
		r.log.Warnf("Ignoring corrupt revision mark at %s: %v", r.revisions.Backend(), err)
		return 0
	}
	return mark.Revision
}

// Load replaces the in-memory list with the persisted snapshot. A missing snapshot starts empty.
func (r *orderRepository) Load(ctx context.Context) error {
	mark := r.loadMark(ctx)
	data, err := r.snapshot.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			r.log.Infof("No persisted orders at %s, starting empty", r.snapshot.Backend())
			r.mu.Lock()
			r.revision = max(r.revision, mark)
			r.mu.Unlock()
			return nil
		}
		return &domain.PersistenceError{Op: "load", Err: err}
	}

	var orders []domain.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return &domain.PersistenceError{Op: "decode", Err: err}
	}

	maxRev := mark
	for i := range orders {
		if orders[i].Revision > maxRev {
			maxRev = orders[i].Revision
		}
		orders[i].ProgressHistory = nil
	}

	r.mu.Lock()
	r.orders = orders
	r.revision = max(r.revision, maxRev)
	r.mu.Unlock()

	r.log.Infof("Loaded %d orders from %s (revision %d)", len(orders), r.snapshot.Backend(), maxRev)
	return nil
}

func (r *orderRepository) Create(order *domain.Order) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.revision++
	stored := order.Clone()
	stored.Revision = r.revision
	r.orders = append([]domain.Order{stored}, r.orders...)

	r.log.Infof("Order entry created with ID: %s (revision %d)", stored.ID, stored.Revision)
	out := stored.Clone()
	return &out, nil
}

func (r *orderRepository) indexOf(id string) int {
	for i := range r.orders {
		if r.orders[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *orderRepository) GetByID(id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}
	out := r.orders[i].Clone()
	return &out, nil
}

func (r *orderRepository) List() []domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Order, len(r.orders))
	for i := range r.orders {
		out[i] = r.orders[i].Clone()
	}
	return out
}

// UpdateStatus overwrites status and statusUpdated and returns the previous status. completedDate is stamped on the first
// move into completed and is never cleared afterwards.
func (r *orderRepository) UpdateStatus(id string, status domain.OrderStatus, at time.Time) (*domain.Order, domain.OrderStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		r.log.Warnf("Order with ID %s not found for status update", id)
		return nil, "", &domain.NotFoundError{Resource: "order", ID: id}
	}

	o := &r.orders[i]
	previous := o.Status
	o.Status = status
	o.StatusUpdated = at
	if status == domain.StatusCompleted && o.CompletedDate == nil {
		completed := at
		o.CompletedDate = &completed
	}
	r.revision++
	o.Revision = r.revision

	out := o.Clone()
	return &out, previous, nil
}

func (r *orderRepository) Delete(id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		r.log.Warnf("Attempted to delete non-existent order %s", id)
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}
	deleted := r.orders[i]
	r.orders = append(r.orders[:i], r.orders[i+1:]...)
	return &deleted, nil
}

func (r *orderRepository) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}

func (r *orderRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// Save writes the whole list. Concurrent saves are serialised so an older copy never
// lands after a newer one.
func (r *orderRepository) Save(ctx context.Context) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.RLock()
	revision := r.revision
	r.mu.RUnlock()
	orders := r.List()

	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return &domain.PersistenceError{Op: "encode", Err: err}
	}
	if err := r.snapshot.Save(ctx, data); err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	if r.revisions != nil {
		// Load takes the max of this mark and the stored order revisions
		mark, _ := json.Marshal(revisionMark{Revision: revision})
		if err := r.revisions.Save(ctx, mark); err != nil {
			return &domain.PersistenceError{Op: "save revision", Err: err}
		}
	}
	r.log.Debugf("Saved %d orders to %s (revision %d)", len(orders), r.snapshot.Backend(), revision)
	return nil
}
