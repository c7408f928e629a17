// Package syncer reconciles the local order cache with the order API by polling.
package syncer

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"deenice_finds/internal/clients"
	"deenice_finds/internal/domain"
	"deenice_finds/internal/events"
	"deenice_finds/internal/localcache"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultInitialDelay = 2 * time.Second
	DefaultInterval     = 30 * time.Second

	// OfflineSource marks orders that only exist on this device.
	OfflineSource = "offline"
)

type Config struct {
	InitialDelay time.Duration
	Interval     time.Duration
}

type Result struct {
	Sent     int
	Returned int
	Changed  int
	Revision uint64
}

type Engine struct {
	client clients.OrderClient
	cache  *localcache.Cache
	bus    *events.Bus
	cfg    Config
	now    func() time.Time
	log    *logrus.Logger

	roundMu sync.Mutex
	trigger chan string
}

func NewEngine(client clients.OrderClient, cache *localcache.Cache, bus *events.Bus, cfg Config, logger *logrus.Logger) *Engine {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Engine{
		client:  client,
		cache:   cache,
		bus:     bus,
		cfg:     cfg,
		now:     time.Now,
		log:     logger,
		trigger: make(chan string, 1),
	}
}

// SyncOnce runs one reconciliation round. With no local orders there is nothing to ask for.
func (e *Engine) SyncOnce(ctx context.Context) (Result, error) {
	e.roundMu.Lock()
	defer e.roundMu.Unlock()

	local := e.cache.Get()
	if len(local) == 0 {
		e.log.Debug("SyncEngine: No local orders, skipping round")
		return Result{}, nil
	}

	ids := make([]string, 0, len(local))
	for _, o := range local {
		ids = append(ids, o.ID)
	}
	state := e.cache.LoadSyncState()
	started := e.now()

	resp, err := e.client.FetchUpdates(ctx, clients.UpdatesRequest{
		OrderIDs:      ids,
		LastSync:      state.LastSync,
		SinceRevision: state.Revision,
	})
	if err != nil {
		return Result{Sent: len(ids)}, &domain.SyncError{Err: err}
	}

	// merge into the list as it is now, not the copy read before the request:
	// orders added during the round must survive it
	changed := 0
	err = e.cache.Update(func(current []domain.Order) ([]domain.Order, bool) {
		merged, n := Merge(current, resp.UpdatedOrders)
		changed = n
		return merged, n > 0
	})
	if err != nil {
		return Result{Sent: len(ids)}, &domain.SyncError{Err: err}
	}

	revision := max(state.Revision, resp.Revision)
	for _, o := range resp.UpdatedOrders {
		revision = max(revision, o.Revision)
	}
	if err := e.cache.SaveSyncState(localcache.SyncState{LastSync: &started, Revision: revision}); err != nil {
		e.log.Warnf("SyncEngine: Failed to record sync state: %v", err)
	}

	res := Result{Sent: len(ids), Returned: len(resp.UpdatedOrders), Changed: changed, Revision: revision}
	if changed > 0 {
		e.log.Infof("SyncEngine: %d of %d local orders updated from server", changed, len(ids))
	} else {
		e.log.Debugf("SyncEngine: %d local orders up to date", len(ids))
	}
	return res, nil
}

// Trigger asks Run for an extra round. A trigger arriving while one is already queued is folded into it.
func (e *Engine) Trigger(reason string) {
	select {
	case e.trigger <- reason:
	default:
		e.log.Debugf("SyncEngine: Trigger %q coalesced with a pending round", reason)
	}
}

// Run syncs after InitialDelay, then on every Interval tick and every Trigger, until ctx ends.
func (e *Engine) Run(ctx context.Context) {
	delay := time.NewTimer(e.cfg.InitialDelay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}
	e.round(ctx, "initial")

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Info("SyncEngine: Stopped")
			return
		case <-ticker.C:
			e.round(ctx, "interval")
		case reason := <-e.trigger:
			e.round(ctx, reason)
		}
	}
}

func (e *Engine) round(ctx context.Context, reason string) {
	if _, err := e.SyncOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		e.log.Warnf("SyncEngine: Round (%s) failed, keeping local data: %v", reason, err)
		if len(e.cache.Get()) == 0 && e.bus != nil {
			e.bus.Publish(events.SyncFailed{Err: err, At: e.now()})
		}
	}
}

// PushOrder submits a checkout. When the API cannot be reached the order is kept
// locally as a provisional LOCAL- record so the shopper does not lose it. offline
// reports which of the two happened.
func (e *Engine) PushOrder(ctx context.Context, req domain.CreateOrderRequest) (order *domain.Order, offline bool, err error) {
	created, err := e.client.CreateOrder(ctx, req)
	if err == nil {
		if err := e.cache.Add(*created); err != nil {
			e.log.Errorf("SyncEngine: Order %s accepted but not cached locally: %v", created.ID, err)
		}
		return created, false, nil
	}
	if rejectedByServer(err) {
		return nil, false, err
	}

	e.log.Warnf("SyncEngine: Order API unavailable, keeping order offline: %v", err)
	now := e.now()
	provisional := domain.Order{
		ID:            "LOCAL-" + uuid.NewString(),
		OrderDate:     now,
		Status:        domain.StatusPending,
		StatusUpdated: now,
		Customer:      req.Customer,
		Items:         req.Items,
		Delivery:      req.Delivery,
		Source:        OfflineSource,
		Currency:      req.Currency,
		TotalAmount:   req.TotalAmount,
		Notes:         req.Notes,
	}
	if err := e.cache.Add(provisional); err != nil {
		return nil, true, err
	}
	return &provisional, true, nil
}

// rejectedByServer is true for 4xx answers, which a retry would not fix.
func rejectedByServer(err error) bool {
	var apiErr *clients.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
}
