package syncer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"deenice_finds/internal/clients"
	"deenice_finds/internal/delivery"
	"deenice_finds/internal/domain"
	"deenice_finds/internal/events"
	"deenice_finds/internal/localcache"
	"deenice_finds/internal/localstore"
	"deenice_finds/internal/notify"
	"deenice_finds/internal/repository"
	"deenice_finds/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type memTiers struct {
	localcache.Tiers
	primary, backup, session, blocks *localstore.MemoryStore
}

func newMemTiers() memTiers {
	m := memTiers{
		primary: localstore.NewMemoryStore(),
		backup:  localstore.NewMemoryStore(),
		session: localstore.NewMemoryStore(),
		blocks:  localstore.NewMemoryStore(),
	}
	m.Tiers = localcache.Tiers{Primary: m.primary, Backup: m.backup, Session: m.session, Blocks: m.blocks}
	return m
}

// wipe simulates every tier being cleared behind the cache's back.
func (m memTiers) wipe(t *testing.T) {
	require.NoError(t, m.primary.Put(localcache.KeyOrders, []byte("[]")))
	require.NoError(t, m.backup.Put(localcache.KeyBackup, []byte("[]")))
	require.NoError(t, m.session.Put(localcache.KeyOrders, []byte("[]")))
	keys, err := m.blocks.Keys()
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, m.blocks.Put(k, []byte("{gone")))
	}
}

type server struct {
	orders domain.OrderUseCase
	url    string
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger := quietLogger()
	dir := t.TempDir()
	hash, err := bcrypt.GenerateFromPassword([]byte("pass"), bcrypt.MinCost)
	require.NoError(t, err)

	orders := usecase.NewOrderUseCase(
		repository.NewOrderRepository(repository.NewFileSnapshotter(filepath.Join(dir, "orders.json"), logger), logger),
		events.NewBus(), notify.DefaultOptions(), logger)
	router := delivery.NewRouter(delivery.RouterConfig{
		Orders:     orders,
		Categories: usecase.NewCategoryUseCase(repository.NewCategoryRepository(repository.NewFileSnapshotter(filepath.Join(dir, "categories.json"), logger), logger), logger),
		Auth: usecase.NewAuthUseCase(usecase.AuthConfig{
			Username:     "admin",
			PasswordHash: string(hash),
			Secret:       []byte("secret"),
			TokenTTL:     time.Hour,
			IdleTimeout:  time.Hour,
		}, logger),
		Log: logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &server{orders: orders, url: srv.URL}
}

func (s *server) create(t *testing.T, name string) *domain.Order {
	t.Helper()
	o, err := s.orders.CreateOrder(context.Background(), domain.CreateOrderRequest{
		Customer: domain.Customer{Name: name, City: "Nairobi", Phone: "0722000111"},
		Items:    []domain.OrderItem{{Title: "Smart watch", Price: 8000, Quantity: 1}},
	})
	require.NoError(t, err)
	return o
}

func (s *server) setStatus(t *testing.T, id string, status domain.OrderStatus) *domain.Order {
	t.Helper()
	res, err := s.orders.UpdateStatus(context.Background(), id, status)
	require.NoError(t, err)
	return &res.Order
}

func statuses(orders []domain.Order) map[string]domain.OrderStatus {
	out := make(map[string]domain.OrderStatus, len(orders))
	for _, o := range orders {
		out[o.ID] = o.Status
	}
	return out
}

func TestSyncOnce_ConvergesOnServerStatus(t *testing.T) {
	srv := newServer(t)
	a := srv.create(t, "Achieng")
	b := srv.create(t, "Baraka")
	c := srv.create(t, "Chebet")
	srv.setStatus(t, a.ID, domain.StatusProcessing)
	bDone := srv.setStatus(t, b.ID, domain.StatusCompleted)

	tiers := newMemTiers()
	cache := localcache.New(tiers.Tiers, nil, "shopper", quietLogger())
	require.NoError(t, cache.Save([]domain.Order{*a, *bDone}))

	engine := NewEngine(clients.NewOrderHTTPClient(srv.url, 2*time.Second, quietLogger()), cache, nil, Config{}, quietLogger())
	res, err := engine.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Changed)

	assert.Equal(t, map[string]domain.OrderStatus{
		a.ID: domain.StatusProcessing,
		b.ID: domain.StatusCompleted,
	}, statuses(cache.Get()))
	assert.NotContains(t, statuses(cache.Get()), c.ID, "orders the shopper never placed stay on the server")

	st := cache.LoadSyncState()
	require.NotNil(t, st.LastSync)
	assert.Equal(t, uint64(5), st.Revision)

	// nothing new since the recorded revision
	res, err = engine.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Returned)

	srv.setStatus(t, a.ID, domain.StatusCompleted)
	res, err = engine.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Returned)
	assert.Equal(t, uint64(6), res.Revision)

	var got domain.Order
	for _, o := range cache.Get() {
		if o.ID == a.ID {
			got = o
		}
	}
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedDate)
	assert.Equal(t, "Achieng", got.Customer.Name)
}

type fakeClient struct {
	clients.OrderClient

	mu        sync.Mutex
	fetches   int
	fetchErr  error
	onFetch   func()
	createErr error
	updates   []domain.Order
}

func (f *fakeClient) FetchUpdates(ctx context.Context, req clients.UpdatesRequest) (*clients.UpdatesResponse, error) {
	f.mu.Lock()
	f.fetches++
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	updates := f.updates
	if updates == nil {
		updates = []domain.Order{}
	}
	return &clients.UpdatesResponse{UpdatedOrders: updates}, nil
}

func (f *fakeClient) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	return nil, f.createErr
}

func (f *fakeClient) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func TestSyncOnce_NoLocalOrdersSkipsServer(t *testing.T) {
	client := &fakeClient{}
	engine := NewEngine(client, localcache.New(newMemTiers().Tiers, nil, "t", quietLogger()), nil, Config{}, quietLogger())

	res, err := engine.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Zero(t, client.fetchCount())
}

func TestSyncFailure_KeepsLocalData(t *testing.T) {
	tiers := newMemTiers()
	bus := events.NewBus()
	var failures []events.SyncFailed
	bus.Subscribe(func(e events.Event) {
		if f, ok := e.(events.SyncFailed); ok {
			failures = append(failures, f)
		}
	})

	cache := localcache.New(tiers.Tiers, nil, "t", quietLogger())
	require.NoError(t, cache.Save([]domain.Order{mkOrder("DFA", 1, domain.StatusPending, 1)}))

	client := &fakeClient{fetchErr: errors.New("connection refused")}
	engine := NewEngine(client, cache, bus, Config{}, quietLogger())

	_, err := engine.SyncOnce(context.Background())
	var syncErr *domain.SyncError
	require.ErrorAs(t, err, &syncErr)

	engine.round(context.Background(), "test")
	assert.Len(t, cache.Get(), 1, "local orders survive a failed round")
	assert.Empty(t, failures, "no failure notice while local data is intact")

	client.onFetch = func() { tiers.wipe(t) }
	engine.round(context.Background(), "test")
	require.Len(t, failures, 1)
	assert.ErrorContains(t, failures[0].Err, "connection refused")
}

func TestSyncOnce_KeepsOrdersPlacedDuringRound(t *testing.T) {
	cache := localcache.New(newMemTiers().Tiers, nil, "t", quietLogger())
	require.NoError(t, cache.Save([]domain.Order{mkOrder("DFA", 2, domain.StatusPending, 1)}))

	fromServer := mkOrder("DFA", 2, domain.StatusProcessing, 2)
	fromServer.StatusUpdated = t0
	client := &fakeClient{
		createErr: errors.New("dial tcp: connection refused"),
		updates:   []domain.Order{fromServer},
	}
	engine := NewEngine(client, cache, nil, Config{}, quietLogger())

	var placed *domain.Order
	client.onFetch = func() {
		order, offline, err := engine.PushOrder(context.Background(), domain.CreateOrderRequest{
			Customer: domain.Customer{Name: "Akinyi", City: "Eldoret"},
			Items:    []domain.OrderItem{{Title: "Charger", Price: 1200, Quantity: 1}},
		})
		require.NoError(t, err)
		require.True(t, offline)
		placed = order
	}

	res, err := engine.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed)

	require.NotNil(t, placed)
	got := statuses(cache.Get())
	assert.Len(t, got, 2)
	assert.Equal(t, domain.StatusProcessing, got["DFA"])
	assert.Equal(t, domain.StatusPending, got[placed.ID], "checkout made while the request was in flight is kept")
}

func TestPushOrder(t *testing.T) {
	req := domain.CreateOrderRequest{
		Customer: domain.Customer{Name: "Njeri", City: "Thika"},
		Items:    []domain.OrderItem{{Title: "Cable", Price: 500, Quantity: 2}},
	}

	t.Run("online", func(t *testing.T) {
		srv := newServer(t)
		cache := localcache.New(newMemTiers().Tiers, nil, "t", quietLogger())
		engine := NewEngine(clients.NewOrderHTTPClient(srv.url, time.Second, quietLogger()), cache, nil, Config{}, quietLogger())

		order, offline, err := engine.PushOrder(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, offline)
		assert.True(t, strings.HasPrefix(order.ID, "DF"))
		assert.Equal(t, 1, srv.orders.Count())
		require.Len(t, cache.Get(), 1)
		assert.Equal(t, order.ID, cache.Get()[0].ID)
	})

	t.Run("offline", func(t *testing.T) {
		cache := localcache.New(newMemTiers().Tiers, nil, "t", quietLogger())
		engine := NewEngine(&fakeClient{createErr: errors.New("dial tcp: connection refused")}, cache, nil, Config{}, quietLogger())

		order, offline, err := engine.PushOrder(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, offline)
		assert.True(t, strings.HasPrefix(order.ID, "LOCAL-"))
		assert.Equal(t, OfflineSource, order.Source)
		assert.Equal(t, domain.StatusPending, order.Status)
		require.Len(t, cache.Get(), 1)
	})

	t.Run("rejected", func(t *testing.T) {
		cache := localcache.New(newMemTiers().Tiers, nil, "t", quietLogger())
		rejected := &clients.APIError{StatusCode: http.StatusBadRequest, Message: "Customer name is required"}
		engine := NewEngine(&fakeClient{createErr: rejected}, cache, nil, Config{}, quietLogger())

		_, _, err := engine.PushOrder(context.Background(), req)
		assert.True(t, clients.IsStatus(err, http.StatusBadRequest))
		assert.Empty(t, cache.Get(), "invalid orders are not kept")
	})
}

func TestTriggerCoalesces(t *testing.T) {
	engine := NewEngine(&fakeClient{}, localcache.New(newMemTiers().Tiers, nil, "t", quietLogger()), nil, Config{}, quietLogger())
	engine.Trigger("online")
	engine.Trigger("focus")
	engine.Trigger("manual")
	assert.Len(t, engine.trigger, 1)
	assert.Equal(t, "online", <-engine.trigger)
}

func TestRun_InitialRoundAndTriggers(t *testing.T) {
	cache := localcache.New(newMemTiers().Tiers, nil, "t", quietLogger())
	require.NoError(t, cache.Save([]domain.Order{mkOrder("DFA", 1, domain.StatusPending, 1)}))

	client := &fakeClient{}
	engine := NewEngine(client, cache, nil, Config{InitialDelay: time.Millisecond, Interval: time.Hour}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return client.fetchCount() == 1 }, time.Second, 5*time.Millisecond)
	engine.Trigger("manual")
	require.Eventually(t, func() bool { return client.fetchCount() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
