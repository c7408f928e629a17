package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"deenice_finds/config"
	"deenice_finds/internal/clients"
	"deenice_finds/internal/events"
	"deenice_finds/internal/localcache"
	"deenice_finds/internal/localstore"
	"deenice_finds/internal/syncer"
	"deenice_finds/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const usage = `usage: storefront <command> [flags]

shopper commands:
  checkout       place an order (kept offline if the API is unreachable)
  orders         list the orders stored on this machine
  sync           run one sync round against the API
  watch          keep syncing and backing up until interrupted
  recover        restore local orders from the backup tier

admin commands:
  admin-login    obtain a bearer token
  admin-orders   list every order with counts per status
  admin-status   change an order's status
  admin-delete   delete an order
  admin-save     force the server to persist its orders

Commands share the local store under DATA_DIR and it admits one process at a
time: stop watch before running another command against the same directory.
`

// app holds what every command needs. Fields are populated lazily by openLocal.
type app struct {
	cfg    *config.ClientConfig
	log    *logrus.Logger
	out    io.Writer
	client clients.OrderClient
	bus    *events.Bus

	db      *bolt.DB
	primary localstore.Store
	cache   *localcache.Cache
	engine  *syncer.Engine
}

// openLocal opens the bbolt file under DataDir and builds the cache tiers on it.
func (a *app) openLocal() error {
	if a.cache != nil {
		return nil
	}
	if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := localstore.OpenBolt(filepath.Join(a.cfg.DataDir, "orders.db"))
	if err != nil {
		return err
	}
	a.db = db

	buckets := map[string]localstore.Store{}
	for _, name := range []string{"primary", "backup", "blocks"} {
		s, err := localstore.NewBoltStore(db, name)
		if err != nil {
			return err
		}
		buckets[name] = s
	}
	a.primary = buckets["primary"]

	a.cache = localcache.New(localcache.Tiers{
		Primary: buckets["primary"],
		Backup:  buckets["backup"],
		Session: localstore.NewMemoryStore(),
		Blocks:  buckets["blocks"],
	}, a.bus, "storefront-"+uuid.NewString()[:8], a.log)
	a.engine = syncer.NewEngine(a.client, a.cache, a.bus, syncer.Config{
		InitialDelay: a.cfg.SyncInitialDelay,
		Interval:     a.cfg.SyncInterval,
	}, a.log)
	return nil
}

func (a *app) close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.log.Errorf("Failed to close local store: %v", err)
	}
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	log := logger.Setup("info", "text")
	cfg := config.LoadClientConfig(log)
	log = logger.Setup(cfg.LogLevel, "text")

	a := &app{
		cfg:    cfg,
		log:    log,
		out:    os.Stdout,
		client: clients.NewOrderHTTPClient(cfg.APIURL, cfg.HTTPTimeout, log),
		bus:    events.NewBus(),
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		log.Errorf("%s: %v", os.Args[1], err)
		a.close()
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, name string, args []string) error {
	commands := map[string]func(context.Context, []string) error{
		"checkout":     a.checkout,
		"orders":       a.orders,
		"sync":         a.syncNow,
		"watch":        a.watch,
		"recover":      a.recoverOrders,
		"admin-login":  a.adminLogin,
		"admin-orders": a.adminOrders,
		"admin-status": a.adminStatus,
		"admin-delete": a.adminDelete,
		"admin-save":   a.adminSave,
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", name)
	}
	return cmd(ctx, args)
}
