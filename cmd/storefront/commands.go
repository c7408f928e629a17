package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"deenice_finds/internal/domain"
	"deenice_finds/internal/events"
	"deenice_finds/internal/localcache"

	"github.com/google/uuid"
)

const adminTokenKey = "admin_token"

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func (a *app) checkout(ctx context.Context, args []string) error {
	fs := newFlagSet("checkout")
	var items itemsFlag
	name := fs.String("name", "", "customer name")
	city := fs.String("city", "", "customer city")
	phone := fs.String("phone", "", "customer phone")
	email := fs.String("email", "", "customer email")
	method := fs.String("delivery", string(domain.DeliveryPickup), "delivery method: pickup or home")
	address := fs.String("address", "", "delivery address")
	currency := fs.String("currency", "", "currency code")
	notes := fs.String("notes", "", "order notes")
	fs.Var(&items, "item", `item as "title:price[:quantity]", repeatable`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.openLocal(); err != nil {
		return err
	}

	req := domain.CreateOrderRequest{
		Customer: domain.Customer{Name: *name, City: *city, Phone: *phone, Email: *email, Address: *address},
		Items:    items,
		Delivery: &domain.Delivery{Method: domain.DeliveryMethod(*method), Address: *address},
		Source:   "storefront-cli",
		Currency: *currency,
		Notes:    *notes,
	}
	order, offline, err := a.engine.PushOrder(ctx, req)
	if err != nil {
		return err
	}
	if offline {
		fmt.Fprintf(a.out, "API unreachable: order saved on this machine as %s\n", order.ID)
		return nil
	}
	fmt.Fprintf(a.out, "Order %s placed, total %s\n", order.ID, formatTotal(order))
	return nil
}

func (a *app) orders(ctx context.Context, args []string) error {
	fs := newFlagSet("orders")
	status := fs.String("status", "", "only show orders in this status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.openLocal(); err != nil {
		return err
	}

	var shown []domain.Order
	for _, o := range a.cache.Get() {
		if *status == "" || string(o.Status) == *status {
			shown = append(shown, o)
		}
	}
	if len(shown) == 0 {
		fmt.Fprintln(a.out, "No orders stored on this machine.")
		return nil
	}
	return renderOrders(a.out, shown)
}

func (a *app) syncNow(ctx context.Context, args []string) error {
	if err := newFlagSet("sync").Parse(args); err != nil {
		return err
	}
	if err := a.openLocal(); err != nil {
		return err
	}
	res, err := a.engine.SyncOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Checked %d orders, %d updated (revision %d)\n", res.Sent, res.Changed, res.Revision)
	return nil
}

// watch syncs on the engine's schedule, SIGHUP forces a round.
func (a *app) watch(ctx context.Context, args []string) error {
	if err := newFlagSet("watch").Parse(args); err != nil {
		return err
	}
	if err := a.openLocal(); err != nil {
		return err
	}
	if _, err := a.cache.EmergencyRecovery(); err != nil {
		a.log.Warnf("Startup recovery failed: %v", err)
	}

	view := localcache.NewView(a.cache, a.bus)
	defer view.Close()
	view.OnChange(func(orders []domain.Order) {
		fmt.Fprintf(a.out, "%d orders stored locally\n", len(orders))
	})
	defer a.bus.Subscribe(func(e events.Event) {
		if f, ok := e.(events.SyncFailed); ok {
			fmt.Fprintf(a.out, "Sync failed and no local orders are available: %v\n", f.Err)
		}
	})()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				a.engine.Trigger("signal")
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.cache.StartBackups(ctx, a.cfg.BackupInterval)
	}()

	fmt.Fprintf(a.out, "Watching %d local orders against %s (Ctrl+C to stop)\n", len(view.Orders()), a.cfg.APIURL)
	a.engine.Run(ctx)
	// the final backup must land before the store is closed
	wg.Wait()
	return nil
}

func (a *app) recoverOrders(ctx context.Context, args []string) error {
	if err := newFlagSet("recover").Parse(args); err != nil {
		return err
	}
	if err := a.openLocal(); err != nil {
		return err
	}
	restored, err := a.cache.EmergencyRecovery()
	if err != nil {
		return err
	}
	if restored {
		fmt.Fprintf(a.out, "Restored %d orders from backup\n", len(a.cache.Get()))
	} else {
		fmt.Fprintln(a.out, "Nothing to recover")
	}
	return nil
}

// adminToken resolves the bearer token: flag, then environment, then the stored login.
func (a *app) adminToken(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if a.cfg.AdminToken != "" {
		return a.cfg.AdminToken, nil
	}
	if err := a.openLocal(); err != nil {
		return "", err
	}
	data, ok, err := a.primary.Get(adminTokenKey)
	if err != nil {
		return "", err
	}
	if !ok || len(data) == 0 {
		return "", errors.New("not logged in: run admin-login or set STOREFRONT_ADMIN_TOKEN")
	}
	return string(data), nil
}

func (a *app) adminLogin(ctx context.Context, args []string) error {
	fs := newFlagSet("admin-login")
	username := fs.String("username", "", "admin username")
	password := fs.String("password", os.Getenv("STOREFRONT_ADMIN_PASSWORD"), "admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, err := a.client.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	if err := a.openLocal(); err != nil {
		return err
	}
	if err := a.primary.Put(adminTokenKey, []byte(token)); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	fmt.Fprintln(a.out, "Logged in, token stored for admin commands")
	return nil
}

func (a *app) adminOrders(ctx context.Context, args []string) error {
	fs := newFlagSet("admin-orders")
	tokenFlag := fs.String("token", "", "bearer token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, err := a.adminToken(*tokenFlag)
	if err != nil {
		return err
	}
	list, err := a.client.ListOrders(ctx, token)
	if err != nil {
		return err
	}
	if err := renderOrders(a.out, list.Orders); err != nil {
		return err
	}
	s := list.Stats
	fmt.Fprintf(a.out, "total %d: pending %d, processing %d, completed %d, cancelled %d\n",
		s.Total, s.Pending, s.Processing, s.Completed, s.Cancelled)
	return nil
}

func (a *app) adminStatus(ctx context.Context, args []string) error {
	fs := newFlagSet("admin-status")
	tokenFlag := fs.String("token", "", "bearer token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("usage: admin-status [-token T] <order-id> <status>")
	}
	token, err := a.adminToken(*tokenFlag)
	if err != nil {
		return err
	}
	id, status := fs.Arg(0), domain.OrderStatus(strings.ToLower(fs.Arg(1)))

	change, err := a.client.UpdateStatus(ctx, token, id, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Order %s is now %s\n", change.Order.ID, change.Order.Status)
	if change.WhatsAppURL != nil {
		fmt.Fprintf(a.out, "Notify the customer: %s\n", *change.WhatsAppURL)
	}

	// a shopper copy on this machine follows immediately instead of waiting for a sync
	if err := a.openLocal(); err != nil {
		return err
	}
	defer a.cache.FollowStatusChanges(a.bus)()
	a.bus.Publish(events.OrderStatusChanged{
		EventID:       uuid.NewString(),
		OrderID:       change.Order.ID,
		To:            change.Order.Status,
		StatusUpdated: change.Order.StatusUpdated,
		CompletedDate: change.Order.CompletedDate,
		WhatsAppURL:   deref(change.WhatsAppURL),
		Timestamp:     change.Order.StatusUpdated,
	})
	return nil
}

func (a *app) adminDelete(ctx context.Context, args []string) error {
	fs := newFlagSet("admin-delete")
	tokenFlag := fs.String("token", "", "bearer token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: admin-delete [-token T] <order-id>")
	}
	token, err := a.adminToken(*tokenFlag)
	if err != nil {
		return err
	}
	deleted, err := a.client.DeleteOrder(ctx, token, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted order %s (%s)\n", deleted.ID, deleted.Customer.Name)
	return nil
}

func (a *app) adminSave(ctx context.Context, args []string) error {
	fs := newFlagSet("admin-save")
	tokenFlag := fs.String("token", "", "bearer token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, err := a.adminToken(*tokenFlag)
	if err != nil {
		return err
	}
	count, err := a.client.Save(ctx, token)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Server saved %d orders\n", count)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
