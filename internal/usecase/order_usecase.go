package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"deenice_finds/internal/domain"
	"deenice_finds/internal/events"
	"deenice_finds/internal/notify"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var _ domain.OrderUseCase = (*orderUseCase)(nil)

type orderUseCase struct {
	orderRepo  domain.OrderRepository
	bus        *events.Bus
	notifyOpts notify.Options
	now        func() time.Time
	log        *logrus.Logger
}

func NewOrderUseCase(repo domain.OrderRepository, bus *events.Bus, opts notify.Options, logger *logrus.Logger) domain.OrderUseCase {
	return &orderUseCase{
		orderRepo:  repo,
		bus:        bus,
		notifyOpts: opts,
		now:        time.Now,
		log:        logger,
	}
}

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// newOrderID returns DF + base36 millis + three random base36 characters.
func newOrderID(at time.Time) string {
	var b strings.Builder
	b.WriteString("DF")
	b.WriteString(strings.ToUpper(strconv.FormatInt(at.UnixMilli(), 36)))
	for i := 0; i < 3; i++ {
		b.WriteByte(base36[rand.IntN(len(base36))])
	}
	return b.String()
}

// persist flushes the store. A failed write is logged and swallowed: memory stays authoritative.
func (uc *orderUseCase) persist(ctx context.Context, op string) {
	if err := uc.orderRepo.Save(ctx); err != nil {
		uc.log.Errorf("Use Case: Failed to persist orders after %s: %v", op, err)
	}
}

func (uc *orderUseCase) publish(e events.Event) {
	if uc.bus != nil {
		uc.bus.Publish(e)
	}
}

func (uc *orderUseCase) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	if err := validateCreateOrder(&req); err != nil {
		uc.log.Warnf("Use Case: Rejected order for %q: %v", req.Customer.Name, err)
		return nil, err
	}

	now := uc.now()
	order := &domain.Order{
		ID:            newOrderID(now),
		OrderDate:     now,
		Status:        domain.StatusPending,
		StatusUpdated: now,
		Customer:      req.Customer,
		Items:         req.Items,
		Delivery:      req.Delivery,
		Source:        req.Source,
		Currency:      req.Currency,
		TotalAmount:   req.TotalAmount,
		Notes:         req.Notes,
	}

	created, err := uc.orderRepo.Create(order)
	if err != nil {
		uc.log.Errorf("Use Case: Failed to store order: %v", err)
		return nil, err
	}
	uc.persist(ctx, "create")

	uc.log.Infof("Use Case: Order %s created for %s (%d item(s))", created.ID, created.Customer.Name, len(created.Items))
	uc.publish(events.OrderCreated{EventID: uuid.NewString(), Order: *created, Timestamp: now})
	return created, nil
}

func (uc *orderUseCase) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return uc.orderRepo.GetByID(id)
}

func (uc *orderUseCase) ListOrders(ctx context.Context) (*domain.OrderList, error) {
	orders := uc.orderRepo.List()
	stats := domain.OrderStats{Total: len(orders)}
	for _, o := range orders {
		switch o.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusProcessing:
			stats.Processing++
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusCancelled:
			stats.Cancelled++
		}
	}
	uc.log.Debugf("Use Case: Listing %d orders", len(orders))
	return &domain.OrderList{Orders: orders, Total: len(orders), Stats: stats}, nil
}

// selectChanged returns the stored orders in ids that changed after either cursor. An
// order qualifies when its revision is above sinceRevision or it changed after lastSync;
// with neither cursor every requested order is returned.
func (uc *orderUseCase) selectChanged(ids map[string]struct{}, lastSync *time.Time, sinceRevision uint64) []domain.Order {
	out := []domain.Order{}
	for _, o := range uc.orderRepo.List() {
		if _, ok := ids[o.ID]; !ok {
			continue
		}
		if sinceRevision == 0 && lastSync == nil {
			out = append(out, o)
			continue
		}
		if (sinceRevision > 0 && o.Revision > sinceRevision) ||
			(lastSync != nil && o.LastChanged().After(*lastSync)) {
			out = append(out, o)
		}
	}
	return out
}

func (uc *orderUseCase) GetUpdates(ctx context.Context, q domain.UpdatesQuery) (*domain.UpdatesResult, error) {
	if len(q.OrderIDs) == 0 {
		return nil, domain.NewValidationError("orderIds", "orderIds must be a non-empty array")
	}
	ids := make(map[string]struct{}, len(q.OrderIDs))
	for _, id := range q.OrderIDs {
		ids[id] = struct{}{}
	}
	// read the revision first so a concurrent write is picked up by the next poll
	revision := uc.orderRepo.Revision()
	since := q.SinceRevision
	if since > revision {
		// the cursor comes from a store that has since lost history; fall back to lastSync
		uc.log.Warnf("Use Case: sinceRevision %d is ahead of store revision %d, ignoring it", since, revision)
		since = 0
	}
	orders := uc.selectChanged(ids, q.LastSync, since)

	uc.log.Debugf("Use Case: %d of %d requested orders changed", len(orders), len(q.OrderIDs))
	return &domain.UpdatesResult{Orders: orders, Revision: revision}, nil
}

func (uc *orderUseCase) GetUserOrders(ctx context.Context, localOrders []domain.Order, lastSync *time.Time) ([]domain.Order, error) {
	if localOrders == nil {
		return nil, domain.NewValidationError("localOrders", "localOrders must be an array")
	}
	ids := make(map[string]struct{}, len(localOrders))
	for _, o := range localOrders {
		if o.ID != "" {
			ids[o.ID] = struct{}{}
		}
	}
	return uc.selectChanged(ids, lastSync, 0), nil
}

func (uc *orderUseCase) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.StatusUpdateResult, error) {
	if !domain.IsValidStatus(status) {
		uc.log.Warnf("Use Case: Invalid status %q for order %s", status, id)
		return nil, domain.NewValidationError("status", "Invalid status. Must be one of: pending, processing, completed, cancelled")
	}

	now := uc.now()
	updated, previous, err := uc.orderRepo.UpdateStatus(id, status, now)
	if err != nil {
		return nil, err
	}
	uc.persist(ctx, "status update")

	result := &domain.StatusUpdateResult{Order: *updated, Changed: previous != status}
	if result.Changed && status != domain.StatusPending {
		if link, ok := notify.BuildWhatsAppLink(updated, status, uc.notifyOpts); ok {
			result.WhatsAppURL = link
		} else {
			uc.log.Infof("Use Case: No WhatsApp link for order %s (phone %q)", id, updated.Customer.Phone)
		}
	}

	uc.log.Infof("Use Case: Order %s status %s -> %s", id, previous, status)
	uc.publish(events.OrderStatusChanged{
		EventID:       uuid.NewString(),
		OrderID:       id,
		From:          previous,
		To:            status,
		StatusUpdated: updated.StatusUpdated,
		CompletedDate: updated.CompletedDate,
		WhatsAppURL:   result.WhatsAppURL,
		Timestamp:     now,
	})
	return result, nil
}

func (uc *orderUseCase) DeleteOrder(ctx context.Context, id string) (*domain.Order, error) {
	deleted, err := uc.orderRepo.Delete(id)
	if err != nil {
		var nf *domain.NotFoundError
		if !errors.As(err, &nf) {
			uc.log.Errorf("Use Case: Failed to delete order %s: %v", id, err)
		}
		return nil, err
	}
	uc.persist(ctx, "delete")

	uc.log.Infof("Use Case: Order %s deleted", id)
	uc.publish(events.OrderDeleted{EventID: uuid.NewString(), OrderID: id, Timestamp: uc.now()})
	return deleted, nil
}

func (uc *orderUseCase) Save(ctx context.Context) error {
	if err := uc.orderRepo.Save(ctx); err != nil {
		uc.log.Errorf("Use Case: Manual save failed: %v", err)
		return err
	}
	uc.log.Infof("Use Case: Saved %d orders", uc.orderRepo.Count())
	return nil
}

func (uc *orderUseCase) Count() int {
	return uc.orderRepo.Count()
}
