package events

import (
	"time"

	"deenice_finds/internal/domain"
)

type Event interface {
	EventName() string
}

type OrderCreated struct {
	EventID   string       `json:"event_id"`
	Order     domain.Order `json:"order"`
	Timestamp time.Time    `json:"timestamp"`
}

func (OrderCreated) EventName() string { return "order.created" }

type OrderStatusChanged struct {
	EventID       string             `json:"event_id"`
	OrderID       string             `json:"order_id"`
	From          domain.OrderStatus `json:"from"`
	To            domain.OrderStatus `json:"to"`
	StatusUpdated time.Time          `json:"status_updated"`
	CompletedDate *time.Time         `json:"completed_date,omitempty"`
	WhatsAppURL   string             `json:"whatsapp_url,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
}

func (OrderStatusChanged) EventName() string { return "order.status_changed" }

type OrderDeleted struct {
	EventID   string    `json:"event_id"`
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (OrderDeleted) EventName() string { return "order.deleted" }

// StorageChanged is raised after the local order cache was rewritten. Origin names the
// writer so a listener can skip its own writes.
type StorageChanged struct {
	Key    string
	Orders []domain.Order
	Origin string
}

func (StorageChanged) EventName() string { return "storage.changed" }

// SyncFailed is raised only when a sync round failed and there is no local data to fall back on.
type SyncFailed struct {
	Err error
	At  time.Time
}

func (SyncFailed) EventName() string { return "sync.failed" }

// OrderKey returns the partition key for order events, "" for others.
func OrderKey(e Event) string {
	switch ev := e.(type) {
	case OrderCreated:
		return ev.Order.ID
	case OrderStatusChanged:
		return ev.OrderID
	case OrderDeleted:
		return ev.OrderID
	default:
		return ""
	}
}
