package domain

import (
	"context"
	"time"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

// AllStatuses lists the statuses in lifecycle order.
var AllStatuses = []OrderStatus{StatusPending, StatusProcessing, StatusCompleted, StatusCancelled}

type DeliveryMethod string

const (
	DeliveryPickup DeliveryMethod = "pickup"
	DeliveryHome   DeliveryMethod = "home"
)

type Customer struct {
	Name    string `json:"name" validate:"required"`
	City    string `json:"city" validate:"required"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type OrderItem struct {
	ProductID string  `json:"productId,omitempty"`
	Title     string  `json:"title" validate:"required"`
	Price     float64 `json:"price" validate:"gte=0"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
	Color     string  `json:"color,omitempty"`
	Size      string  `json:"size,omitempty"`
	Model     string  `json:"model,omitempty"`
	Image     string  `json:"image,omitempty"`
}

type Delivery struct {
	Method     DeliveryMethod `json:"method"`
	PickupCode string         `json:"pickupCode,omitempty"`
	Address    string         `json:"address,omitempty"`
}

// ProgressEntry is a client-side snapshot of an order status. The server never writes these.
type ProgressEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Step      int         `json:"step"`
}

type Order struct {
	ID              string          `json:"id"`
	OrderDate       time.Time       `json:"orderDate"`
	Status          OrderStatus     `json:"status"`
	StatusUpdated   time.Time       `json:"statusUpdated"`
	CompletedDate   *time.Time      `json:"completedDate,omitempty"`
	Customer        Customer        `json:"customer"`
	Items           []OrderItem     `json:"items"`
	Delivery        *Delivery       `json:"delivery,omitempty"`
	ProgressHistory []ProgressEntry `json:"progressHistory,omitempty"`
	Source          string          `json:"source,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	TotalAmount     *float64        `json:"totalAmount,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Revision        uint64          `json:"revision,omitempty"`
}

// LastChanged is the timestamp the update filters compare against.
func (o *Order) LastChanged() time.Time {
	if !o.StatusUpdated.IsZero() {
		return o.StatusUpdated
	}
	return o.OrderDate
}

// Clone returns a deep copy so callers never share slices with the store.
func (o *Order) Clone() Order {
	c := *o
	if o.Items != nil {
		c.Items = append([]OrderItem(nil), o.Items...)
	}
	if o.ProgressHistory != nil {
		c.ProgressHistory = append([]ProgressEntry(nil), o.ProgressHistory...)
	}
	if o.Delivery != nil {
		d := *o.Delivery
		c.Delivery = &d
	}
	if o.CompletedDate != nil {
		t := *o.CompletedDate
		c.CompletedDate = &t
	}
	if o.TotalAmount != nil {
		v := *o.TotalAmount
		c.TotalAmount = &v
	}
	return c
}

type CreateOrderRequest struct {
	Customer    Customer    `json:"customer"`
	Items       []OrderItem `json:"items" validate:"required,min=1,dive"`
	Delivery    *Delivery   `json:"delivery,omitempty"`
	Source      string      `json:"source,omitempty"`
	Currency    string      `json:"currency,omitempty"`
	TotalAmount *float64    `json:"totalAmount,omitempty"`
	Notes       string      `json:"notes,omitempty"`
}

type OrderStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
}

type OrderList struct {
	Orders []Order    `json:"orders"`
	Total  int        `json:"total"`
	Stats  OrderStats `json:"stats"`
}

// UpdatesQuery selects orders by id that changed after LastSync, or after SinceRevision when set.
type UpdatesQuery struct {
	OrderIDs      []string
	LastSync      *time.Time
	SinceRevision uint64
}

type UpdatesResult struct {
	Orders   []Order
	Revision uint64
}

type StatusUpdateResult struct {
	Order       Order
	Changed     bool
	WhatsAppURL string
}

type OrderRepository interface {
	Load(ctx context.Context) error
	Create(order *Order) (*Order, error)
	GetByID(id string) (*Order, error)
	List() []Order
	UpdateStatus(id string, status OrderStatus, at time.Time) (*Order, OrderStatus, error)
	Delete(id string) (*Order, error)
	Revision() uint64
	Count() int
	Save(ctx context.Context) error
}

type OrderUseCase interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context) (*OrderList, error)
	GetUpdates(ctx context.Context, q UpdatesQuery) (*UpdatesResult, error)
	GetUserOrders(ctx context.Context, localOrders []Order, lastSync *time.Time) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status OrderStatus) (*StatusUpdateResult, error)
	DeleteOrder(ctx context.Context, id string) (*Order, error)
	Save(ctx context.Context) error
	Count() int
}

func IsValidStatus(status OrderStatus) bool {
	switch status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}
