package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"deenice_finds/internal/domain"

	"github.com/sirupsen/logrus"
)

// APIError is a non-2xx answer from the order API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("order api returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

type UpdatesRequest struct {
	OrderIDs      []string   `json:"orderIds"`
	LastSync      *time.Time `json:"lastSync,omitempty"`
	SinceRevision uint64     `json:"sinceRevision,omitempty"`
}

type UpdatesResponse struct {
	UpdatedOrders []domain.Order `json:"updatedOrders"`
	HasUpdates    bool           `json:"hasUpdates"`
	ServerTime    time.Time      `json:"serverTime"`
	Revision      uint64         `json:"revision"`
}

type StatusChange struct {
	Order       domain.Order `json:"order"`
	WhatsAppURL *string      `json:"whatsappURL"`
}

type OrderClient interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	FetchUpdates(ctx context.Context, req UpdatesRequest) (*UpdatesResponse, error)
	FetchUserOrders(ctx context.Context, local []domain.Order, lastSync *time.Time) ([]domain.Order, error)

	Login(ctx context.Context, username, password string) (string, error)
	ListOrders(ctx context.Context, token string) (*domain.OrderList, error)
	UpdateStatus(ctx context.Context, token, id string, status domain.OrderStatus) (*StatusChange, error)
	DeleteOrder(ctx context.Context, token, id string) (*domain.Order, error)
	Save(ctx context.Context, token string) (int, error)
}

type orderHTTPClient struct {
	baseURL string
	client  *http.Client
	log     *logrus.Logger
}

func NewOrderHTTPClient(baseURL string, timeout time.Duration, logger *logrus.Logger) OrderClient {
	return &orderHTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		log: logger,
	}
}

// do sends body as JSON and decodes a 2xx answer into out.
func (c *orderHTTPClient) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request for %s: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debugf("OrderClient: %s %s", method, path)
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warnf("OrderClient: %s %s failed: %v", method, path, err)
		return fmt.Errorf("failed to communicate with order api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &failure) != nil || failure.Error == "" {
			failure.Error = strings.TrimSpace(string(raw))
		}
		c.log.Warnf("OrderClient: %s %s returned %d: %s", method, path, resp.StatusCode, failure.Error)
		return &APIError{StatusCode: resp.StatusCode, Message: failure.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode order api response for %s: %w", path, err)
	}
	return nil
}

func (c *orderHTTPClient) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	var resp struct {
		Order domain.Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/orders", "", req, &resp); err != nil {
		return nil, err
	}
	c.log.Infof("OrderClient: Order %s accepted by the server", resp.Order.ID)
	return &resp.Order, nil
}

func (c *orderHTTPClient) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var resp struct {
		Order domain.Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(id), "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

func (c *orderHTTPClient) FetchUpdates(ctx context.Context, req UpdatesRequest) (*UpdatesResponse, error) {
	var resp UpdatesResponse
	if err := c.do(ctx, http.MethodPost, "/api/orders/updates", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *orderHTTPClient) FetchUserOrders(ctx context.Context, local []domain.Order, lastSync *time.Time) ([]domain.Order, error) {
	if local == nil {
		local = []domain.Order{}
	}
	body := struct {
		LocalOrders []domain.Order `json:"localOrders"`
		LastSync    *time.Time     `json:"lastSync,omitempty"`
	}{local, lastSync}

	var resp struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/orders/user", "", body, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (c *orderHTTPClient) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/admin/login", "", body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *orderHTTPClient) ListOrders(ctx context.Context, token string) (*domain.OrderList, error) {
	var list domain.OrderList
	if err := c.do(ctx, http.MethodGet, "/api/orders", token, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *orderHTTPClient) UpdateStatus(ctx context.Context, token, id string, status domain.OrderStatus) (*StatusChange, error) {
	var resp StatusChange
	body := map[string]domain.OrderStatus{"status": status}
	if err := c.do(ctx, http.MethodPut, "/api/orders/"+url.PathEscape(id)+"/status", token, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *orderHTTPClient) DeleteOrder(ctx context.Context, token, id string) (*domain.Order, error) {
	var resp struct {
		DeletedOrder domain.Order `json:"deletedOrder"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/orders/"+url.PathEscape(id), token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.DeletedOrder, nil
}

func (c *orderHTTPClient) Save(ctx context.Context, token string) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/admin/save", token, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
