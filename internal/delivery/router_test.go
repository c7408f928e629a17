package delivery

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deenice_finds/internal/domain"
	"deenice_finds/internal/events"
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

type apiFixture struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	dir := t.TempDir()

	orders := repository.NewOrderRepository(repository.NewFileSnapshotter(filepath.Join(dir, "orders.json"), logger), logger)
	categories := repository.NewCategoryRepository(repository.NewFileSnapshotter(filepath.Join(dir, "categories.json"), logger), logger)
	hash, err := bcrypt.GenerateFromPassword([]byte("pass"), bcrypt.MinCost)
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Orders:     usecase.NewOrderUseCase(orders, events.NewBus(), notify.DefaultOptions(), logger),
		Categories: usecase.NewCategoryUseCase(categories, logger),
		Auth: usecase.NewAuthUseCase(usecase.AuthConfig{
			Username:     "admin",
			PasswordHash: string(hash),
			Secret:       []byte("secret"),
			TokenTTL:     time.Hour,
			IdleTimeout:  30 * time.Minute,
		}, logger),
		MaxBodyBytes: 4 << 10,
		Log:          logger,
	})
	return &apiFixture{t: t, router: router}
}

func (a *apiFixture) do(method, path string, body any, auth bool) (int, map[string]any) {
	a.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (a *apiFixture) login() {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/api/admin/login", gin.H{"username": "admin", "password": "pass"}, false)
	require.Equal(a.t, http.StatusOK, code)
	assert.Equal(a.t, float64(3600), body["expiresIn"])
	a.token = body["token"].(string)
}

func newOrderBody() gin.H {
	return gin.H{
		"customer": gin.H{"name": "Brian Kamau", "city": "Mombasa", "phone": "+254 722 000 111"},
		"items":    []gin.H{{"title": "Charger", "price": 1200, "quantity": 1}},
		"delivery": gin.H{"method": "home"},
		"status":   "completed",
	}
}

func (a *apiFixture) createOrder() string {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/api/orders", newOrderBody(), false)
	require.Equal(a.t, http.StatusCreated, code)
	order := body["order"].(map[string]any)
	assert.Equal(a.t, "pending", order["status"], "client status is ignored")
	return order["id"].(string)
}

func TestCreateOrder(t *testing.T) {
	api := newAPI(t)
	api.createOrder()

	code, body := api.do(http.MethodPost, "/api/orders", gin.H{"customer": gin.H{"name": " "}, "items": []gin.H{}}, false)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.Len(t, body["errors"], 3)

	code, _ = api.do(http.MethodPost, "/api/orders", "{broken", false)
	assert.Equal(t, http.StatusBadRequest, code)

	big := `{"notes":"` + strings.Repeat("x", 8<<10) + `"}`
	code, _ = api.do(http.MethodPost, "/api/orders", big, false)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	api := newAPI(t)
	code, _ := api.do(http.MethodGet, "/api/orders", nil, false)
	assert.Equal(t, http.StatusUnauthorized, code)

	api.token = "forged"
	code, _ = api.do(http.MethodGet, "/api/orders", nil, true)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(http.MethodPost, "/api/admin/login", gin.H{"username": "admin", "password": "nope"}, false)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAdminOrderLifecycle(t *testing.T) {
	api := newAPI(t)
	id := api.createOrder()
	api.login()

	code, body := api.do(http.MethodGet, "/api/orders", nil, true)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(1), body["stats"].(map[string]any)["pending"])

	code, body = api.do(http.MethodPut, "/api/orders/"+id+"/status", gin.H{"status": "processing"}, true)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "processing", body["order"].(map[string]any)["status"])
	assert.True(t, strings.HasPrefix(body["whatsappURL"].(string), "https://wa.me/254722000111?text="))

	code, body = api.do(http.MethodPut, "/api/orders/"+id+"/status", gin.H{"status": "processing"}, true)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["whatsappURL"])

	code, _ = api.do(http.MethodPut, "/api/orders/"+id+"/status", gin.H{"status": "lost"}, true)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = api.do(http.MethodPut, "/api/orders/DFMISSING/status", gin.H{"status": "completed"}, true)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = api.do(http.MethodGet, "/api/orders/"+id, nil, false)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, body["order"].(map[string]any)["id"])

	code, _ = api.do(http.MethodPost, "/api/admin/save", nil, true)
	assert.Equal(t, http.StatusOK, code)

	code, body = api.do(http.MethodDelete, "/api/orders/"+id, nil, true)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, body["deletedOrder"].(map[string]any)["id"])
	code, _ = api.do(http.MethodDelete, "/api/orders/"+id, nil, true)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.do(http.MethodPost, "/api/admin/logout", nil, true)
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodGet, "/api/orders", nil, true)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSyncEndpoints(t *testing.T) {
	api := newAPI(t)
	id := api.createOrder()

	code, _ := api.do(http.MethodPost, "/api/orders/updates", gin.H{"orderIds": []string{}}, false)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := api.do(http.MethodPost, "/api/orders/updates", gin.H{"orderIds": []string{id, "DFOTHER"}}, false)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["hasUpdates"])
	assert.Len(t, body["updatedOrders"], 1)
	assert.Equal(t, float64(1), body["revision"])
	assert.NotEmpty(t, body["serverTime"])

	code, body = api.do(http.MethodPost, "/api/orders/updates", gin.H{"orderIds": []string{id}, "sinceRevision": 1}, false)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["hasUpdates"])

	code, _ = api.do(http.MethodPost, "/api/orders/user", gin.H{}, false)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = api.do(http.MethodPost, "/api/orders/user", gin.H{"localOrders": []gin.H{}}, false)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["orders"])

	code, body = api.do(http.MethodPost, "/api/orders/user", gin.H{"localOrders": []gin.H{{"id": id}}}, false)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["orders"], 1)
}

func TestCategories(t *testing.T) {
	api := newAPI(t)
	api.login()

	code, body := api.do(http.MethodPost, "/api/categories", gin.H{"name": "Smart Watches", "icon": "watch"}, true)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "smart-watches", body["category"].(map[string]any)["id"])

	code, _ = api.do(http.MethodPost, "/api/categories", gin.H{"name": "smart watches"}, true)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = api.do(http.MethodPost, "/api/categories", gin.H{"name": "Cables"}, false)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = api.do(http.MethodGet, "/api/categories", nil, false)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["categories"], 1)
}

func TestHealthAndNoRoute(t *testing.T) {
	api := newAPI(t)
	api.createOrder()

	code, body := api.do(http.MethodGet, "/api/health", nil, false)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["ordersCount"])

	code, body = api.do(http.MethodGet, "/api/nowhere", nil, false)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])
}

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("x", "bad"), http.StatusBadRequest},
		{&domain.NotFoundError{Resource: "order", ID: "1"}, http.StatusNotFound},
		{&domain.ConflictError{Message: "dup"}, http.StatusConflict},
		{&domain.AuthError{Code: domain.AuthInvalidToken}, http.StatusForbidden},
		{&domain.AuthError{Code: domain.AuthInvalidCredentials}, http.StatusUnauthorized},
		{&domain.PersistenceError{Op: "save", Err: io.ErrShortWrite}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapErrorToStatus(tt.err), tt.err.Error())
	}
}
