package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saveitforlater/checkout/internal/domain"
	"github.com/saveitforlater/checkout/internal/health"
	"github.com/saveitforlater/checkout/internal/service/checkout"
	"github.com/saveitforlater/checkout/internal/service/gateway"
	"github.com/saveitforlater/checkout/internal/service/stock"
	"github.com/saveitforlater/checkout/internal/storage/memory"
	transport "github.com/saveitforlater/checkout/internal/transport/http"
)

type env struct {
	server   *transport.Server
	products domain.ProductRepository
	carts    domain.CartStore
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := memory.NewStore()
	orders := memory.NewOrderRepository(store)
	products := memory.NewProductRepository(store)
	carts := memory.NewCartStore(store)

	svc := checkout.NewService(checkout.Deps{
		Orders:   orders,
		Products: products,
		Carts:    carts,
		Ledger:   stock.NewLedger(products, orders, nil),
		Gateway:  gateway.NewMockAuthorizer(),
		Outbox:   memory.NewOutboxRepository(),
	})
	return &env{
		server:   transport.NewServer(svc, nil, nil),
		products: products,
		carts:    carts,
	}
}

func (e *env) seed(t *testing.T, ownerID string, qty int32) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.products.Create(ctx, domain.Product{
		ID:            "product-1",
		SKU:           "SKU-1",
		Name:          "Widget",
		Price:         decimal.NewFromInt(100),
		StockQuantity: 10,
		Version:       1,
	}))
	require.NoError(t, e.carts.Save(ctx, domain.Cart{
		OwnerID: ownerID,
		Lines:   []domain.CartLine{{ProductID: "product-1", Qty: qty}},
	}))
}

func (e *env) do(t *testing.T, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reader).Encode(body))
	}

	req := httptest.NewRequest(method, path, &reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *env) createOrder(t *testing.T, userID string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/orders", userID, "", map[string]any{
		"payment_method": "credit_card",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.NotEmpty(t, view.ID)
	return view.ID
}

func cardBody() map[string]any {
	return map[string]any{
		"card_number": "4242424242424242",
		"holder_name": "IVAN PETROV",
		"expiry":      "12/28",
		"cvv":         "123",
	}
}

func TestServer_RequiresIdentity(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/orders/my", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_CreateAndPayOrder(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "customer-1", 2)

	orderID := e.createOrder(t, "customer-1")

	rec := e.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/pay", "customer-1", "", cardBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view struct {
		Status  string `json:"status"`
		Total   string `json:"total"`
		Payment struct {
			Status         string `json:"status"`
			TransactionRef string `json:"transaction_ref"`
		} `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "confirmed", view.Status)
	assert.Equal(t, "200.00", view.Total)
	assert.Equal(t, "completed", view.Payment.Status)
	assert.NotEmpty(t, view.Payment.TransactionRef)
}

func TestServer_CreateOrderErrors(t *testing.T) {
	e := newEnv(t)

	// Пустая корзина.
	rec := e.do(t, http.MethodPost, "/api/v1/orders", "customer-1", "", map[string]any{
		"payment_method": "credit_card",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Неизвестный метод оплаты.
	e.seed(t, "customer-1", 1)
	rec = e.do(t, http.MethodPost, "/api/v1/orders", "customer-1", "", map[string]any{
		"payment_method": "crypto",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Нехватка стока.
	e.seed(t, "customer-2", 99)
	rec = e.do(t, http.MethodPost, "/api/v1/orders", "customer-2", "", map[string]any{
		"payment_method": "credit_card",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_ForeignOrderIsNotFound(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "customer-1", 1)
	orderID := e.createOrder(t, "customer-1")

	rec := e.do(t, http.MethodGet, "/api/v1/orders/"+orderID, "customer-2", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Администратор видит любой заказ.
	rec = e.do(t, http.MethodGet, "/api/v1/orders/"+orderID, "admin-1", "admin", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_AdminListForbiddenForCustomer(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/orders", "customer-1", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/orders", "admin-1", "admin", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_DoublePayConflicts(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "customer-1", 1)
	orderID := e.createOrder(t, "customer-1")

	rec := e.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/pay", "customer-1", "", cardBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/pay", "customer-1", "", cardBody())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_SetOrderStatus(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "customer-1", 1)
	orderID := e.createOrder(t, "customer-1")

	rec := e.do(t, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", "customer-1", "", map[string]any{
		"status": "cancelled",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", "admin-1", "admin", map[string]any{
		"status": "cancelled",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "cancelled", view.Status)
}

func TestServer_SetPaymentStatus(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "customer-1", 1)

	rec := e.do(t, http.MethodPost, "/api/v1/orders", "customer-1", "", map[string]any{
		"payment_method": "cash_on_delivery",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = e.do(t, http.MethodPatch, "/api/v1/orders/"+created.ID+"/payment-status", "admin-1", "admin", map[string]any{
		"status": "completed",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view struct {
		Status  string `json:"status"`
		Payment struct {
			Status string `json:"status"`
		} `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "confirmed", view.Status)
	assert.Equal(t, "completed", view.Payment.Status)
}

func TestServer_HealthEndpoints(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/readyz", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ReadinessReportsFailure(t *testing.T) {
	store := memory.NewStore()
	orders := memory.NewOrderRepository(store)
	products := memory.NewProductRepository(store)

	checks := health.NewRegistry()
	checks.Register("postgres", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	svc := checkout.NewService(checkout.Deps{
		Orders:   orders,
		Products: products,
		Carts:    memory.NewCartStore(store),
		Ledger:   stock.NewLedger(products, orders, nil),
		Gateway:  gateway.NewMockAuthorizer(),
		Outbox:   memory.NewOutboxRepository(),
	})
	server := transport.NewServer(svc, checks, nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
