package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/invoice"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
)

type fakeCart struct {
	added   []int
	addErr  error
	cleared string
}

func (f *fakeCart) Get(_ context.Context, userID string) (cart.View, error) {
	return cart.View{UserID: userID, Total: decimal.Zero}, nil
}

func (f *fakeCart) Add(_ context.Context, _, productID string, qty int) (cart.Line, error) {
	if f.addErr != nil {
		return cart.Line{}, f.addErr
	}
	f.added = append(f.added, qty)
	return cart.Line{ID: "line-1", ProductID: productID, Quantity: qty}, nil
}

func (f *fakeCart) Update(_ context.Context, _, lineID string, qty int) (cart.Line, error) {
	return cart.Line{ID: lineID, Quantity: qty}, nil
}

func (f *fakeCart) Remove(_ context.Context, _, lineID string) error {
	if lineID == "missing" {
		return apperr.NotFound("cart item %s not found", lineID)
	}
	return nil
}

func (f *fakeCart) Clear(_ context.Context, userID string) error {
	f.cleared = userID
	return nil
}

type fakeOrders struct {
	checkoutErr error
	target      orders.Status
}

func (f *fakeOrders) Checkout(_ context.Context, userID string) (orders.Order, error) {
	if f.checkoutErr != nil {
		return orders.Order{}, f.checkoutErr
	}
	return orders.Order{ID: "o-1", UserID: userID, Status: orders.StatusPending, Total: decimal.NewFromInt(25)}, nil
}

func (f *fakeOrders) Get(_ context.Context, userID, orderID string) (orders.Order, error) {
	if userID != "u-1" {
		return orders.Order{}, apperr.Forbidden("order %s belongs to another user", orderID)
	}
	return orders.Order{ID: orderID, UserID: userID}, nil
}

func (f *fakeOrders) List(context.Context, string) ([]orders.Order, error) { return nil, nil }

func (f *fakeOrders) ListAll(context.Context) ([]orders.Order, error) {
	return []orders.Order{{ID: "o-1"}, {ID: "o-2"}}, nil
}

func (f *fakeOrders) Status(_ context.Context, _, orderID string) (orders.StatusSnapshot, error) {
	return orders.StatusSnapshot{OrderID: orderID, Status: orders.StatusProcessing, UpdatedAt: time.Unix(0, 0)}, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, orderID string, target orders.Status) (orders.StatusChange, error) {
	f.target = target
	if target == orders.StatusPending {
		return orders.StatusChange{}, apperr.InvalidTransition("PROCESSING", "PENDING")
	}
	return orders.StatusChange{OrderID: orderID, From: orders.StatusPending, To: target}, nil
}

type fakePayments struct {
	got payment.Notification
	err error
}

func (f *fakePayments) Process(_ context.Context, n payment.Notification) (payment.Result, error) {
	f.got = n
	if f.err != nil {
		return payment.Result{}, f.err
	}
	return payment.Result{Order: payment.OrderSummary{ID: n.OrderID, Status: orders.StatusProcessing}}, nil
}

type fakeQueues struct{ retried string }

func (f *fakeQueues) Stats() (invoice.QueueStats, error) {
	return invoice.QueueStats{Queue: invoice.Queue, Pending: 2}, nil
}

func (f *fakeQueues) Dead(int) ([]invoice.DeadJob, error) { return nil, errors.New("redis down") }

func (f *fakeQueues) Retry(id string) error {
	if id == "job-404" {
		return apperr.NotFound("job %s not found", id)
	}
	f.retried = id
	return nil
}

type fakeCatalog struct {
	page, limit int
	created     catalog.Product
	patch       catalog.ProductPatch
	category    string
}

func (f *fakeCatalog) ListProducts(_ context.Context, page, limit int) (catalog.Page, error) {
	f.page, f.limit = page, limit
	return catalog.Page{Products: []catalog.Product{{ID: "p-1"}}, Total: 1, Page: 1, TotalPages: 1, Limit: 10}, nil
}

func (f *fakeCatalog) Product(_ context.Context, id string) (catalog.Product, error) {
	if id != "p-1" {
		return catalog.Product{}, apperr.NotFound("product %s not found", id)
	}
	return catalog.Product{ID: id, Name: "Pen", Price: decimal.RequireFromString("1.50")}, nil
}

func (f *fakeCatalog) ProductBySlug(_ context.Context, slug string) (catalog.Product, error) {
	return catalog.Product{ID: "p-1", Slug: slug}, nil
}

func (f *fakeCatalog) CreateProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	if p.Price.IsNegative() {
		return catalog.Product{}, apperr.Validation("price must not be negative")
	}
	p.ID = "p-new"
	f.created = p
	return p, nil
}

func (f *fakeCatalog) UpdateProduct(_ context.Context, id string, patch catalog.ProductPatch) (catalog.Product, error) {
	f.patch = patch
	return catalog.Product{ID: id}, nil
}

func (f *fakeCatalog) DeleteProduct(context.Context, string) error { return nil }

func (f *fakeCatalog) Categories(context.Context) ([]catalog.Category, error) {
	return []catalog.Category{{ID: "c-1", Name: "Books", Slug: "books"}}, nil
}

func (f *fakeCatalog) Category(_ context.Context, id string) (catalog.Category, error) {
	return catalog.Category{ID: id}, nil
}

func (f *fakeCatalog) CategoryBySlug(_ context.Context, slug string) (catalog.Category, error) {
	return catalog.Category{Slug: slug}, nil
}

func (f *fakeCatalog) CreateCategory(_ context.Context, name, slug string) (catalog.Category, error) {
	f.category = name
	return catalog.Category{ID: "c-new", Name: name, Slug: slug}, nil
}

func (f *fakeCatalog) UpdateCategory(_ context.Context, id string, _ catalog.CategoryPatch) (catalog.Category, error) {
	return catalog.Category{ID: id}, nil
}

func (f *fakeCatalog) DeleteCategory(_ context.Context, id string) error {
	if id == "c-used" {
		return apperr.Validation("cannot delete category that is being used by 1 products")
	}
	return nil
}

type fixture struct {
	router   http.Handler
	catalog  *fakeCatalog
	cart     *fakeCart
	orders   *fakeOrders
	payments *fakePayments
	queues   *fakeQueues
	metrics  *metrics.Metrics
}

func newFixture() *fixture {
	f := &fixture{
		catalog:  &fakeCatalog{},
		cart:     &fakeCart{},
		orders:   &fakeOrders{},
		payments: &fakePayments{},
		queues:   &fakeQueues{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	r := NewRouter(f.metrics, time.Second)
	Mount(r, Handlers{
		Catalog:  &CatalogHandler{Service: f.catalog},
		Cart:     &CartHandler{Service: f.cart},
		Orders:   &OrdersHandler{Service: f.orders},
		Payments: &PaymentsHandler{Service: f.payments},
		Queues:   &QueuesHandler{Inspector: f.queues},
	})
	f.router = r
	return f
}

func (f *fixture) do(method, path, body, user, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	if role != "" {
		req.Header.Set(HeaderUserRole, role)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/healthz", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRequireUser(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/api/cart", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Code)
}

func TestCatalogReadsArePublic(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/api/products?page=2&limit=5", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.catalog.page)
	assert.Equal(t, 5, f.catalog.limit)
	assert.Contains(t, rec.Body.String(), `"totalPages":1`)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/products?page=0", "", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/products?limit=x", "", "", "").Code)

	rec = f.do(http.MethodGet, "/api/products/p-1", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price":"1.5"`)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/products/p-9", "", "", "").Code)

	rec = f.do(http.MethodGet, "/api/products/slug/blue-pen", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slug":"blue-pen"`)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/categories", "", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/categories/c-1", "", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/categories/slug/books", "", "", "").Code)
}

func TestCatalogWritesRequireAdmin(t *testing.T) {
	f := newFixture()
	body := `{"name":"Pen","description":"blue ink","price":1.5,"stock":3,"categoryId":"c-1"}`

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/products", body, "", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/products", body, "u-1", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, "/api/categories/c-1", "", "u-1", "").Code)

	rec := f.do(http.MethodPost, "/api/products", body, "admin", RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Pen", f.catalog.created.Name)
	assert.True(t, decimal.RequireFromString("1.5").Equal(f.catalog.created.Price))
	assert.Equal(t, 3, f.catalog.created.Stock)
}

func TestCatalogWriteValidation(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/products", `{"name":"Pen","price":1,"stock":-1}`, "admin", RoleAdmin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"description"`)
	assert.Contains(t, rec.Body.String(), `"field":"stock"`)
	assert.Contains(t, rec.Body.String(), `"field":"categoryId"`)

	rec = f.do(http.MethodPost, "/api/products", `{"name":"Pen","description":"d","price":-1,"categoryId":"c-1"}`, "admin", RoleAdmin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Code)

	rec = f.do(http.MethodPut, "/api/products/p-1", `{"name":""}`, "admin", RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/api/products/p-1", `{"price":"12.50","stock":0}`, "admin", RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.catalog.patch.Price)
	require.NotNil(t, f.catalog.patch.Stock)
	assert.Equal(t, 0, *f.catalog.patch.Stock)
	assert.Nil(t, f.catalog.patch.Name)

	rec = f.do(http.MethodPost, "/api/categories", `{"name":"Books"}`, "admin", RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Books", f.catalog.category)

	rec = f.do(http.MethodDelete, "/api/categories/c-used", "", "admin", RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddToCartDefaultsQuantity(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/cart", `{"productId":"p-1"}`, "u-1", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []int{1}, f.cart.added)

	rec = f.do(http.MethodPost, "/api/cart", `{"productId":"p-1","quantity":3}`, "u-1", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []int{1, 3}, f.cart.added)
}

func TestAddToCartValidation(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/cart", `{"quantity":0}`, "u-1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "validation_error", body.Code)
	assert.Contains(t, rec.Body.String(), `"field":"productId"`)
	assert.Contains(t, rec.Body.String(), `"field":"quantity"`)

	rec = f.do(http.MethodPost, "/api/cart", `{"productId":"p-1","extra":true}`, "u-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/cart", `not json`, "u-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.cart.added)
}

func TestAddToCartInsufficientStock(t *testing.T) {
	f := newFixture()
	f.cart.addErr = apperr.InsufficientStock(apperr.Shortage{ProductID: "p-1", Required: 5, Available: 2})

	rec := f.do(http.MethodPost, "/api/cart", `{"productId":"p-1","quantity":5}`, "u-1", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_stock", decodeError(t, rec).Code)
	assert.Contains(t, rec.Body.String(), `"available":2`)
}

func TestCartRemoveAndClear(t *testing.T) {
	f := newFixture()
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/cart/line-1", "", "u-1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/cart/missing", "", "u-1", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/cart", "", "u-1", "").Code)
	assert.Equal(t, "u-1", f.cart.cleared)
}

func TestCheckoutErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"created", nil, http.StatusCreated, ""},
		{"empty cart", apperr.EmptyCart(), http.StatusBadRequest, "empty_cart"},
		{"short", apperr.InsufficientStock(apperr.Shortage{ProductID: "p"}), http.StatusConflict, "insufficient_stock"},
		{"internal", apperr.Internal("checkout", errors.New("conn reset")), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.orders.checkoutErr = tt.err
			rec := f.do(http.MethodPost, "/api/orders/checkout", "", "u-1", "")
			require.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				body := decodeError(t, rec)
				assert.Equal(t, tt.code, body.Code)
				assert.NotContains(t, body.Error, "conn reset")
			}
		})
	}
}

func TestGetOrderForbidden(t *testing.T) {
	f := newFixture()
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/orders/o-1", "", "u-1", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/orders/o-1", "", "u-2", "").Code)
}

func TestOrderStatus(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/api/orders/o-1/status", "", "u-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, orders.StatusProcessing, out.Status)
	assert.Equal(t, "o-1", out.OrderID)
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture()

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/orders/admin/all", "", "", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/orders/admin/all", "", "u-1", "").Code)

	rec := f.do(http.MethodGet, "/api/orders/admin/all", "", "admin", "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []orders.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestAdminUpdateStatus(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPut, "/api/orders/o-1/status", `{"status":"COMPLETED"}`, "u-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPut, "/api/orders/o-1/status", `{"status":"SHIPPED"}`, "admin", RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/api/orders/o-1/status", `{"status":"PROCESSING"}`, "admin", RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusProcessing, f.orders.target)

	rec = f.do(http.MethodPut, "/api/orders/o-1/status", `{"status":"PENDING"}`, "admin", RoleAdmin)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decodeError(t, rec).Code)
}

func TestSimulatePayment(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/payments/simulate-payment",
		`{"orderId":"o-1","status":"success","amount":25.00,"transactionId":"tx-1","paymentMethod":"card"}`, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payment.OutcomeSuccess, f.payments.got.Outcome)
	assert.True(t, decimal.NewFromInt(25).Equal(f.payments.got.Amount))
	assert.Equal(t, "tx-1", f.payments.got.TransactionID)

	rec = f.do(http.MethodPost, "/api/payments/simulate-payment", `{"orderId":"o-1","status":"refunded","amount":1}`, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/payments/simulate-payment", `{"status":"success","amount":1}`, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.payments.err = apperr.NotFound("order %s not found", "o-9")
	rec = f.do(http.MethodPost, "/api/payments/simulate-payment", `{"orderId":"o-9","amount":1}`, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueueRoutes(t *testing.T) {
	f := newFixture()

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/admin/queues", "", "u-1", "").Code)

	rec := f.do(http.MethodGet, "/admin/queues", "", "admin", RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending":2`)

	rec = f.do(http.MethodGet, "/admin/queues/dead", "", "admin", RoleAdmin)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.do(http.MethodPost, "/admin/queues/dead/job-7/retry", "", "admin", RoleAdmin)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "job-7", f.queues.retried)

	rec = f.do(http.MethodPost, "/admin/queues/dead/job-404/retry", "", "admin", RoleAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Code)
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	f := newFixture()
	f.do(http.MethodGet, "/api/orders/o-1", "", "u-1", "")
	f.do(http.MethodGet, "/api/orders/o-2", "", "u-1", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("/api/orders/{id}", "200")))
}
