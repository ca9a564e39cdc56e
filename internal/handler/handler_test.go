package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partstore/storefront/internal/domain/category"
	"github.com/partstore/storefront/internal/domain/checkout"
	"github.com/partstore/storefront/internal/domain/coupon"
	"github.com/partstore/storefront/internal/domain/external"
	"github.com/partstore/storefront/internal/domain/order"
	"github.com/partstore/storefront/internal/domain/product"
	"github.com/partstore/storefront/pkg/httpmiddleware"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

type deps struct {
	categories *mockCategories
	products   *mockProducts
	orders     *mockOrders
	checkout   *mockCheckout
	coupons    *mockCoupons
	limiter    *httpmiddleware.Limiter
}

func newServer(t *testing.T, d *deps) http.Handler {
	t.Helper()
	if d.categories == nil {
		d.categories = &mockCategories{}
	}
	if d.products == nil {
		d.products = &mockProducts{}
	}
	if d.orders == nil {
		d.orders = &mockOrders{}
	}
	if d.checkout == nil {
		d.checkout = &mockCheckout{}
	}
	if d.coupons == nil {
		d.coupons = &mockCoupons{}
	}
	h := NewHandler(d.categories, d.products, d.orders, d.checkout, d.coupons, NewAuthenticator(testSecret))
	return h.Engine(EngineConfig{Limiter: d.limiter})
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, srv http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"empty order", order.ErrEmptyOrder, http.StatusBadRequest},
		{"invalid quantity", &order.InvalidQuantityError{ProductID: "p1"}, http.StatusBadRequest},
		{"invalid cart item", &checkout.InvalidItemError{Index: 0, Reason: "name is required"}, http.StatusBadRequest},
		{"expired coupon", coupon.ErrCouponExpired, http.StatusBadRequest},
		{"unpaid session", checkout.ErrPaymentNotCompleted, http.StatusPaymentRequired},
		{"foreign order", order.ErrForbidden, http.StatusForbidden},
		{"missing order", order.ErrOrderNotFound, http.StatusNotFound},
		{"missing product line", &order.ProductNotFoundError{ProductID: "p1"}, http.StatusNotFound},
		{"missing subcategory", category.ErrSubcategoryNotFound, http.StatusNotFound},
		{"duplicate category", category.ErrCategoryExists, http.StatusConflict},
		{"category in use", errors.Wrap(category.ErrCategoryInUse, "delete"), http.StatusConflict},
		{"insufficient stock", &order.InsufficientStockError{ProductID: "p1", Requested: 3, Available: 2}, http.StatusConflict},
		{"gateway down", external.Wrap("stripe", "create session", errors.New("timeout")), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := mapError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, msg)
		})
	}

	_, msg := mapError(errors.New("pq: password authentication failed"))
	assert.Equal(t, "internal server error", msg, "internal details must not leak")
}

func TestAuth(t *testing.T) {
	products := &mockProducts{
		listFn: func(context.Context) ([]product.Product, error) { return nil, nil },
	}
	srv := newServer(t, &deps{products: products})

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		bearer string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"alg none", unsigned, http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
		{"wrong secret", mustSign(t, []byte("other"), "u1", RoleAdmin), http.StatusUnauthorized},
		{"customer", token(t, "u1", "customer"), http.StatusForbidden},
		{"admin", token(t, "u1", RoleAdmin), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodGet, "/api/products", tt.bearer, nil)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func mustSign(t *testing.T, secret []byte, sub, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
	}).SignedString(secret)
	require.NoError(t, err)
	return s
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newServer(t, &deps{categories: &mockCategories{
		listFn: func(context.Context) ([]category.Category, error) { return nil, nil },
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.Header.Set(httpmiddleware.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(httpmiddleware.RequestIDHeader))
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	srv := newServer(t, &deps{})
	w := do(t, srv, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, decodeError(t, w).Code)
}

func TestPanicRecovered(t *testing.T) {
	srv := newServer(t, &deps{products: &mockProducts{
		featuredFn: func(context.Context) ([]product.Product, error) { panic("boom") },
	}})

	w := do(t, srv, http.MethodGet, "/api/products/featured", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decodeError(t, w).Message)
}

func TestCORS(t *testing.T) {
	h := NewHandler(&mockCategories{
		listFn: func(context.Context) ([]category.Category, error) { return nil, nil },
	}, &mockProducts{}, &mockOrders{}, &mockCheckout{}, &mockCoupons{}, NewAuthenticator(testSecret))
	srv := h.Engine(EngineConfig{CORSOrigins: []string{"https://shop.test"}, AllowCredentials: true})

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"preflight", http.MethodOptions, "https://shop.test", http.StatusNoContent, "https://shop.test"},
		{"simple", http.MethodGet, "https://shop.test", http.StatusOK, "https://shop.test"},
		{"foreign origin", http.MethodGet, "https://evil.test", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/categories", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.method == http.MethodOptions {
				assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

// --- Mock implementations ---

type mockCategories struct {
	CategoryService
	listFn      func(ctx context.Context) ([]category.Category, error)
	getFn       func(ctx context.Context, slug string) (*category.Category, error)
	createFn    func(ctx context.Context, req category.CreateRequest) (*category.Category, error)
	deleteFn    func(ctx context.Context, id string) error
	addSubFn    func(ctx context.Context, catID string, req category.SubcategoryRequest) (*category.Subcategory, error)
	updateSubFn func(ctx context.Context, catID, subID string, req category.SubcategoryUpdate) (*category.Subcategory, error)
}

func (m *mockCategories) List(ctx context.Context) ([]category.Category, error) {
	return m.listFn(ctx)
}

func (m *mockCategories) GetBySlug(ctx context.Context, slug string) (*category.Category, error) {
	return m.getFn(ctx, slug)
}

func (m *mockCategories) Create(ctx context.Context, req category.CreateRequest) (*category.Category, error) {
	return m.createFn(ctx, req)
}

func (m *mockCategories) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockCategories) AddSubcategory(ctx context.Context, catID string, req category.SubcategoryRequest) (*category.Subcategory, error) {
	return m.addSubFn(ctx, catID, req)
}

func (m *mockCategories) UpdateSubcategory(ctx context.Context, catID, subID string, req category.SubcategoryUpdate) (*category.Subcategory, error) {
	return m.updateSubFn(ctx, catID, subID, req)
}

type mockProducts struct {
	ProductService
	listFn     func(ctx context.Context) ([]product.Product, error)
	getFn      func(ctx context.Context, id string) (*product.Product, error)
	featuredFn func(ctx context.Context) ([]product.Product, error)
	bySubFn    func(ctx context.Context, cat, sub string) ([]product.Product, error)
	createFn   func(ctx context.Context, req product.CreateRequest) (*product.Product, error)
}

func (m *mockProducts) List(ctx context.Context) ([]product.Product, error) {
	return m.listFn(ctx)
}

func (m *mockProducts) Get(ctx context.Context, id string) (*product.Product, error) {
	return m.getFn(ctx, id)
}

func (m *mockProducts) ListFeatured(ctx context.Context) ([]product.Product, error) {
	return m.featuredFn(ctx)
}

func (m *mockProducts) ListBySubcategory(ctx context.Context, cat, sub string) ([]product.Product, error) {
	return m.bySubFn(ctx, cat, sub)
}

func (m *mockProducts) Create(ctx context.Context, req product.CreateRequest) (*product.Product, error) {
	return m.createFn(ctx, req)
}

type mockOrders struct {
	OrderService
	createFn   func(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	listMineFn func(ctx context.Context, userID string) ([]order.Order, error)
	getFn      func(ctx context.Context, id string, who order.Requester) (*order.Order, error)
	markPaidFn func(ctx context.Context, id string, who order.Requester, result order.PaymentResult) (*order.Order, error)
	deliverFn  func(ctx context.Context, id string) (*order.Order, error)
}

func (m *mockOrders) Create(ctx context.Context, req order.CreateRequest) (*order.Order, error) {
	return m.createFn(ctx, req)
}

func (m *mockOrders) ListMine(ctx context.Context, userID string) ([]order.Order, error) {
	return m.listMineFn(ctx, userID)
}

func (m *mockOrders) Get(ctx context.Context, id string, who order.Requester) (*order.Order, error) {
	return m.getFn(ctx, id, who)
}

func (m *mockOrders) MarkPaid(ctx context.Context, id string, who order.Requester, result order.PaymentResult) (*order.Order, error) {
	return m.markPaidFn(ctx, id, who, result)
}

func (m *mockOrders) MarkDelivered(ctx context.Context, id string) (*order.Order, error) {
	return m.deliverFn(ctx, id)
}

type mockCheckout struct {
	createFn   func(ctx context.Context, req checkout.Request) (*checkout.Result, error)
	completeFn func(ctx context.Context, sessionID string, who order.Requester) (*order.Order, error)
}

func (m *mockCheckout) CreateSession(ctx context.Context, req checkout.Request) (*checkout.Result, error) {
	return m.createFn(ctx, req)
}

func (m *mockCheckout) Complete(ctx context.Context, sessionID string, who order.Requester) (*order.Order, error) {
	return m.completeFn(ctx, sessionID, who)
}

type mockCoupons struct {
	activeFn func(ctx context.Context, userID string) (*coupon.Coupon, error)
	redeemFn func(ctx context.Context, code, userID string) (*coupon.Coupon, error)
}

func (m *mockCoupons) Active(ctx context.Context, userID string) (*coupon.Coupon, error) {
	return m.activeFn(ctx, userID)
}

func (m *mockCoupons) Redeem(ctx context.Context, code, userID string) (*coupon.Coupon, error) {
	return m.redeemFn(ctx, code, userID)
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }
