package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partstore/storefront/internal/domain/checkout"
	"github.com/partstore/storefront/internal/domain/coupon"
	"github.com/partstore/storefront/internal/domain/external"
	"github.com/partstore/storefront/internal/domain/order"
	"github.com/partstore/storefront/pkg/httpmiddleware"
)

func TestCreateCheckoutSession(t *testing.T) {
	var got checkout.Request
	co := &mockCheckout{
		createFn: func(_ context.Context, req checkout.Request) (*checkout.Result, error) {
			got = req
			return &checkout.Result{
				SessionID:   "cs_1",
				URL:         "https://pay.test/cs_1",
				Subtotal:    25000,
				TotalAmount: 22500,
				Discount:    checkout.DiscountOutcome{Applied: true, Percent: 10},
				RewardCoupon: &coupon.Coupon{
					Code:               "GIFTABC123",
					DiscountPercentage: 10,
					ExpirationDate:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
					IsActive:           true,
				},
			}, nil
		},
	}
	srv := newServer(t, &deps{checkout: co})

	w := do(t, srv, http.MethodPost, "/api/payments/create-checkout-session", token(t, "user-1", ""), map[string]any{
		"products": []map[string]any{
			{"_id": "p1", "name": "Rotor", "price": 125.00, "quantity": 2, "image": "https://cdn.test/r.png"},
		},
		"couponCode": "GIFTOLD000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "GIFTOLD000", got.CouponCode)
	assert.Nil(t, got.ShippingAddress)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "p1", got.Products[0].ID, "legacy _id is accepted")
	assert.True(t, price("125").Equal(got.Products[0].Price))

	assert.JSONEq(t, `{
		"id": "cs_1",
		"url": "https://pay.test/cs_1",
		"subtotal": 25000,
		"totalAmount": 22500,
		"discount": {"applied": true, "percent": 10},
		"rewardCoupon": {
			"code": "GIFTABC123",
			"discountPercentage": 10,
			"expirationDate": "2025-06-01T00:00:00Z",
			"isActive": true
		}
	}`, w.Body.String())
}

func TestCreateCheckoutSessionDegradedDiscount(t *testing.T) {
	co := &mockCheckout{
		createFn: func(context.Context, checkout.Request) (*checkout.Result, error) {
			return &checkout.Result{
				SessionID:   "cs_2",
				Subtotal:    10000,
				TotalAmount: 10000,
				Discount:    checkout.DiscountOutcome{Reason: checkout.ReasonGatewayUnavailable},
			}, nil
		},
	}
	srv := newServer(t, &deps{checkout: co})

	w := do(t, srv, http.MethodPost, "/api/payments/create-checkout-session", token(t, "user-1", ""), map[string]any{
		"products":   []map[string]any{{"id": "p1", "name": "Pad", "price": 100, "quantity": 1, "image": "x"}},
		"couponCode": "GIFTABC123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"discount":{"applied":false,"reason":"gateway_unavailable"}`)
}

func TestCreateCheckoutSessionErrors(t *testing.T) {
	tests := []struct {
		name     string
		products []map[string]any
		err      error
		status   int
	}{
		{
			name:     "missing price",
			products: []map[string]any{{"id": "p1", "name": "Pad", "quantity": 1, "image": "x"}},
			status:   http.StatusBadRequest,
		},
		{
			name:     "invalid item",
			products: []map[string]any{{"id": "p1", "name": "", "price": 1, "quantity": 1, "image": "x"}},
			err:      &checkout.InvalidItemError{Index: 0, Reason: "name is required"},
			status:   http.StatusBadRequest,
		},
		{
			name:   "empty cart",
			err:    checkout.ErrEmptyCart,
			status: http.StatusBadRequest,
		},
		{
			name:     "gateway failure",
			products: []map[string]any{{"id": "p1", "name": "Pad", "price": 1, "quantity": 1, "image": "x"}},
			err:      external.Wrap("stripe", "create session", errors.New("connection refused")),
			status:   http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			co := &mockCheckout{
				createFn: func(context.Context, checkout.Request) (*checkout.Result, error) {
					called = true
					return nil, tt.err
				},
			}
			srv := newServer(t, &deps{checkout: co})

			w := do(t, srv, http.MethodPost, "/api/payments/create-checkout-session", token(t, "user-1", ""),
				map[string]any{"products": tt.products})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.err != nil, called)
		})
	}
}

func TestCheckoutSuccess(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"paid", nil, http.StatusOK},
		{"unpaid", checkout.ErrPaymentNotCompleted, http.StatusPaymentRequired},
		{"no session", checkout.ErrSessionRequired, http.StatusBadRequest},
		{"out of stock", &order.InsufficientStockError{ProductID: "p1", Requested: 1}, http.StatusConflict},
		{"foreign session", order.ErrForbidden, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				gotSession string
				gotWho     order.Requester
			)
			co := &mockCheckout{
				completeFn: func(_ context.Context, sessionID string, who order.Requester) (*order.Order, error) {
					gotSession = sessionID
					gotWho = who
					if tt.err != nil {
						return nil, tt.err
					}
					return &order.Order{ID: "o1"}, nil
				},
			}
			srv := newServer(t, &deps{checkout: co})

			w := do(t, srv, http.MethodPost, "/api/payments/checkout-success", token(t, "user-1", ""),
				map[string]any{"sessionId": "cs_1"})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "cs_1", gotSession)
			assert.Equal(t, order.Requester{UserID: "user-1"}, gotWho)
			if tt.err == nil {
				assert.JSONEq(t, `{"success":true,"message":"Payment successful, order created.","orderId":"o1"}`, w.Body.String())
			}
		})
	}
}

func TestCheckoutRateLimited(t *testing.T) {
	co := &mockCheckout{
		createFn: func(context.Context, checkout.Request) (*checkout.Result, error) {
			return &checkout.Result{SessionID: "cs"}, nil
		},
	}
	srv := newServer(t, &deps{checkout: co, limiter: httpmiddleware.NewLimiter(1, time.Minute)})
	body := map[string]any{
		"products": []map[string]any{{"id": "p1", "name": "Pad", "price": 1, "quantity": 1, "image": "x"}},
	}

	w := do(t, srv, http.MethodPost, "/api/payments/create-checkout-session", token(t, "user-1", ""), body)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPost, "/api/payments/create-checkout-session", token(t, "user-1", ""), body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Budgets are per user.
	w = do(t, srv, http.MethodPost, "/api/payments/create-checkout-session", token(t, "user-2", ""), body)
	assert.Equal(t, http.StatusOK, w.Code)
}
