package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partstore/storefront/internal/domain/order"
)

func TestCreateOrder(t *testing.T) {
	var got order.CreateRequest
	orders := &mockOrders{
		createFn: func(_ context.Context, req order.CreateRequest) (*order.Order, error) {
			got = req
			return &order.Order{
				ID:         "o1",
				UserID:     req.UserID,
				Items:      []order.Item{{ProductID: "p1", Name: "Brake pad", Quantity: 2, Price: price("10.00")}},
				TotalPrice: price("20.00"),
				Status:     order.StatusPending,
			}, nil
		},
	}
	srv := newServer(t, &deps{orders: orders})

	w := do(t, srv, http.MethodPost, "/api/orders", token(t, "user-1", ""), map[string]any{
		"orderItems": []map[string]any{{"product": "p1", "quantity": 2}},
		"shippingAddress": map[string]any{
			"street": "1 Main St", "city": "Cluj", "postalCode": "400000", "country": "RO",
		},
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, order.SourceDirect, got.Source)
	assert.Equal(t, order.PaymentMethodCard, got.PaymentMethod)
	assert.Nil(t, got.TotalPrice)
	assert.Equal(t, []order.ItemRequest{{ProductID: "p1", Quantity: 2}}, got.Items)
	assert.Equal(t, "400000", got.ShippingAddress.PostalCode)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "o1", resp.ID)
	assert.Equal(t, 20.0, resp.TotalPrice)
	assert.Equal(t, "Pending", resp.Status)
	require.Len(t, resp.OrderItems, 1)
	assert.Equal(t, "p1", resp.OrderItems[0].Product)
}

func TestCreateOrderErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"empty", order.ErrEmptyOrder, http.StatusBadRequest},
		{"bad address", order.ErrInvalidAddress, http.StatusBadRequest},
		{"missing product", &order.ProductNotFoundError{ProductID: "p9"}, http.StatusNotFound},
		{"insufficient stock", &order.InsufficientStockError{ProductID: "p1", Requested: 3, Available: 2}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &mockOrders{
				createFn: func(context.Context, order.CreateRequest) (*order.Order, error) { return nil, tt.err },
			}
			srv := newServer(t, &deps{orders: orders})

			w := do(t, srv, http.MethodPost, "/api/orders", token(t, "user-1", ""), map[string]any{
				"orderItems": []map[string]any{{"product": "p1", "quantity": 3}},
			})
			assert.Equal(t, tt.status, w.Code)
			e := decodeError(t, w)
			assert.Equal(t, tt.status, e.Code)
			assert.Equal(t, tt.err.Error(), e.Message)
		})
	}
}

func TestCreateOrderMalformedBody(t *testing.T) {
	srv := newServer(t, &deps{})
	w := do(t, srv, http.MethodPost, "/api/orders", token(t, "user-1", ""), map[string]any{
		"orderItems": "not-a-list",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrderPassesRequester(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		admin  bool
		err    error
		status int
	}{
		{"owner", "", false, nil, http.StatusOK},
		{"admin", RoleAdmin, true, nil, http.StatusOK},
		{"stranger", "", false, order.ErrForbidden, http.StatusForbidden},
		{"missing", "", false, order.ErrOrderNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var who order.Requester
			orders := &mockOrders{
				getFn: func(_ context.Context, id string, r order.Requester) (*order.Order, error) {
					who = r
					if tt.err != nil {
						return nil, tt.err
					}
					return &order.Order{ID: id, UserID: "user-1"}, nil
				},
			}
			srv := newServer(t, &deps{orders: orders})

			w := do(t, srv, http.MethodGet, "/api/orders/o1", token(t, "user-1", tt.role), nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, order.Requester{UserID: "user-1", Admin: tt.admin}, who)
		})
	}
}

func TestMyOrdersIsNotCapturedByID(t *testing.T) {
	orders := &mockOrders{
		listMineFn: func(_ context.Context, userID string) ([]order.Order, error) {
			return []order.Order{{ID: "o1", UserID: userID}, {ID: "o2", UserID: userID}}, nil
		},
	}
	srv := newServer(t, &deps{orders: orders})

	w := do(t, srv, http.MethodGet, "/api/orders/myorders", token(t, "user-1", ""), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Orders []orderResponse `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 2)
	assert.Equal(t, "user-1", resp.Orders[1].User)
}

func TestPayOrder(t *testing.T) {
	paidAt := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	var got order.PaymentResult
	orders := &mockOrders{
		markPaidFn: func(_ context.Context, id string, _ order.Requester, result order.PaymentResult) (*order.Order, error) {
			got = result
			return &order.Order{ID: id, IsPaid: true, PaidAt: &paidAt, PaymentResult: &result}, nil
		},
	}
	srv := newServer(t, &deps{orders: orders})

	w := do(t, srv, http.MethodPut, "/api/orders/o1/pay", token(t, "user-1", ""), map[string]any{
		"id": "pay_1", "status": "COMPLETED", "updateTime": "2025-05-01T10:00:00Z", "emailAddress": "a@b.test",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, order.PaymentResult{
		ID: "pay_1", Status: "COMPLETED", UpdateTime: "2025-05-01T10:00:00Z", EmailAddress: "a@b.test",
	}, got)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.IsPaid)
	require.NotNil(t, resp.PaymentResult)
	assert.Equal(t, "a@b.test", resp.PaymentResult.EmailAddress)
}

func TestDeliverOrderRequiresAdmin(t *testing.T) {
	orders := &mockOrders{
		deliverFn: func(_ context.Context, id string) (*order.Order, error) {
			if id == "cancelled" {
				return nil, order.ErrInvalidTransition
			}
			return &order.Order{ID: id, IsDelivered: true, Status: order.StatusDelivered}, nil
		},
	}
	srv := newServer(t, &deps{orders: orders})

	w := do(t, srv, http.MethodPut, "/api/orders/o1/deliver", token(t, "user-1", ""), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, srv, http.MethodPut, "/api/orders/o1/deliver", token(t, "admin-1", RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPut, "/api/orders/cancelled/deliver", token(t, "admin-1", RoleAdmin), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}
