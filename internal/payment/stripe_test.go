package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"

	"github.com/partstore/storefront/internal/domain/checkout"
	"github.com/partstore/storefront/internal/domain/external"
)

func newTestGateway(t *testing.T, h http.HandlerFunc) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	b := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		MaxNetworkRetries: stripe.Int64(0),
	})
	return NewStripeGatewayWithBackend("sk_test_123", b)
}

func TestCreateSession_EncodesParams(t *testing.T) {
	var form map[string]string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = make(map[string]string)
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.test/cs_test_1"}`))
	})

	s, err := gw.CreateSession(context.Background(), checkout.SessionParams{
		Currency: "ron",
		Lines: []checkout.SessionLine{
			{Name: "Brake Pads", Image: "https://cdn.test/pads.png", UnitAmount: 1000, Quantity: 2},
		},
		DiscountID:        "disc_10",
		SuccessURL:        "https://shop.test/purchase-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         "https://shop.test/purchase-cancel",
		ClientReferenceID: "u1",
		Metadata:          map[string]string{"userId": "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", s.ID)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", s.URL)

	assert.Equal(t, "payment", form["mode"])
	assert.Equal(t, "card", form["payment_method_types[0]"])
	assert.Equal(t, "ron", form["line_items[0][price_data][currency]"])
	assert.Equal(t, "1000", form["line_items[0][price_data][unit_amount]"])
	assert.Equal(t, "Brake Pads", form["line_items[0][price_data][product_data][name]"])
	assert.Equal(t, "https://cdn.test/pads.png", form["line_items[0][price_data][product_data][images][0]"])
	assert.Equal(t, "2", form["line_items[0][quantity]"])
	assert.Equal(t, "disc_10", form["discounts[0][coupon]"])
	assert.Equal(t, "u1", form["metadata[userId]"])
	assert.Equal(t, "u1", form["client_reference_id"])
}

func TestRetrieveSession_MapsPaymentStatus(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions/cs_paid", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cs_paid",
			"object": "checkout.session",
			"payment_status": "paid",
			"amount_total": 9000,
			"customer_details": {"email": "buyer@example.test"},
			"metadata": {"userId": "u1"}
		}`))
	})

	s, err := gw.RetrieveSession(context.Background(), "cs_paid")
	require.NoError(t, err)
	assert.True(t, s.Paid)
	assert.Equal(t, int64(9000), s.AmountTotal)
	assert.Equal(t, "buyer@example.test", s.CustomerEmail)
	assert.Equal(t, "u1", s.Metadata["userId"])
}

func TestCreateDiscount(t *testing.T) {
	var form map[string]string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/coupons", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"percent_off": r.PostForm.Get("percent_off"),
			"duration":    r.PostForm.Get("duration"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"disc_10","object":"coupon"}`))
	})

	id, err := gw.CreateDiscount(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "disc_10", id)
	assert.Equal(t, "10.0000", form["percent_off"])
	assert.Equal(t, "once", form["duration"])
}

func TestGatewayErrorsAreExternal(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout.session"}}`))
	})

	_, err := gw.RetrieveSession(context.Background(), "cs_missing")
	require.Error(t, err)

	var extErr *external.Error
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "stripe", extErr.Service)
	assert.Equal(t, "retrieve session", extErr.Op)
}
