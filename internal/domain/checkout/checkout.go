package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/partstore/storefront/internal/domain/coupon"
	"github.com/partstore/storefront/internal/domain/order"
)

// Sentinel errors for checkout.
var (
	ErrEmptyCart           = errors.New("cart has no products")
	ErrSessionRequired     = errors.New("session id required")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrInvalidMetadata     = errors.New("checkout session metadata is malformed")
)

// InvalidItemError reports a malformed cart line.
type InvalidItemError struct {
	Index  int
	Reason string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("product %d: %s", e.Index, e.Reason)
}

// LineItem is a cart line as submitted by the client.
type LineItem struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Quantity int
	Image    string
}

// Request holds the input for CreateSession.
type Request struct {
	UserID          string
	Products        []LineItem
	CouponCode      string
	ShippingAddress *order.Address
}

// Reason explains why a requested discount was not applied.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonCouponNotFound     Reason = "coupon_not_found"
	ReasonCouponExpired      Reason = "coupon_expired"
	ReasonGatewayUnavailable Reason = "gateway_unavailable"
)

// DiscountOutcome describes what happened to the coupon on a checkout.
type DiscountOutcome struct {
	Applied bool
	Percent int
	Reason  Reason
}

// Result is returned by CreateSession. Amounts are in minor units.
type Result struct {
	SessionID    string
	URL          string
	Subtotal     int64
	TotalAmount  int64
	Discount     DiscountOutcome
	RewardCoupon *coupon.Coupon
}

// SessionLine is a priced line sent to the payment gateway.
type SessionLine struct {
	Name       string
	Image      string
	UnitAmount int64
	Quantity   int64
}

// SessionParams describes a hosted payment session to create.
type SessionParams struct {
	Currency          string
	Lines             []SessionLine
	DiscountID        string
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
}

// Session is the gateway view of a payment session.
type Session struct {
	ID            string
	URL           string
	Paid          bool
	AmountTotal   int64
	CustomerEmail string
	Metadata      map[string]string
}

// Gateway is the hosted payment provider.
type Gateway interface {
	CreateSession(ctx context.Context, p SessionParams) (*Session, error)
	RetrieveSession(ctx context.Context, id string) (*Session, error)
	// CreateDiscount registers a one-time percentage discount and returns
	// its gateway id.
	CreateDiscount(ctx context.Context, percent int) (string, error)
}

// Coupons is the subset of the coupon issuer used by checkout.
type Coupons interface {
	Redeem(ctx context.Context, code, userID string) (*coupon.Coupon, error)
	IssueReward(ctx context.Context, userID string) (*coupon.Coupon, error)
	Deactivate(ctx context.Context, code, userID string) error
}

// Orders creates orders from completed sessions.
type Orders interface {
	CheckStock(ctx context.Context, items []order.ItemRequest) error
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	GetBySession(ctx context.Context, sessionID string) (*order.Order, error)
}
