package order

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order.
type Status string

// Order statuses. Cancelled is terminal.
const (
	StatusPending   Status = "Pending"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// Payment methods recorded on orders.
const (
	PaymentMethodCard = "card"
)

// Order is a persisted purchase owned by a user.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	TotalPrice      decimal.Decimal
	ShippingAddress Address
	Status          Status
	PaymentMethod   string
	PaymentResult   *PaymentResult
	IsPaid          bool
	PaidAt          *time.Time
	IsDelivered     bool
	DeliveredAt     *time.Time
	StripeSessionID string
	CouponCode      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item is a single line of an order. Price is the unit price at the time of
// purchase.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Address is the delivery destination of an order.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Complete reports whether every required address field is set.
func (a Address) Complete() bool {
	for _, v := range []string{a.Street, a.City, a.PostalCode, a.Country} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// IsZero reports whether no address field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// PaymentResult is the gateway confirmation attached to a paid order.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create decrements stock for every item and inserts the order in a
	// single transaction. It returns *ProductNotFoundError or
	// *InsufficientStockError without changing anything when an item cannot
	// be fulfilled, and ErrDuplicateSession when an order for the same
	// gateway session already exists.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context) ([]Order, error)
	// Update loads the order under a row lock, applies fn and stores the
	// result in the same transaction.
	Update(ctx context.Context, id string, fn func(o *Order) error) (*Order, error)
}
