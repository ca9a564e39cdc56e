// Package order owns order placement and the order lifecycle. Every order,
// whether placed directly or confirmed by the payment gateway, is created
// through Service.Create so stock is checked and decremented exactly once.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partstore/storefront/internal/domain/product"
)

// Sentinel errors for order placement and lifecycle.
var (
	ErrEmptyOrder        = errors.New("order items required")
	ErrInvalidAddress    = errors.New("shipping address requires street, city, postal code and country")
	ErrInvalidTotal      = errors.New("total price must not be negative")
	ErrOrderNotFound     = errors.New("order not found")
	ErrForbidden         = errors.New("order belongs to another user")
	ErrInvalidTransition = errors.New("order status does not allow this change")
	ErrDuplicateSession  = errors.New("order for this checkout session already exists")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InsufficientStockError indicates a product cannot cover the requested
// quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Source tells where an order creation request comes from.
type Source string

const (
	// SourceDirect is an order placed through the orders API.
	SourceDirect Source = "direct"
	// SourceCheckout is an order created from a paid gateway session.
	SourceCheckout Source = "checkout"
)

// ItemRequest is a requested order line. Price, when set, is the unit price
// captured at checkout and takes precedence over the current catalog price.
type ItemRequest struct {
	ProductID string
	Quantity  int
	Price     *decimal.Decimal
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	UserID          string
	Items           []ItemRequest
	ShippingAddress Address
	PaymentMethod   string
	// TotalPrice overrides the computed sum of item prices when set.
	TotalPrice      *decimal.Decimal
	Source          Source
	StripeSessionID string
	CouponCode      string
	// PaymentResult marks the order as paid on creation.
	PaymentResult *PaymentResult
}

// Requester identifies who is acting on an order.
type Requester struct {
	UserID string
	Admin  bool
}

// Products looks up catalog products for order lines.
type Products interface {
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// Service encapsulates order business logic.
type Service struct {
	products Products
	orders   Repository
	now      func() time.Time
	newID    func() string
}

// NewService creates an order Service with the required domain dependencies.
func NewService(products Products, orders Repository) *Service {
	return &Service{
		products: products,
		orders:   orders,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Create validates the request, resolves product names and prices, and
// persists the order while decrementing stock atomically. A checkout order
// for a session that already has an order returns that order unchanged.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	switch {
	case req.Source != SourceCheckout && !req.ShippingAddress.Complete():
		return nil, ErrInvalidAddress
	case req.Source == SourceCheckout && !req.ShippingAddress.IsZero() && !req.ShippingAddress.Complete():
		return nil, ErrInvalidAddress
	case req.TotalPrice != nil && req.TotalPrice.IsNegative():
		return nil, ErrInvalidTotal
	}

	if req.StripeSessionID != "" {
		existing, err := s.orders.GetBySessionID(ctx, req.StripeSessionID)
		switch {
		case err == nil:
			return existing, nil
		case !errors.Is(err, ErrOrderNotFound):
			return nil, errors.Wrap(err, "lookup session order")
		}
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	// Stock is re-checked inside the repository transaction; this pass only
	// rejects obviously unfulfillable orders early.
	requested := make(map[string]int, len(req.Items))
	items := make([]Item, len(req.Items))
	subtotal := decimal.Zero
	for i, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		requested[p.ID] += item.Quantity
		if p.Stock < requested[p.ID] {
			return nil, &InsufficientStockError{ProductID: p.ID, Requested: requested[p.ID], Available: p.Stock}
		}

		price := p.Price
		if item.Price != nil {
			price = *item.Price
		}
		items[i] = Item{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  item.Quantity,
			Price:     price,
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	total := subtotal
	if req.TotalPrice != nil {
		total = *req.TotalPrice
	}

	now := s.now()
	o := &Order{
		ID:              s.newID(),
		UserID:          req.UserID,
		Items:           items,
		TotalPrice:      total.Round(2),
		ShippingAddress: req.ShippingAddress,
		Status:          StatusPending,
		PaymentMethod:   req.PaymentMethod,
		StripeSessionID: req.StripeSessionID,
		CouponCode:      req.CouponCode,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.PaymentResult != nil {
		pr := *req.PaymentResult
		o.PaymentResult = &pr
		o.IsPaid = true
		o.PaidAt = &now
	}

	if err := s.orders.Create(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicateSession) {
			return s.orders.GetBySessionID(ctx, req.StripeSessionID)
		}
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// GetBySession returns the order created for a gateway session.
func (s *Service) GetBySession(ctx context.Context, sessionID string) (*Order, error) {
	return s.orders.GetBySessionID(ctx, sessionID)
}

// ListMine returns the orders of a user, newest first.
func (s *Service) ListMine(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// CheckStock reports whether the catalog can currently cover items. It
// returns *ProductNotFoundError or *InsufficientStockError and reserves
// nothing.
func (s *Service) CheckStock(ctx context.Context, items []ItemRequest) error {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}
	stock := make(map[string]int, len(fetched))
	for _, p := range fetched {
		stock[p.ID] = p.Stock
	}

	requested := make(map[string]int, len(items))
	for _, item := range items {
		avail, ok := stock[item.ProductID]
		if !ok {
			return &ProductNotFoundError{ProductID: item.ProductID}
		}
		requested[item.ProductID] += item.Quantity
		if avail < requested[item.ProductID] {
			return &InsufficientStockError{ProductID: item.ProductID, Requested: requested[item.ProductID], Available: avail}
		}
	}
	return nil
}

// ListAll returns every order, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// Get returns an order visible to the requester.
func (s *Service) Get(ctx context.Context, id string, who Requester) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.Admin && o.UserID != who.UserID {
		return nil, ErrForbidden
	}
	return o, nil
}

// MarkPaid records a payment confirmation on an order.
func (s *Service) MarkPaid(ctx context.Context, id string, who Requester, result PaymentResult) (*Order, error) {
	return s.orders.Update(ctx, id, func(o *Order) error {
		if !who.Admin && o.UserID != who.UserID {
			return ErrForbidden
		}
		if o.Status == StatusCancelled {
			return ErrInvalidTransition
		}
		now := s.now()
		o.IsPaid = true
		o.PaidAt = &now
		o.PaymentResult = &result
		o.UpdatedAt = now
		return nil
	})
}

// MarkDelivered flags an order as delivered. Delivering an already delivered
// order keeps the original delivery time.
func (s *Service) MarkDelivered(ctx context.Context, id string) (*Order, error) {
	return s.orders.Update(ctx, id, func(o *Order) error {
		switch o.Status {
		case StatusCancelled:
			return ErrInvalidTransition
		case StatusDelivered:
			return nil
		}
		now := s.now()
		o.IsDelivered = true
		o.DeliveredAt = &now
		o.Status = StatusDelivered
		o.UpdatedAt = now
		return nil
	})
}
