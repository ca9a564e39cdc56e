package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/partstore/storefront/internal/domain/category"
	"github.com/partstore/storefront/internal/domain/checkout"
	"github.com/partstore/storefront/internal/domain/coupon"
	"github.com/partstore/storefront/internal/domain/order"
	"github.com/partstore/storefront/internal/domain/product"
)

// Request bodies.

type categoryRequest struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type categoryPatch struct {
	Name  *string `json:"name"`
	Image *string `json:"image"`
}

type subcategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

type subcategoryPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
}

type productRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	CategoryID    string          `json:"categoryId"`
	SubcategoryID string          `json:"subcategoryId"`
	Image         string          `json:"image"`
}

type addressBody struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

func (a addressBody) toDomain() order.Address {
	return order.Address{
		Street:     a.Street,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

type orderItemRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type orderRequest struct {
	OrderItems      []orderItemRequest `json:"orderItems"`
	ShippingAddress addressBody        `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
	TotalPrice      *decimal.Decimal   `json:"totalPrice"`
}

type paymentResultBody struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"updateTime"`
	EmailAddress string `json:"emailAddress"`
}

// cartItem accepts both "id" and the storefront client's legacy "_id".
type cartItem struct {
	ID       string           `json:"id"`
	LegacyID string           `json:"_id"`
	Name     string           `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Quantity int              `json:"quantity"`
	Image    string           `json:"image"`
}

type checkoutRequest struct {
	Products        []cartItem   `json:"products"`
	CouponCode      string       `json:"couponCode"`
	ShippingAddress *addressBody `json:"shippingAddress"`
}

type checkoutSuccessRequest struct {
	SessionID string `json:"sessionId"`
}

type couponCodeRequest struct {
	Code string `json:"code"`
}

// Responses.

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type subcategoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

type categoryResponse struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Slug          string                `json:"slug"`
	Image         string                `json:"image"`
	Subcategories []subcategoryResponse `json:"subcategories"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

func toSubcategory(s category.Subcategory) subcategoryResponse {
	return subcategoryResponse(s)
}

func toCategory(c *category.Category) categoryResponse {
	subs := make([]subcategoryResponse, len(c.Subcategories))
	for i, s := range c.Subcategories {
		subs[i] = toSubcategory(s)
	}
	return categoryResponse{
		ID:            c.ID,
		Name:          c.Name,
		Slug:          c.Slug,
		Image:         c.Image,
		Subcategories: subs,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

type productResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	Stock         int       `json:"stock"`
	CategoryID    string    `json:"categoryId"`
	SubcategoryID string    `json:"subcategoryId,omitempty"`
	IsFeatured    bool      `json:"isFeatured"`
	Image         string    `json:"image"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toProduct(p *product.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price.InexactFloat64(),
		Stock:         p.Stock,
		CategoryID:    p.CategoryID,
		SubcategoryID: p.SubcategoryID,
		IsFeatured:    p.IsFeatured,
		Image:         p.Image,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toProducts(ps []product.Product) []productResponse {
	out := make([]productResponse, len(ps))
	for i := range ps {
		out[i] = toProduct(&ps[i])
	}
	return out
}

type orderItemResponse struct {
	Product  string  `json:"product"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	User            string              `json:"user"`
	OrderItems      []orderItemResponse `json:"orderItems"`
	TotalPrice      float64             `json:"totalPrice"`
	ShippingAddress *addressBody        `json:"shippingAddress,omitempty"`
	Status          string              `json:"status"`
	PaymentMethod   string              `json:"paymentMethod"`
	PaymentResult   *paymentResultBody  `json:"paymentResult,omitempty"`
	IsPaid          bool                `json:"isPaid"`
	PaidAt          *time.Time          `json:"paidAt,omitempty"`
	IsDelivered     bool                `json:"isDelivered"`
	DeliveredAt     *time.Time          `json:"deliveredAt,omitempty"`
	StripeSessionID string              `json:"stripeSessionId,omitempty"`
	CouponCode      string              `json:"couponCode,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func toOrder(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			Product:  it.ProductID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price.InexactFloat64(),
		}
	}
	resp := orderResponse{
		ID:              o.ID,
		User:            o.UserID,
		OrderItems:      items,
		TotalPrice:      o.TotalPrice.InexactFloat64(),
		Status:          string(o.Status),
		PaymentMethod:   o.PaymentMethod,
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		IsDelivered:     o.IsDelivered,
		DeliveredAt:     o.DeliveredAt,
		StripeSessionID: o.StripeSessionID,
		CouponCode:      o.CouponCode,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if !o.ShippingAddress.IsZero() {
		a := o.ShippingAddress
		resp.ShippingAddress = &addressBody{
			Street:     a.Street,
			City:       a.City,
			PostalCode: a.PostalCode,
			Country:    a.Country,
			Phone:      a.Phone,
		}
	}
	if pr := o.PaymentResult; pr != nil {
		resp.PaymentResult = &paymentResultBody{
			ID:           pr.ID,
			Status:       pr.Status,
			UpdateTime:   pr.UpdateTime,
			EmailAddress: pr.EmailAddress,
		}
	}
	return resp
}

func toOrders(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrder(&orders[i])
	}
	return out
}

type couponResponse struct {
	Code               string    `json:"code"`
	DiscountPercentage int       `json:"discountPercentage"`
	ExpirationDate     time.Time `json:"expirationDate"`
	IsActive           bool      `json:"isActive"`
}

func toCoupon(c *coupon.Coupon) *couponResponse {
	if c == nil {
		return nil
	}
	return &couponResponse{
		Code:               c.Code,
		DiscountPercentage: c.DiscountPercentage,
		ExpirationDate:     c.ExpirationDate,
		IsActive:           c.IsActive,
	}
}

type discountResponse struct {
	Applied bool   `json:"applied"`
	Percent int    `json:"percent,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type checkoutResponse struct {
	ID           string           `json:"id"`
	URL          string           `json:"url"`
	Subtotal     int64            `json:"subtotal"`
	TotalAmount  int64            `json:"totalAmount"`
	Discount     discountResponse `json:"discount"`
	RewardCoupon *couponResponse  `json:"rewardCoupon,omitempty"`
}

func toCheckout(r *checkout.Result) checkoutResponse {
	return checkoutResponse{
		ID:          r.SessionID,
		URL:         r.URL,
		Subtotal:    r.Subtotal,
		TotalAmount: r.TotalAmount,
		Discount: discountResponse{
			Applied: r.Discount.Applied,
			Percent: r.Discount.Percent,
			Reason:  string(r.Discount.Reason),
		},
		RewardCoupon: toCoupon(r.RewardCoupon),
	}
}

type checkoutSuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"orderId"`
}
