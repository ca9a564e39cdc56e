// Package payment implements the checkout gateway on top of Stripe Checkout.
package payment

import (
	"context"

	"github.com/stripe/stripe-go/v83"
	checkoutsession "github.com/stripe/stripe-go/v83/checkout/session"
	stripecoupon "github.com/stripe/stripe-go/v83/coupon"

	"github.com/partstore/storefront/internal/domain/checkout"
	"github.com/partstore/storefront/internal/domain/external"
)

const serviceName = "stripe"

// StripeGateway creates and reads hosted Stripe Checkout sessions.
type StripeGateway struct {
	sessions checkoutsession.Client
	coupons  stripecoupon.Client
}

var _ checkout.Gateway = (*StripeGateway)(nil)

// NewStripeGateway creates a gateway using the default Stripe API backend.
func NewStripeGateway(secretKey string) *StripeGateway {
	return NewStripeGatewayWithBackend(secretKey, stripe.GetBackend(stripe.APIBackend))
}

// NewStripeGatewayWithBackend creates a gateway bound to a specific backend.
func NewStripeGatewayWithBackend(secretKey string, b stripe.Backend) *StripeGateway {
	return &StripeGateway{
		sessions: checkoutsession.Client{B: b, Key: secretKey},
		coupons:  stripecoupon.Client{B: b, Key: secretKey},
	}
}

// CreateSession opens a card payment session for the given lines.
func (g *StripeGateway) CreateSession(ctx context.Context, p checkout.SessionParams) (*checkout.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.SuccessURL),
		CancelURL:          stripe.String(p.CancelURL),
	}
	params.Context = ctx
	if p.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(p.ClientReferenceID)
	}

	for _, l := range p.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(l.Name),
		}
		if l.Image != "" {
			product.Images = stripe.StringSlice([]string{l.Image})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(p.Currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(l.UnitAmount),
			},
			Quantity: stripe.Int64(l.Quantity),
		})
	}
	if p.DiscountID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(p.DiscountID)},
		}
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, external.Wrap(serviceName, "create session", err)
	}
	return toSession(s), nil
}

// RetrieveSession fetches a session by id.
func (g *StripeGateway) RetrieveSession(ctx context.Context, id string) (*checkout.Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.sessions.Get(id, params)
	if err != nil {
		return nil, external.Wrap(serviceName, "retrieve session", err)
	}
	return toSession(s), nil
}

// CreateDiscount registers a single-use percentage coupon.
func (g *StripeGateway) CreateDiscount(ctx context.Context, percent int) (string, error) {
	params := &stripe.CouponParams{
		PercentOff: stripe.Float64(float64(percent)),
		Duration:   stripe.String(string(stripe.CouponDurationOnce)),
	}
	params.Context = ctx

	c, err := g.coupons.New(params)
	if err != nil {
		return "", external.Wrap(serviceName, "create coupon", err)
	}
	return c.ID, nil
}

func toSession(s *stripe.CheckoutSession) *checkout.Session {
	out := &checkout.Session{
		ID:            s.ID,
		URL:           s.URL,
		Paid:          s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   s.AmountTotal,
		CustomerEmail: s.CustomerEmail,
		Metadata:      s.Metadata,
	}
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}
