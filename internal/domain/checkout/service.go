// Package checkout orchestrates hosted payment sessions: pricing the cart,
// applying a reward coupon, issuing new rewards, and turning a paid session
// into an order.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/partstore/storefront/internal/domain/coupon"
	"github.com/partstore/storefront/internal/domain/order"
)

const instrumentationName = "github.com/partstore/storefront/internal/domain/checkout"

// Defaults applied by NewService for zero Config fields.
const (
	DefaultCurrency        = "ron"
	DefaultClientURL       = "http://localhost:5173"
	DefaultRewardThreshold = int64(20000)
)

// Config holds checkout settings.
type Config struct {
	Currency  string
	ClientURL string
	// RewardThreshold is the minimum discounted total, in minor units, that
	// earns a reward coupon.
	RewardThreshold int64
}

// Service runs the checkout workflow.
type Service struct {
	gateway Gateway
	coupons Coupons
	orders  Orders
	cfg     Config
	now     func() time.Time

	tracer           trace.Tracer
	sessionsCreated  metric.Int64Counter
	discountDegraded metric.Int64Counter
	rewardsIssued    metric.Int64Counter
	ordersCompleted  metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(
	gateway Gateway,
	coupons Coupons,
	orders Orders,
	cfg Config,
	mp metric.MeterProvider,
	tp trace.TracerProvider,
) (*Service, error) {
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.ClientURL == "" {
		cfg.ClientURL = DefaultClientURL
	}
	cfg.ClientURL = strings.TrimRight(cfg.ClientURL, "/")
	if cfg.RewardThreshold <= 0 {
		cfg.RewardThreshold = DefaultRewardThreshold
	}

	s := &Service{
		gateway: gateway,
		coupons: coupons,
		orders:  orders,
		cfg:     cfg,
		now:     time.Now,
		tracer:  tp.Tracer(instrumentationName),
	}

	meter := mp.Meter(instrumentationName)
	var err error
	if s.sessionsCreated, err = meter.Int64Counter("checkout.sessions.created",
		metric.WithDescription("Payment sessions created"),
	); err != nil {
		return nil, errors.Wrap(err, "sessions counter")
	}
	if s.discountDegraded, err = meter.Int64Counter("checkout.discount.degraded",
		metric.WithDescription("Checkouts where a valid coupon could not be applied"),
	); err != nil {
		return nil, errors.Wrap(err, "degraded counter")
	}
	if s.rewardsIssued, err = meter.Int64Counter("checkout.reward_coupons.issued",
		metric.WithDescription("Reward coupons issued at checkout"),
	); err != nil {
		return nil, errors.Wrap(err, "rewards counter")
	}
	if s.ordersCompleted, err = meter.Int64Counter("checkout.orders.completed",
		metric.WithDescription("Orders created from paid sessions"),
	); err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	return s, nil
}

// CreateSession prices the cart, applies the coupon when possible, opens a
// gateway session and issues a reward coupon for large purchases.
func (s *Service) CreateSession(ctx context.Context, req Request) (_ *Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.CreateSession")
	defer func() { endSpan(span, rerr) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	// Stock is decremented only when the paid session is completed, so a
	// cart the catalog cannot cover is refused before the customer pays.
	wanted := make([]order.ItemRequest, len(req.Products))
	for i, p := range req.Products {
		wanted[i] = order.ItemRequest{ProductID: p.ID, Quantity: p.Quantity}
	}
	if err := s.orders.CheckStock(ctx, wanted); err != nil {
		return nil, errors.Wrap(err, "check stock")
	}

	subtotal := Subtotal(req.Products)
	res := &Result{Subtotal: subtotal, TotalAmount: subtotal}

	var discountID string
	code := coupon.NormalizeCode(req.CouponCode)
	if code != "" {
		outcome, id, err := s.applyCoupon(ctx, code, req.UserID)
		if err != nil {
			return nil, err
		}
		res.Discount = outcome
		discountID = id
		if outcome.Applied {
			res.TotalAmount = coupon.ApplyPercentage(subtotal, outcome.Percent)
		}
	}

	md := map[string]string{MetaUserID: req.UserID}
	// Only a coupon that was actually applied is consumed on completion.
	if res.Discount.Applied {
		md[MetaCouponCode] = code
	}
	putChunked(md, MetaProducts, encodeProducts(req.Products))
	if req.ShippingAddress != nil {
		md[MetaShippingAddress] = encodeAddress(*req.ShippingAddress)
	}

	lines := make([]SessionLine, len(req.Products))
	for i, p := range req.Products {
		lines[i] = SessionLine{
			Name:       p.Name,
			Image:      p.Image,
			UnitAmount: MinorUnits(p.Price),
			Quantity:   int64(p.Quantity),
		}
	}

	sess, err := s.gateway.CreateSession(ctx, SessionParams{
		Currency:          s.cfg.Currency,
		Lines:             lines,
		DiscountID:        discountID,
		SuccessURL:        s.cfg.ClientURL + "/purchase-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         s.cfg.ClientURL + "/purchase-cancel",
		ClientReferenceID: req.UserID,
		Metadata:          md,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create payment session")
	}
	s.sessionsCreated.Add(ctx, 1, metric.WithAttributes(attribute.Bool("discount.applied", res.Discount.Applied)))
	res.SessionID = sess.ID
	res.URL = sess.URL

	if res.TotalAmount >= s.cfg.RewardThreshold {
		reward, err := s.coupons.IssueReward(ctx, req.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "issue reward coupon")
		}
		s.rewardsIssued.Add(ctx, 1)
		res.RewardCoupon = reward
	}

	zctx.From(ctx).Info("Checkout session created",
		zap.String("session_id", res.SessionID),
		zap.Int64("total_amount", res.TotalAmount),
		zap.Bool("discount_applied", res.Discount.Applied),
		zap.String("discount_reason", string(res.Discount.Reason)),
	)
	return res, nil
}

// applyCoupon resolves the user's coupon and registers it with the gateway.
// Only storage failures are returned as errors; everything else degrades to
// a checkout without discount.
func (s *Service) applyCoupon(ctx context.Context, code, userID string) (DiscountOutcome, string, error) {
	c, err := s.coupons.Redeem(ctx, code, userID)
	switch {
	case errors.Is(err, coupon.ErrCouponNotFound):
		return DiscountOutcome{Reason: ReasonCouponNotFound}, "", nil
	case errors.Is(err, coupon.ErrCouponExpired):
		return DiscountOutcome{Reason: ReasonCouponExpired}, "", nil
	case err != nil:
		return DiscountOutcome{}, "", errors.Wrap(err, "redeem coupon")
	}

	id, err := s.gateway.CreateDiscount(ctx, c.DiscountPercentage)
	if err != nil {
		zctx.From(ctx).Warn("Discount registration failed, continuing without discount",
			zap.String("coupon", code),
			zap.Error(err),
		)
		s.discountDegraded.Add(ctx, 1)
		return DiscountOutcome{Percent: c.DiscountPercentage, Reason: ReasonGatewayUnavailable}, "", nil
	}
	return DiscountOutcome{Applied: true, Percent: c.DiscountPercentage}, id, nil
}

// Complete turns a paid gateway session into an order. Completing the same
// session again returns the order created the first time. Only the session
// owner or an admin may complete it.
func (s *Service) Complete(ctx context.Context, sessionID string, who order.Requester) (_ *order.Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Complete",
		trace.WithAttributes(attribute.String("checkout.session_id", sessionID)),
	)
	defer func() { endSpan(span, rerr) }()

	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionRequired
	}

	existing, err := s.orders.GetBySession(ctx, sessionID)
	switch {
	case err == nil:
		if !who.Admin && existing.UserID != who.UserID {
			return nil, order.ErrForbidden
		}
		if err := s.consumeCoupon(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case !errors.Is(err, order.ErrOrderNotFound):
		return nil, errors.Wrap(err, "lookup order")
	}

	sess, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "retrieve payment session")
	}
	if owner := sess.Metadata[MetaUserID]; owner != "" && !who.Admin && owner != who.UserID {
		return nil, order.ErrForbidden
	}
	if !sess.Paid {
		return nil, ErrPaymentNotCompleted
	}

	req, err := s.orderRequest(sess)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.Create(ctx, req)
	if err != nil {
		zctx.From(ctx).Error("Paid session could not be turned into an order",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "create order")
	}
	if err := s.consumeCoupon(ctx, o); err != nil {
		return nil, err
	}
	s.ordersCompleted.Add(ctx, 1)
	return o, nil
}

func (s *Service) orderRequest(sess *Session) (order.CreateRequest, error) {
	md := sess.Metadata
	userID := md[MetaUserID]
	if userID == "" {
		return order.CreateRequest{}, errors.Wrap(ErrInvalidMetadata, "missing user id")
	}

	raw, err := getChunked(md, MetaProducts)
	if err != nil {
		return order.CreateRequest{}, err
	}
	snapshot, err := decodeProducts(raw)
	if err != nil {
		return order.CreateRequest{}, errors.Wrap(ErrInvalidMetadata, err.Error())
	}
	if len(snapshot) == 0 {
		return order.CreateRequest{}, errors.Wrap(ErrInvalidMetadata, "no products")
	}

	var addr order.Address
	if rawAddr := md[MetaShippingAddress]; rawAddr != "" {
		if addr, err = decodeAddress(rawAddr); err != nil {
			return order.CreateRequest{}, errors.Wrap(ErrInvalidMetadata, err.Error())
		}
	}

	items := make([]order.ItemRequest, len(snapshot))
	for i, it := range snapshot {
		price := it.Price
		items[i] = order.ItemRequest{ProductID: it.ID, Quantity: it.Quantity, Price: &price}
	}

	total := FromMinorUnits(sess.AmountTotal)
	return order.CreateRequest{
		UserID:          userID,
		Items:           items,
		ShippingAddress: addr,
		PaymentMethod:   order.PaymentMethodCard,
		TotalPrice:      &total,
		Source:          order.SourceCheckout,
		StripeSessionID: sess.ID,
		CouponCode:      md[MetaCouponCode],
		PaymentResult: &order.PaymentResult{
			ID:           sess.ID,
			Status:       "paid",
			UpdateTime:   s.now().UTC().Format(time.RFC3339),
			EmailAddress: sess.CustomerEmail,
		},
	}, nil
}

func (s *Service) consumeCoupon(ctx context.Context, o *order.Order) error {
	if o.CouponCode == "" {
		return nil
	}
	if err := s.coupons.Deactivate(ctx, o.CouponCode, o.UserID); err != nil {
		return errors.Wrap(err, "deactivate coupon")
	}
	return nil
}

func validateRequest(req Request) error {
	if len(req.Products) == 0 {
		return ErrEmptyCart
	}
	for i, p := range req.Products {
		var reason string
		switch {
		case strings.TrimSpace(p.ID) == "":
			reason = "id is required"
		case strings.TrimSpace(p.Name) == "":
			reason = "name is required"
		case p.Price.IsNegative():
			reason = "price must not be negative"
		case p.Quantity < 1:
			reason = "quantity must be at least 1"
		case strings.TrimSpace(p.Image) == "":
			reason = "image is required"
		}
		if reason != "" {
			return &InvalidItemError{Index: i, Reason: reason}
		}
	}
	if i := amountOverflow(req.Products); i >= 0 {
		return &InvalidItemError{Index: i, Reason: "amount is too large"}
	}
	if req.ShippingAddress != nil && !req.ShippingAddress.Complete() {
		return order.ErrInvalidAddress
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
