package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrCouponNotFound is returned when no active coupon with the given code
	// belongs to the user.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponExpired is returned when a coupon is past its expiration date.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrInvalidPercentage is returned for discounts outside 0..100.
	ErrInvalidPercentage = errors.New("discount percentage must be between 0 and 100")
)

// Coupon is a single-use percentage discount owned by one user.
type Coupon struct {
	Code               string
	UserID             string
	DiscountPercentage int
	ExpirationDate     time.Time
	IsActive           bool
	CreatedAt          time.Time
}

// Expired reports whether the coupon is no longer valid at now.
func (c *Coupon) Expired(now time.Time) bool {
	return !now.Before(c.ExpirationDate)
}

// Repository provides lookup and mutation of user coupons.
type Repository interface {
	// FindActive returns the active coupon with code owned by userID, or
	// ErrCouponNotFound.
	FindActive(ctx context.Context, code, userID string) (*Coupon, error)
	// FindActiveByUser returns the user's active coupon, or ErrCouponNotFound.
	FindActiveByUser(ctx context.Context, userID string) (*Coupon, error)
	// ReplaceForUser deletes any coupon owned by c.UserID and stores c, in
	// one transaction.
	ReplaceForUser(ctx context.Context, c *Coupon) error
	// Deactivate clears the active flag. Missing or already inactive coupons
	// are not an error.
	Deactivate(ctx context.Context, code, userID string) error
}
