// Package coupon manages reward coupons: issuing them to users who reach the
// spending threshold, validating them at checkout and retiring them once used.
package coupon

import (
	"context"
	"io"
	"time"

	"github.com/go-faster/errors"
)

// Defaults for reward coupons.
const (
	DefaultRewardPercent  = 10
	DefaultRewardValidity = 30 * 24 * time.Hour
)

// IssuerConfig tunes reward coupons.
type IssuerConfig struct {
	Percent  int
	Validity time.Duration
}

// Issuer issues, redeems and deactivates user coupons.
type Issuer struct {
	repo     Repository
	percent  int
	validity time.Duration
	now      func() time.Time
	random   io.Reader
}

// NewIssuer creates an Issuer backed by the given Repository. Zero config
// values fall back to a 10% discount valid for 30 days.
func NewIssuer(repo Repository, cfg IssuerConfig) *Issuer {
	if cfg.Percent == 0 {
		cfg.Percent = DefaultRewardPercent
	}
	if cfg.Validity == 0 {
		cfg.Validity = DefaultRewardValidity
	}
	return &Issuer{
		repo:     repo,
		percent:  cfg.Percent,
		validity: cfg.Validity,
		now:      time.Now,
	}
}

// IssueReward creates a fresh reward coupon for userID, replacing any coupon
// the user already holds.
func (i *Issuer) IssueReward(ctx context.Context, userID string) (*Coupon, error) {
	if i.percent < 0 || i.percent > 100 {
		return nil, ErrInvalidPercentage
	}
	code, err := GenerateCode(i.random)
	if err != nil {
		return nil, errors.Wrap(err, "generate coupon code")
	}

	now := i.now()
	c := &Coupon{
		Code:               code,
		UserID:             userID,
		DiscountPercentage: i.percent,
		ExpirationDate:     now.Add(i.validity),
		IsActive:           true,
		CreatedAt:          now,
	}
	if err := i.repo.ReplaceForUser(ctx, c); err != nil {
		return nil, errors.Wrap(err, "store reward coupon")
	}
	return c, nil
}

// Redeem returns the coupon if it is active, owned by userID and not expired.
// It does not consume the coupon; see Deactivate.
func (i *Issuer) Redeem(ctx context.Context, code, userID string) (*Coupon, error) {
	c, err := i.repo.FindActive(ctx, NormalizeCode(code), userID)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if c.Expired(i.now()) {
		return nil, ErrCouponExpired
	}
	return c, nil
}

// Deactivate marks the coupon as used. Calling it again is harmless.
func (i *Issuer) Deactivate(ctx context.Context, code, userID string) error {
	if err := i.repo.Deactivate(ctx, NormalizeCode(code), userID); err != nil {
		return errors.Wrap(err, "deactivate coupon")
	}
	return nil
}

// Active returns the user's current coupon, or ErrCouponNotFound when the
// user holds none that is still valid.
func (i *Issuer) Active(ctx context.Context, userID string) (*Coupon, error) {
	c, err := i.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.Expired(i.now()) {
		return nil, ErrCouponNotFound
	}
	return c, nil
}
