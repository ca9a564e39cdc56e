package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partstore/storefront/internal/domain/coupon"
)

const (
	couponColumns = `code, user_id, discount_percentage, expiration_date, is_active, created_at`

	findActiveCouponSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE code = $1 AND user_id = $2 AND is_active`

	findActiveCouponByUserSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE user_id = $1 AND is_active`

	deleteUserCouponSQL = `DELETE FROM coupons WHERE user_id = $1`

	insertCouponSQL = `INSERT INTO coupons (code, user_id, discount_percentage, expiration_date, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	deactivateCouponSQL = `UPDATE coupons SET is_active = FALSE WHERE code = $1 AND user_id = $2`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindActive looks up an active coupon by code and owner.
// Returns coupon.ErrCouponNotFound when no matching active coupon exists.
func (r *CouponRepository) FindActive(ctx context.Context, code, userID string) (*coupon.Coupon, error) {
	return r.findOne(ctx, findActiveCouponSQL, code, userID)
}

// FindActiveByUser returns the active coupon owned by userID.
func (r *CouponRepository) FindActiveByUser(ctx context.Context, userID string) (*coupon.Coupon, error) {
	return r.findOne(ctx, findActiveCouponByUserSQL, userID)
}

func (r *CouponRepository) findOne(ctx context.Context, query string, args ...any) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding coupon: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if notFound(err) {
			return nil, coupon.ErrCouponNotFound
		}
		return nil, fmt.Errorf("finding coupon: %w", err)
	}
	return &c, nil
}

// ReplaceForUser removes any coupon owned by c.UserID and inserts c.
func (r *CouponRepository) ReplaceForUser(ctx context.Context, c *coupon.Coupon) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteUserCouponSQL, c.UserID); err != nil {
			return fmt.Errorf("removing coupons of %q: %w", c.UserID, err)
		}
		err := tx.QueryRow(ctx, insertCouponSQL,
			c.Code, c.UserID, c.DiscountPercentage, c.ExpirationDate, c.IsActive,
		).Scan(&c.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting coupon for %q: %w", c.UserID, err)
		}
		return nil
	})
}

// Deactivate clears the active flag of a coupon. Unknown coupons are ignored.
func (r *CouponRepository) Deactivate(ctx context.Context, code, userID string) error {
	if _, err := r.pool.Exec(ctx, deactivateCouponSQL, code, userID); err != nil {
		return fmt.Errorf("deactivating coupon %q: %w", code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(&c.Code, &c.UserID, &c.DiscountPercentage, &c.ExpirationDate, &c.IsActive, &c.CreatedAt)
	return c, err
}
