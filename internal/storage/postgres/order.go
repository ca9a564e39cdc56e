package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/partstore/storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, items, total_price, shipping_address, status, payment_method,
		payment_result, is_paid, paid_at, is_delivered, delivered_at, stripe_session_id,
		coupon_code, created_at, updated_at`

	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2`

	currentStockSQL = `SELECT stock FROM products WHERE id = $1`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderBySessionSQL = `SELECT ` + orderColumns + ` FROM orders WHERE stripe_session_id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	lockOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	updateOrderSQL = `UPDATE orders
		SET status = $2, payment_result = $3, is_paid = $4, paid_at = $5,
			is_delivered = $6, delivered_at = $7, updated_at = $8
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create decrements stock for every ordered product and inserts the order in
// one transaction. Products are locked in id order so concurrent orders over
// the same products cannot deadlock.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	need := make(map[string]int, len(o.Items))
	for _, it := range o.Items {
		need[it.ProductID] += it.Quantity
	}
	ids := make([]string, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}
	resultJSON, err := marshalPaymentResult(o.PaymentResult)
	if err != nil {
		return err
	}

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, id := range ids {
			if err := decrementStock(ctx, tx, id, need[id]); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.UserID, itemsJSON, o.TotalPrice, addressJSON, string(o.Status), o.PaymentMethod,
			resultJSON, o.IsPaid, o.PaidAt, o.IsDelivered, o.DeliveredAt, nullable(o.StripeSessionID),
			o.CouponCode, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			if pgCode(err) == codeUniqueViolation {
				return order.ErrDuplicateSession
			}
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}
		return nil
	})
}

func decrementStock(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	tag, err := tx.Exec(ctx, decrementStockSQL, productID, qty)
	if err != nil {
		if pgCode(err) == codeInvalidText {
			return &order.ProductNotFoundError{ProductID: productID}
		}
		return fmt.Errorf("decrementing stock of %q: %w", productID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var available int
	if err := tx.QueryRow(ctx, currentStockSQL, productID).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &order.ProductNotFoundError{ProductID: productID}
		}
		return fmt.Errorf("reading stock of %q: %w", productID, err)
	}
	return &order.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetBySessionID returns the order created for a payment session.
func (r *OrderRepository) GetBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	return r.getOne(ctx, getOrderBySessionSQL, sessionID)
}

func (r *OrderRepository) getOne(ctx context.Context, query, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if notFound(err) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}
	return &o, nil
}

// ListByUser returns a user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns every order, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Update locks the order row, applies fn and stores the mutable fields.
func (r *OrderRepository) Update(ctx context.Context, id string, fn func(o *order.Order) error) (*order.Order, error) {
	var updated order.Order
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, lockOrderSQL, id)
		if err != nil {
			return fmt.Errorf("locking order %q: %w", id, err)
		}
		o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			if notFound(err) {
				return order.ErrOrderNotFound
			}
			return fmt.Errorf("locking order %q: %w", id, err)
		}

		if err := fn(&o); err != nil {
			return err
		}

		resultJSON, err := marshalPaymentResult(o.PaymentResult)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, updateOrderSQL,
			o.ID, string(o.Status), resultJSON, o.IsPaid, o.PaidAt, o.IsDelivered, o.DeliveredAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("updating order %q: %w", id, err)
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func marshalPaymentResult(pr *order.PaymentResult) ([]byte, error) {
	if pr == nil {
		return nil, nil
	}
	data, err := json.Marshal(pr)
	if err != nil {
		return nil, fmt.Errorf("marshaling payment result: %w", err)
	}
	return data, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		items     []byte
		address   []byte
		result    []byte
		status    string
		total     decimal.Decimal
		sessionID *string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &items, &total, &address, &status, &o.PaymentMethod,
		&result, &o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt, &sessionID,
		&o.CouponCode, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	o.TotalPrice = total
	o.StripeSessionID = deref(sessionID)

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("decoding items of order %q: %w", o.ID, err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("decoding address of order %q: %w", o.ID, err)
	}
	if result != nil {
		o.PaymentResult = &order.PaymentResult{}
		if err := json.Unmarshal(result, o.PaymentResult); err != nil {
			return o, fmt.Errorf("decoding payment result of order %q: %w", o.ID, err)
		}
	}
	return o, nil
}
