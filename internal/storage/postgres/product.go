package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/partstore/storefront/internal/domain/category"
	"github.com/partstore/storefront/internal/domain/product"
)

const (
	productColumns = `id, name, description, price, stock, category_id, subcategory_id,
		is_featured, image, created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id::text = ANY($1)`

	listFeaturedProductsSQL = `SELECT ` + productColumns + ` FROM products WHERE is_featured ORDER BY created_at DESC`

	sampleProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY random() LIMIT $1`

	listProductsByCategorySQL = `SELECT ` + productColumns + `
		FROM products WHERE category_id = $1 ORDER BY created_at DESC`

	listProductsBySubcategorySQL = `SELECT ` + productColumns + `
		FROM products WHERE category_id = $1 AND subcategory_id = $2 ORDER BY created_at DESC`

	createProductSQL = `INSERT INTO products
		(id, name, description, price, stock, category_id, subcategory_id, is_featured, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	toggleFeaturedSQL = `UPDATE products SET is_featured = NOT is_featured, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	countByCategorySQL = `SELECT COUNT(*) FROM products WHERE category_id = $1`

	countBySubcategorySQL = `SELECT COUNT(*) FROM products WHERE category_id = $1 AND subcategory_id = $2`
)

var (
	_ product.Repository    = (*ProductRepository)(nil)
	_ category.ProductUsage = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	return r.query(ctx, "listing products", listProductsSQL)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if notFound(err) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs. Unknown or
// malformed ids are skipped.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	return r.query(ctx, "getting products by ids", getProductsByIDsSQL, ids)
}

// ListFeatured returns featured products, newest first.
func (r *ProductRepository) ListFeatured(ctx context.Context) ([]product.Product, error) {
	return r.query(ctx, "listing featured products", listFeaturedProductsSQL)
}

// Sample returns up to n products in random order.
func (r *ProductRepository) Sample(ctx context.Context, n int) ([]product.Product, error) {
	return r.query(ctx, "sampling products", sampleProductsSQL, n)
}

// ListByCategory returns the products of a category.
func (r *ProductRepository) ListByCategory(ctx context.Context, categoryID string) ([]product.Product, error) {
	return r.query(ctx, "listing products by category", listProductsByCategorySQL, categoryID)
}

// ListBySubcategory returns the products of a subcategory.
func (r *ProductRepository) ListBySubcategory(
	ctx context.Context,
	categoryID, subcategoryID string,
) ([]product.Product, error) {
	return r.query(ctx, "listing products by subcategory", listProductsBySubcategorySQL, categoryID, subcategoryID)
}

func (r *ProductRepository) query(ctx context.Context, op, sql string, args ...any) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return products, nil
}

// Create inserts a product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, createProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock,
		p.CategoryID, nullable(p.SubcategoryID), p.IsFeatured, p.Image,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return category.ErrCategoryNotFound
		}
		return fmt.Errorf("creating product %q: %w", p.Name, err)
	}
	return nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		if notFound(err) {
			return product.ErrNotFound
		}
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// ToggleFeatured flips the featured flag.
func (r *ProductRepository) ToggleFeatured(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, toggleFeaturedSQL, id)
	if err != nil {
		return nil, fmt.Errorf("toggling product %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if notFound(err) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("toggling product %q: %w", id, err)
	}
	return &p, nil
}

// CountByCategory counts products referencing a category.
func (r *ProductRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countByCategorySQL, categoryID).Scan(&n); err != nil {
		if notFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("counting products of category %q: %w", categoryID, err)
	}
	return n, nil
}

// CountBySubcategory counts products referencing a subcategory.
func (r *ProductRepository) CountBySubcategory(ctx context.Context, categoryID, subcategoryID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countBySubcategorySQL, categoryID, subcategoryID).Scan(&n); err != nil {
		if notFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("counting products of subcategory %q: %w", subcategoryID, err)
	}
	return n, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
		subID *string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &price, &p.Stock, &p.CategoryID, &subID,
		&p.IsFeatured, &p.Image, &p.CreatedAt, &p.UpdatedAt,
	)
	p.Price = price
	p.SubcategoryID = deref(subID)
	return p, err
}
