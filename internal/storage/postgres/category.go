package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partstore/storefront/internal/domain/category"
)

const (
	categoryColumns = `id, name, slug, image, subcategories, created_at, updated_at`

	listCategoriesSQL = `SELECT ` + categoryColumns + ` FROM categories ORDER BY name`

	getCategoryByIDSQL = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	getCategoryBySlugSQL = `SELECT ` + categoryColumns + ` FROM categories WHERE slug = $1`

	lockCategorySQL = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1 FOR UPDATE`

	createCategorySQL = `INSERT INTO categories (id, name, slug, image, subcategories)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	updateCategorySQL = `UPDATE categories
		SET name = $2, slug = $3, image = $4, subcategories = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	deleteCategorySQL = `DELETE FROM categories WHERE id = $1`
)

var _ category.Repository = (*CategoryRepository)(nil)

// CategoryRepository implements category.Repository backed by PostgreSQL.
// Subcategories are stored as an ordered JSONB array on the parent row.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]category.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, scanCategory)
}

// GetByID returns a single category.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*category.Category, error) {
	return r.getOne(ctx, getCategoryByIDSQL, id)
}

// GetBySlug returns the category with the given slug.
func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*category.Category, error) {
	return r.getOne(ctx, getCategoryBySlugSQL, slug)
}

func (r *CategoryRepository) getOne(ctx context.Context, query, arg string) (*category.Category, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting category %q: %w", arg, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if notFound(err) {
			return nil, category.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("getting category %q: %w", arg, err)
	}
	return &c, nil
}

// Create inserts a new category.
func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	subs, err := marshalSubcategories(c.Subcategories)
	if err != nil {
		return err
	}
	err = r.pool.QueryRow(ctx, createCategorySQL, c.ID, c.Name, c.Slug, c.Image, subs).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return category.ErrCategoryExists
		}
		return fmt.Errorf("creating category %q: %w", c.Name, err)
	}
	return nil
}

// Update locks the row, applies fn and writes the result back in one
// transaction.
func (r *CategoryRepository) Update(
	ctx context.Context,
	id string,
	fn func(c *category.Category) error,
) (*category.Category, error) {
	var updated category.Category
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, lockCategorySQL, id)
		if err != nil {
			return fmt.Errorf("locking category %q: %w", id, err)
		}
		c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
		if err != nil {
			if notFound(err) {
				return category.ErrCategoryNotFound
			}
			return fmt.Errorf("locking category %q: %w", id, err)
		}

		if err := fn(&c); err != nil {
			return err
		}

		subs, err := marshalSubcategories(c.Subcategories)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, updateCategorySQL, c.ID, c.Name, c.Slug, c.Image, subs).Scan(&c.UpdatedAt)
		if err != nil {
			if pgCode(err) == codeUniqueViolation {
				return category.ErrCategoryExists
			}
			return fmt.Errorf("updating category %q: %w", id, err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a category. The products foreign key rejects deleting a
// category that is still referenced.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCategorySQL, id)
	if err != nil {
		switch pgCode(err) {
		case codeForeignKeyViolation:
			return category.ErrCategoryInUse
		case codeInvalidText:
			return category.ErrCategoryNotFound
		}
		return fmt.Errorf("deleting category %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return category.ErrCategoryNotFound
	}
	return nil
}

func scanCategory(row pgx.CollectableRow) (category.Category, error) {
	var (
		c    category.Category
		subs []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Image, &subs, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return c, err
	}
	if err := json.Unmarshal(subs, &c.Subcategories); err != nil {
		return c, fmt.Errorf("decoding subcategories of %q: %w", c.ID, err)
	}
	return c, nil
}

func marshalSubcategories(subs []category.Subcategory) ([]byte, error) {
	if subs == nil {
		subs = []category.Subcategory{}
	}
	data, err := json.Marshal(subs)
	if err != nil {
		return nil, fmt.Errorf("marshaling subcategories: %w", err)
	}
	return data, nil
}
