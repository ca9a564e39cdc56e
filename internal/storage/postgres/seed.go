package postgres

import (
	"context"
	"fmt"

	"github.com/partstore/storefront/internal/domain/category"
	"github.com/partstore/storefront/internal/domain/product"
)

const (
	upsertCategorySQL = `INSERT INTO categories (id, name, slug, image, subcategories)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, image = EXCLUDED.image,
			subcategories = EXCLUDED.subcategories, updated_at = NOW()
		RETURNING id, created_at, updated_at`

	upsertProductSQL = `INSERT INTO products
		(id, name, description, price, stock, category_id, subcategory_id, is_featured, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
			stock = EXCLUDED.stock, category_id = EXCLUDED.category_id,
			subcategory_id = EXCLUDED.subcategory_id, is_featured = EXCLUDED.is_featured,
			image = EXCLUDED.image, updated_at = NOW()
		RETURNING created_at, updated_at`
)

// Upsert inserts c or, when a category with the same slug exists, overwrites
// it in place. c.ID is set to the stored id.
func (r *CategoryRepository) Upsert(ctx context.Context, c *category.Category) error {
	subs, err := marshalSubcategories(c.Subcategories)
	if err != nil {
		return err
	}
	err = r.pool.QueryRow(ctx, upsertCategorySQL, c.ID, c.Name, c.Slug, c.Image, subs).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting category %q: %w", c.Slug, err)
	}
	return nil
}

// Upsert inserts p or overwrites the product with the same id.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock,
		p.CategoryID, nullable(p.SubcategoryID), p.IsFeatured, p.Image,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return category.ErrCategoryNotFound
		}
		return fmt.Errorf("upserting product %q: %w", p.Name, err)
	}
	return nil
}
