package category

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for category administration.
var (
	ErrCategoryNotFound    = errors.New("category not found")
	ErrSubcategoryNotFound = errors.New("subcategory not found")
	ErrCategoryExists      = errors.New("category already exists")
	ErrSubcategoryExists   = errors.New("subcategory already exists in this category")
	ErrCategoryInUse       = errors.New("category is referenced by products")
	ErrSubcategoryInUse    = errors.New("subcategory is referenced by products")
	ErrNameRequired        = errors.New("name is required")
)

// Category groups products and owns an ordered list of subcategories.
type Category struct {
	ID            string
	Name          string
	Slug          string
	Image         string
	Subcategories []Subcategory
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Subcategory is owned by exactly one Category. Its ID is stable across
// renames and reordering of siblings.
type Subcategory struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

// Subcategory returns the subcategory with the given id and its position.
func (c *Category) Subcategory(id string) (*Subcategory, int) {
	for i := range c.Subcategories {
		if c.Subcategories[i].ID == id {
			return &c.Subcategories[i], i
		}
	}
	return nil, -1
}

// SubcategoryBySlug returns the subcategory with the given slug.
func (c *Category) SubcategoryBySlug(slug string) *Subcategory {
	for i := range c.Subcategories {
		if c.Subcategories[i].Slug == slug {
			return &c.Subcategories[i]
		}
	}
	return nil
}

// hasSubcategoryName reports whether a sibling other than exceptID already
// uses name, compared case-insensitively.
func (c *Category) hasSubcategoryName(name, exceptID string) bool {
	for _, s := range c.Subcategories {
		if s.ID != exceptID && strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

// AddSubcategory appends s, rejecting duplicate names within the category.
func (c *Category) AddSubcategory(s Subcategory) error {
	if c.hasSubcategoryName(s.Name, "") {
		return ErrSubcategoryExists
	}
	c.Subcategories = append(c.Subcategories, s)
	return nil
}

// RemoveSubcategory deletes the subcategory with the given id, keeping the
// order of the remaining ones.
func (c *Category) RemoveSubcategory(id string) (Subcategory, error) {
	s, i := c.Subcategory(id)
	if s == nil {
		return Subcategory{}, ErrSubcategoryNotFound
	}
	removed := *s
	c.Subcategories = append(c.Subcategories[:i], c.Subcategories[i+1:]...)
	return removed, nil
}

// Repository persists categories together with their subcategories.
type Repository interface {
	List(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	GetBySlug(ctx context.Context, slug string) (*Category, error)
	// Create inserts c. Returns ErrCategoryExists when the name or slug is taken.
	Create(ctx context.Context, c *Category) error
	// Update loads the category under a row lock, applies fn and stores the
	// result in the same transaction. Nothing is written when fn fails.
	Update(ctx context.Context, id string, fn func(c *Category) error) (*Category, error)
	// Delete removes the category. Returns ErrCategoryInUse when products
	// still reference it.
	Delete(ctx context.Context, id string) error
}

// ProductUsage counts products referencing catalog nodes.
type ProductUsage interface {
	CountByCategory(ctx context.Context, categoryID string) (int, error)
	CountBySubcategory(ctx context.Context, categoryID, subcategoryID string) (int, error)
}

// Cache stores the rendered category list.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
