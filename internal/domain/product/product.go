package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for the product catalog.
var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound      = errors.New("product not found")
	ErrNameRequired  = errors.New("product name is required")
	ErrInvalidPrice  = errors.New("price must not be negative")
	ErrInvalidStock  = errors.New("stock must not be negative")
	ErrImageRequired = errors.New("product image is required")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID            string
	Name          string
	Description   string
	Price         decimal.Decimal
	Stock         int
	CategoryID    string
	SubcategoryID string
	IsFeatured    bool
	Image         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	ListFeatured(ctx context.Context) ([]Product, error)
	// Sample returns up to n products chosen at random.
	Sample(ctx context.Context, n int) ([]Product, error)
	ListByCategory(ctx context.Context, categoryID string) ([]Product, error)
	ListBySubcategory(ctx context.Context, categoryID, subcategoryID string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	// ToggleFeatured flips the featured flag and returns the updated product.
	ToggleFeatured(ctx context.Context, id string) (*Product, error)
}
