// Package product serves the storefront catalog: listings by category,
// featured and recommended products, and admin product management.
package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/partstore/storefront/internal/domain/blob"
	"github.com/partstore/storefront/internal/domain/category"
)

// FeaturedCacheKey is the cache key holding the featured product list.
const FeaturedCacheKey = "featured_products"

// RecommendedCount is the number of products returned by Recommended.
const RecommendedCount = 4

// Categories resolves catalog categories for product listings and validation.
type Categories interface {
	GetByID(ctx context.Context, id string) (*category.Category, error)
	GetBySlug(ctx context.Context, slug string) (*category.Category, error)
}

// Cache stores the featured product list.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

// CreateRequest holds the input for adding a product.
type CreateRequest struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	Stock         int
	CategoryID    string
	SubcategoryID string
	Image         string
}

// Service implements catalog reads and product administration.
type Service struct {
	products    Repository
	categories  Categories
	blobs       blob.Store
	cache       Cache
	featuredTTL time.Duration
}

// NewService creates a product Service. cache may be nil, in which case the
// featured list is always read from the repository.
func NewService(products Repository, categories Categories, blobs blob.Store, cache Cache, featuredTTL time.Duration) *Service {
	return &Service{
		products:    products,
		categories:  categories,
		blobs:       blobs,
		cache:       cache,
		featuredTTL: featuredTTL,
	}
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.products.List(ctx)
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// ListFeatured returns featured products. A cache failure falls back to the
// repository and never fails the request.
func (s *Service) ListFeatured(ctx context.Context) ([]Product, error) {
	if s.cache != nil {
		var cached []Product
		ok, err := s.cache.Get(ctx, FeaturedCacheKey, &cached)
		if err != nil {
			zctx.From(ctx).Warn("Featured cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}
	return s.refreshFeatured(ctx)
}

// Recommended returns a random sample of products.
func (s *Service) Recommended(ctx context.Context) ([]Product, error) {
	return s.products.Sample(ctx, RecommendedCount)
}

// ListByCategory returns products of the category with the given slug.
func (s *Service) ListByCategory(ctx context.Context, slug string) ([]Product, error) {
	c, err := s.categories.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.products.ListByCategory(ctx, c.ID)
}

// ListBySubcategory returns products of a subcategory addressed by the
// category slug and the subcategory slug.
func (s *Service) ListBySubcategory(ctx context.Context, categorySlug, subcategorySlug string) ([]Product, error) {
	c, err := s.categories.GetBySlug(ctx, categorySlug)
	if err != nil {
		return nil, err
	}
	sub := c.SubcategoryBySlug(subcategorySlug)
	if sub == nil {
		return nil, category.ErrSubcategoryNotFound
	}
	return s.products.ListBySubcategory(ctx, c.ID, sub.ID)
}

// Create validates the catalog placement of a new product, stores its image
// and persists it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return nil, ErrNameRequired
	case req.Price.IsNegative():
		return nil, ErrInvalidPrice
	case req.Stock < 0:
		return nil, ErrInvalidStock
	case req.Image == "":
		return nil, ErrImageRequired
	}

	c, err := s.categories.GetByID(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}
	if req.SubcategoryID != "" {
		if sub, _ := c.Subcategory(req.SubcategoryID); sub == nil {
			return nil, category.ErrSubcategoryNotFound
		}
	}

	image, err := blob.Resolve(ctx, s.blobs, blob.FolderProducts, req.Image)
	if err != nil {
		return nil, err
	}

	p := &Product{
		ID:            uuid.New().String(),
		Name:          name,
		Description:   strings.TrimSpace(req.Description),
		Price:         req.Price.Round(2),
		Stock:         req.Stock,
		CategoryID:    c.ID,
		SubcategoryID: req.SubcategoryID,
		Image:         image,
	}
	if err := s.products.Create(ctx, p); err != nil {
		if blob.IsDataURI(req.Image) {
			blob.DestroyQuietly(ctx, s.blobs, image)
		}
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Delete removes a product and releases its image.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete product")
	}

	blob.DestroyQuietly(ctx, s.blobs, p.Image)
	if p.IsFeatured {
		s.refreshFeaturedQuietly(ctx)
	}
	return nil
}

// ToggleFeatured flips the featured flag of a product and refreshes the
// featured cache.
func (s *Service) ToggleFeatured(ctx context.Context, id string) (*Product, error) {
	p, err := s.products.ToggleFeatured(ctx, id)
	if err != nil {
		return nil, err
	}
	s.refreshFeaturedQuietly(ctx)
	return p, nil
}

func (s *Service) refreshFeatured(ctx context.Context) ([]Product, error) {
	featured, err := s.products.ListFeatured(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list featured products")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, FeaturedCacheKey, featured, s.featuredTTL); err != nil {
			zctx.From(ctx).Warn("Featured cache write failed", zap.Error(err))
		}
	}
	return featured, nil
}

func (s *Service) refreshFeaturedQuietly(ctx context.Context) {
	if _, err := s.refreshFeatured(ctx); err != nil {
		zctx.From(ctx).Warn("Featured cache refresh failed", zap.Error(err))
	}
}
