// Package category implements catalog category administration: categories,
// their owned subcategories, slug derivation and image lifecycle.
package category

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/partstore/storefront/internal/domain/blob"
)

// ListCacheKey is the cache key holding the full category list.
const ListCacheKey = "categories:all"

const listCacheTTL = time.Hour

// CreateRequest holds the input for creating a category.
type CreateRequest struct {
	Name  string
	Image string
}

// UpdateRequest holds optional category changes. Nil fields are left as is.
type UpdateRequest struct {
	Name  *string
	Image *string
}

// SubcategoryRequest holds the input for creating a subcategory.
type SubcategoryRequest struct {
	Name        string
	Description string
	Image       string
}

// SubcategoryUpdate holds optional subcategory changes.
type SubcategoryUpdate struct {
	Name        *string
	Description *string
	Image       *string
}

// Service implements category and subcategory administration.
type Service struct {
	repo  Repository
	usage ProductUsage
	blobs blob.Store
	cache Cache
	newID func() string
}

// NewService creates a category Service. cache may be nil.
func NewService(repo Repository, usage ProductUsage, blobs blob.Store, cache Cache) *Service {
	return &Service{
		repo:  repo,
		usage: usage,
		blobs: blobs,
		cache: cache,
		newID: func() string { return uuid.New().String() },
	}
}

// List returns all categories, served from cache when possible.
func (s *Service) List(ctx context.Context) ([]Category, error) {
	if s.cache != nil {
		var cached []Category
		ok, err := s.cache.Get(ctx, ListCacheKey, &cached)
		if err != nil {
			zctx.From(ctx).Warn("Category cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, ListCacheKey, categories, listCacheTTL); err != nil {
			zctx.From(ctx).Warn("Category cache write failed", zap.Error(err))
		}
	}
	return categories, nil
}

// GetBySlug returns a single category by slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	return s.repo.GetBySlug(ctx, slug)
}

// Create adds a new category, uploading its image when given as a data URI.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Category, error) {
	name := strings.TrimSpace(req.Name)
	if !sluggable(name) {
		return nil, ErrNameRequired
	}

	image, err := blob.Resolve(ctx, s.blobs, blob.FolderCategories, req.Image)
	if err != nil {
		return nil, err
	}

	c := &Category{
		ID:            s.newID(),
		Name:          name,
		Slug:          Slugify(name),
		Image:         image,
		Subcategories: []Subcategory{},
	}
	if err := s.repo.Create(ctx, c); err != nil {
		s.discardUpload(ctx, req.Image, image)
		return nil, errors.Wrap(err, "create category")
	}

	s.invalidate(ctx)
	return c, nil
}

// Update renames a category and/or replaces its image. The slug follows the
// name; the previous image is released after the change is stored.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Category, error) {
	var name string
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if !sluggable(name) {
			return nil, ErrNameRequired
		}
	}

	var newImage string
	if req.Image != nil {
		var err error
		newImage, err = blob.Resolve(ctx, s.blobs, blob.FolderCategories, *req.Image)
		if err != nil {
			return nil, err
		}
	}

	var oldImage string
	updated, err := s.repo.Update(ctx, id, func(c *Category) error {
		if req.Name != nil {
			c.Name = name
			c.Slug = Slugify(name)
		}
		if req.Image != nil && newImage != c.Image {
			oldImage = c.Image
			c.Image = newImage
		}
		return nil
	})
	if err != nil {
		if req.Image != nil {
			s.discardUpload(ctx, *req.Image, newImage)
		}
		return nil, errors.Wrap(err, "update category")
	}

	blob.DestroyQuietly(ctx, s.blobs, oldImage)
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes a category that no product references and releases its
// image and the images of its subcategories.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	n, err := s.usage.CountByCategory(ctx, id)
	if err != nil {
		return errors.Wrap(err, "count category products")
	}
	if n > 0 {
		return ErrCategoryInUse
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete category")
	}

	blob.DestroyQuietly(ctx, s.blobs, c.Image)
	for _, sub := range c.Subcategories {
		blob.DestroyQuietly(ctx, s.blobs, sub.Image)
	}
	s.invalidate(ctx)
	return nil
}

// AddSubcategory appends a subcategory to the category identified by catID.
func (s *Service) AddSubcategory(ctx context.Context, catID string, req SubcategoryRequest) (*Subcategory, error) {
	name := strings.TrimSpace(req.Name)
	if !sluggable(name) {
		return nil, ErrNameRequired
	}

	image, err := blob.Resolve(ctx, s.blobs, blob.FolderSubcategories, req.Image)
	if err != nil {
		return nil, err
	}

	sub := Subcategory{
		ID:          s.newID(),
		Name:        name,
		Slug:        Slugify(name),
		Image:       image,
		Description: strings.TrimSpace(req.Description),
	}
	if _, err := s.repo.Update(ctx, catID, func(c *Category) error {
		return c.AddSubcategory(sub)
	}); err != nil {
		s.discardUpload(ctx, req.Image, image)
		return nil, errors.Wrap(err, "add subcategory")
	}

	s.invalidate(ctx)
	return &sub, nil
}

// UpdateSubcategory changes a subcategory in place, keeping its id and position.
func (s *Service) UpdateSubcategory(ctx context.Context, catID, subID string, req SubcategoryUpdate) (*Subcategory, error) {
	var name string
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if !sluggable(name) {
			return nil, ErrNameRequired
		}
	}

	var newImage string
	if req.Image != nil {
		var err error
		newImage, err = blob.Resolve(ctx, s.blobs, blob.FolderSubcategories, *req.Image)
		if err != nil {
			return nil, err
		}
	}

	var (
		oldImage string
		result   Subcategory
	)
	if _, err := s.repo.Update(ctx, catID, func(c *Category) error {
		sub, _ := c.Subcategory(subID)
		if sub == nil {
			return ErrSubcategoryNotFound
		}
		if req.Name != nil {
			if c.hasSubcategoryName(name, subID) {
				return ErrSubcategoryExists
			}
			sub.Name = name
			sub.Slug = Slugify(name)
		}
		if req.Description != nil {
			sub.Description = strings.TrimSpace(*req.Description)
		}
		if req.Image != nil && newImage != sub.Image {
			oldImage = sub.Image
			sub.Image = newImage
		}
		result = *sub
		return nil
	}); err != nil {
		if req.Image != nil {
			s.discardUpload(ctx, *req.Image, newImage)
		}
		return nil, errors.Wrap(err, "update subcategory")
	}

	blob.DestroyQuietly(ctx, s.blobs, oldImage)
	s.invalidate(ctx)
	return &result, nil
}

// DeleteSubcategory removes a subcategory that no product references.
func (s *Service) DeleteSubcategory(ctx context.Context, catID, subID string) error {
	n, err := s.usage.CountBySubcategory(ctx, catID, subID)
	if err != nil {
		return errors.Wrap(err, "count subcategory products")
	}
	if n > 0 {
		return ErrSubcategoryInUse
	}

	var removed Subcategory
	if _, err := s.repo.Update(ctx, catID, func(c *Category) error {
		var err error
		removed, err = c.RemoveSubcategory(subID)
		return err
	}); err != nil {
		return errors.Wrap(err, "delete subcategory")
	}

	blob.DestroyQuietly(ctx, s.blobs, removed.Image)
	s.invalidate(ctx)
	return nil
}

// discardUpload releases an image uploaded for a write that did not happen.
func (s *Service) discardUpload(ctx context.Context, input, stored string) {
	if blob.IsDataURI(input) {
		blob.DestroyQuietly(ctx, s.blobs, stored)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, ListCacheKey); err != nil {
		zctx.From(ctx).Warn("Category cache invalidation failed", zap.Error(err))
	}
}
