package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/partstore/storefront/internal/domain/category"
	"github.com/partstore/storefront/internal/domain/product"
)

// seedNamespace derives stable ids so re-running the seed updates rows in
// place.
var seedNamespace = uuid.MustParse("6f1c1d4e-3b7a-4c55-9a1e-2d4f0b8c7e10")

type catalogFile struct {
	Categories []categoryJSON `json:"categories"`
	Products   []productJSON  `json:"products"`
}

type categoryJSON struct {
	Name          string            `json:"name"`
	Image         string            `json:"image"`
	Subcategories []subcategoryJSON `json:"subcategories"`
}

type subcategoryJSON struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

type productJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
	Featured    bool            `json:"featured"`
	Image       string          `json:"image"`
}

// readCatalog loads a catalog from a JSON file, transparently decompressing
// files ending in .gz.
func readCatalog(path string) (*catalogFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var src io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(src)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		src = gz
	}
	return decodeCatalog(src)
}

func decodeCatalog(r io.Reader) (*catalogFile, error) {
	var c catalogFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, errors.Wrap(err, "parse catalog JSON")
	}
	return &c, nil
}

// buildCategory converts a catalog entry to a category. existing, when
// non-nil, is the stored category with the same slug; its id and the ids of
// subcategories with matching slugs are kept.
func buildCategory(in categoryJSON, existing *category.Category) (*category.Category, error) {
	slug := category.Slugify(strings.TrimSpace(in.Name))
	if strings.Trim(slug, "-") == "" {
		return nil, category.ErrNameRequired
	}
	c := &category.Category{
		ID:    uuid.NewSHA1(seedNamespace, []byte("category/"+slug)).String(),
		Name:  strings.TrimSpace(in.Name),
		Slug:  slug,
		Image: in.Image,
	}
	known := make(map[string]string)
	if existing != nil {
		c.ID = existing.ID
		for _, s := range existing.Subcategories {
			known[s.Slug] = s.ID
		}
	}

	for _, s := range in.Subcategories {
		sub := category.Subcategory{
			Name:        strings.TrimSpace(s.Name),
			Slug:        category.Slugify(strings.TrimSpace(s.Name)),
			Image:       s.Image,
			Description: s.Description,
		}
		if strings.Trim(sub.Slug, "-") == "" {
			return nil, errors.Wrapf(category.ErrNameRequired, "subcategory of %q", in.Name)
		}
		sub.ID = known[sub.Slug]
		if sub.ID == "" {
			sub.ID = uuid.NewSHA1(seedNamespace, []byte("subcategory/"+slug+"/"+sub.Slug)).String()
		}
		if err := c.AddSubcategory(sub); err != nil {
			return nil, errors.Wrapf(err, "category %q", in.Name)
		}
	}
	return c, nil
}

// buildProduct resolves a product's category and subcategory slugs against
// the seeded categories.
func buildProduct(in productJSON, bySlug map[string]*category.Category) (*product.Product, error) {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return nil, product.ErrNameRequired
	case in.Price.IsNegative():
		return nil, product.ErrInvalidPrice
	case in.Stock < 0:
		return nil, product.ErrInvalidStock
	case in.Image == "":
		return nil, product.ErrImageRequired
	}

	cat, ok := bySlug[in.Category]
	if !ok {
		return nil, errors.Wrapf(category.ErrCategoryNotFound, "product %q: category %q", in.Name, in.Category)
	}
	p := &product.Product{
		ID:          uuid.NewSHA1(seedNamespace, []byte("product/"+cat.Slug+"/"+strings.ToLower(in.Name))).String(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		CategoryID:  cat.ID,
		IsFeatured:  in.Featured,
		Image:       in.Image,
	}
	if in.Subcategory != "" {
		sub := cat.SubcategoryBySlug(in.Subcategory)
		if sub == nil {
			return nil, errors.Wrapf(category.ErrSubcategoryNotFound, "product %q: subcategory %q", in.Name, in.Subcategory)
		}
		p.SubcategoryID = sub.ID
	}
	return p, nil
}
