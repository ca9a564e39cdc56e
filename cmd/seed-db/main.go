package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/partstore/storefront/internal/domain/category"
	"github.com/partstore/storefront/internal/domain/product"
	"github.com/partstore/storefront/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		catalogPath string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogPath, "catalog", "db/seed/catalog.json", "path to catalog JSON file (.json or .json.gz)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogPath string) error {
	slog.Info("reading catalog", slog.String("path", catalogPath))

	catalog, err := readCatalog(catalogPath)
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	bySlug, err := seedCategories(ctx, postgres.NewCategoryRepository(pool), catalog.Categories)
	if err != nil {
		return errors.Wrap(err, "seed categories")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), catalog.Products, bySlug); err != nil {
		return errors.Wrap(err, "seed products")
	}

	return nil
}

type categoryStore interface {
	GetBySlug(ctx context.Context, slug string) (*category.Category, error)
	Upsert(ctx context.Context, c *category.Category) error
}

type productStore interface {
	Upsert(ctx context.Context, p *product.Product) error
}

func seedCategories(ctx context.Context, repo categoryStore, in []categoryJSON) (map[string]*category.Category, error) {
	slog.Info("upserting categories", slog.Int("count", len(in)))

	bySlug := make(map[string]*category.Category, len(in))
	for _, entry := range in {
		existing, err := repo.GetBySlug(ctx, category.Slugify(entry.Name))
		if err != nil && !errors.Is(err, category.ErrCategoryNotFound) {
			return nil, errors.Wrapf(err, "look up category %q", entry.Name)
		}

		c, err := buildCategory(entry, existing)
		if err != nil {
			return nil, err
		}
		if err := repo.Upsert(ctx, c); err != nil {
			return nil, errors.Wrapf(err, "upsert category %q", c.Name)
		}
		bySlug[c.Slug] = c

		slog.Info("upserted category",
			slog.String("id", c.ID),
			slog.String("slug", c.Slug),
			slog.Int("subcategories", len(c.Subcategories)),
		)
	}
	return bySlug, nil
}

func seedProducts(ctx context.Context, repo productStore, in []productJSON, bySlug map[string]*category.Category) error {
	slog.Info("upserting products", slog.Int("count", len(in)))

	for _, entry := range in {
		p, err := buildProduct(entry, bySlug)
		if err != nil {
			return err
		}
		if err := repo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %q", p.Name)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}
