package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"

	"github.com/partstore/storefront/internal/storage/postgres"
)

func main() {
	var (
		pattern     string
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&pattern, "files", "data/coupons*.csv.gz", "glob matching gzip-compressed coupon CSV feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "resolve coupons without writing them")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, pattern, databaseURL, dryRun); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, pattern, databaseURL string, dryRun bool) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "match feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no feed files match %q", pattern)
	}
	if len(files) > maxFeeds {
		return errors.Errorf("at most %d feeds are supported, got %d", maxFeeds, len(files))
	}

	// Pass 1: build one bloom filter per feed, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: parse rows and flag codes that may appear in other feeds.
	slog.Info("pass 2: resolving coupons")

	feeds, err := scanFeeds(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "scan feeds")
	}

	coupons, stats := resolve(feeds, time.Now())
	slog.Info("coupons resolved",
		slog.Int("rows", stats.Rows),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("expired", stats.Expired),
		slog.Int("users", len(coupons)),
	)

	if dryRun || len(coupons) == 0 {
		slog.Info("nothing to write", slog.Bool("dry_run", dryRun))
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, postgres.NewCouponRepository(pool), coupons); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}
