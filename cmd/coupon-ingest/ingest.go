package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/partstore/storefront/internal/domain/coupon"
)

const (
	bloomCapacity = 5_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	maxFeeds      = bits.UintSize
)

// row is one parsed feed line.
type row struct {
	Code      string
	UserID    string
	Percent   int
	ExpiresAt time.Time
}

// feed holds the rows of one file and the codes that tested positive against
// another feed's bloom filter, each with the bitmask of files it was seen in.
type feed struct {
	rows       []row
	candidates map[string]uint
}

type resolveStats struct {
	Rows       int
	Duplicates int
	Expired    int
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count int
			err := streamFeed(ctx, path, func(r row) {
				filter.AddString(r.Code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Int("rows", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Int("rows", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// scanFeeds parses every file and records codes that may also appear in a
// different feed.
func scanFeeds(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]feed, error) {
	feeds := make([]feed, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f := feed{candidates: make(map[string]uint)}
			fileBit := uint(1) << uint(i)
			err := streamFeed(ctx, path, func(r row) {
				f.rows = append(f.rows, r)
				for j, other := range filters {
					if j != i && other.TestString(r.Code) {
						f.candidates[r.Code] |= fileBit
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			slog.Info("pass 2 complete",
				slog.Int("file", i+1),
				slog.Int("rows", len(f.rows)),
				slog.Int("candidates", len(f.candidates)),
			)
			feeds[i] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return feeds, nil
}

// resolve drops duplicate codes and picks one coupon per user. A code found
// in several feeds is kept only in the first of them. Among a user's
// remaining unexpired rows the one expiring last wins.
func resolve(feeds []feed, now time.Time) ([]coupon.Coupon, resolveStats) {
	// Bloom positives are confirmed against the exact set of candidate masks.
	merged := make(map[string]uint)
	for _, f := range feeds {
		for code, mask := range f.candidates {
			merged[code] |= mask
		}
	}

	var stats resolveStats
	best := make(map[string]row)
	for i, f := range feeds {
		for _, r := range f.rows {
			stats.Rows++
			if mask := merged[r.Code]; bits.OnesCount(mask) >= 2 && bits.TrailingZeros(mask) != i {
				stats.Duplicates++
				continue
			}
			if !r.ExpiresAt.After(now) {
				stats.Expired++
				continue
			}
			if cur, ok := best[r.UserID]; !ok || r.ExpiresAt.After(cur.ExpiresAt) {
				best[r.UserID] = r
			}
		}
	}

	coupons := make([]coupon.Coupon, 0, len(best))
	for _, r := range best {
		coupons = append(coupons, coupon.Coupon{
			Code:               r.Code,
			UserID:             r.UserID,
			DiscountPercentage: r.Percent,
			ExpirationDate:     r.ExpiresAt,
			IsActive:           true,
		})
	}
	sort.Slice(coupons, func(i, j int) bool { return coupons[i].UserID < coupons[j].UserID })
	return coupons, stats
}

// streamFeed opens a gzip-compressed CSV feed and calls fn for each valid
// row. Malformed rows are logged and skipped; a header line is tolerated.
func streamFeed(ctx context.Context, path string, fn func(r row)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	return readRows(ctx, gz, func(line int, rec []string) {
		r, err := parseRow(rec)
		if err != nil {
			if line > 1 {
				slog.Warn("skipping row", slog.String("file", path), slog.Int("line", line), slog.String("error", err.Error()))
			}
			return
		}
		fn(r)
	})
}

func readRows(ctx context.Context, src io.Reader, fn func(line int, rec []string)) error {
	cr := csv.NewReader(bufio.NewReader(src))
	cr.FieldsPerRecord = 4
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrFieldCount) {
			slog.Warn("skipping row", slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "read line %d", line)
		}
		fn(line, rec)
	}
}

func parseRow(rec []string) (row, error) {
	code := strings.ToUpper(strings.TrimSpace(rec[0]))
	userID := strings.TrimSpace(rec[1])
	if code == "" || userID == "" {
		return row{}, errors.New("code and user id are required")
	}
	percent, err := strconv.Atoi(strings.TrimSpace(rec[2]))
	if err != nil {
		return row{}, errors.Wrap(err, "parse percent")
	}
	if percent <= 0 || percent > 100 {
		return row{}, errors.Errorf("percent %d out of range", percent)
	}
	expires, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[3]))
	if err != nil {
		return row{}, errors.Wrap(err, "parse expires_at")
	}
	return row{Code: code, UserID: userID, Percent: percent, ExpiresAt: expires}, nil
}

// couponWriter is the subset of the coupon repository the ingest writes to.
type couponWriter interface {
	ReplaceForUser(ctx context.Context, c *coupon.Coupon) error
}

// writeCoupons replaces each user's coupon with the resolved one.
func writeCoupons(ctx context.Context, repo couponWriter, coupons []coupon.Coupon) error {
	slog.Info("writing coupons to database", slog.Int("count", len(coupons)))

	for i := range coupons {
		if err := repo.ReplaceForUser(ctx, &coupons[i]); err != nil {
			return errors.Wrapf(err, "replace coupon for %s", coupons[i].UserID)
		}
		if (i+1)%100 == 0 || i+1 == len(coupons) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(coupons)))
		}
	}
	return nil
}
