// Command coupon-import loads coupon rules from gzip CSV feeds.
//
// Feeds are processed in argument order. When a code occurs more than once
// across the feed set, the first occurrence is imported and the rest are
// reported as duplicates.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/academy-commerce/internal/domain/coupon"
	"github.com/xenking/academy-commerce/internal/repository"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
)

// CouponWriter persists imported coupons.
type CouponWriter interface {
	Upsert(ctx context.Context, c *coupon.Coupon) error
}

// stats summarizes an import run.
type stats struct {
	imported   int
	duplicates int
	rejected   int
}

func main() {
	var (
		dataDir     string
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data/coupons", "directory scanned for *.csv.gz feeds when no files are given")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "validate feeds without writing to the database")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
		if err != nil {
			slog.Error("list feeds", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slices.Sort(matches)
		files = matches
	}
	if len(files) == 0 {
		slog.Error("no coupon feeds found", slog.String("data_dir", dataDir))
		os.Exit(1)
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL, dryRun); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string, dryRun bool) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("scanning feeds for duplicate codes", slog.Int("files", len(files)))

	dups, err := findDuplicates(ctx, files, bloomCapacity, bloomFPR)
	if err != nil {
		return errors.Wrap(err, "find duplicates")
	}

	var w CouponWriter = discardWriter{}
	if !dryRun {
		slog.Info("connecting to database")

		pool, err := repository.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		w = repository.NewCouponRepository(pool)
	}

	st, err := importFeeds(ctx, files, dups, w)
	if err != nil {
		return errors.Wrap(err, "import feeds")
	}

	slog.Info("import summary",
		slog.Int("imported", st.imported),
		slog.Int("duplicates", st.duplicates),
		slog.Int("rejected", st.rejected),
		slog.Bool("dry_run", dryRun),
	)
	return nil
}

// importFeeds writes every valid, non-duplicate record in feed order.
// Invalid records are logged and skipped.
func importFeeds(ctx context.Context, files []string, dups map[position]string, w CouponWriter) (stats, error) {
	var st stats
	for i, path := range files {
		err := scanFeed(ctx, path, func(line int, rec []string) error {
			if code, ok := dups[position{file: i, line: line}]; ok {
				st.duplicates++
				slog.Warn("duplicate coupon code skipped",
					slog.String("file", path),
					slog.Int("line", line),
					slog.String("code", code),
				)
				return nil
			}

			c, err := parseRecord(rec)
			if err != nil {
				st.rejected++
				slog.Warn("invalid coupon record",
					slog.String("file", path),
					slog.Int("line", line),
					slog.String("error", err.Error()),
				)
				return nil
			}

			if err := w.Upsert(ctx, c); err != nil {
				return errors.Wrapf(err, "%s:%d", path, line)
			}
			st.imported++
			return nil
		})
		if err != nil {
			return st, err
		}
	}
	return st, nil
}

type discardWriter struct{}

func (discardWriter) Upsert(context.Context, *coupon.Coupon) error { return nil }
