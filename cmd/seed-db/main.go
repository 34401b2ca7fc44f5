// Command seed-db applies the schema and loads demo courses and coupons.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/academy-commerce/internal/domain/coupon"
	"github.com/xenking/academy-commerce/internal/repository"
)

func main() {
	var (
		databaseURL string
		coursesFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&coursesFile, "courses-file", "db/seed/courses.json", "path to courses JSON file")
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

	if err := run(ctx, databaseURL, coursesFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, coursesFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCourses(ctx, repository.NewCourseRepository(pool), coursesFile); err != nil {
		return errors.Wrap(err, "seed courses")
	}

	if err := seedCoupons(ctx, repository.NewCouponRepository(pool), time.Now()); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedCourses(ctx context.Context, repo *repository.CourseRepository, coursesFile string) error {
	slog.Info("reading courses file", slog.String("path", coursesFile))

	data, err := os.ReadFile(coursesFile)
	if err != nil {
		return errors.Wrap(err, "read courses file")
	}

	courses, err := parseCourses(data)
	if err != nil {
		return errors.Wrap(err, "parse courses JSON")
	}

	slog.Info("upserting courses", slog.Int("count", len(courses)))

	for i := range courses {
		c := &courses[i]
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert course %s", c.ID)
		}

		slog.Info("upserted course",
			slog.String("id", c.ID),
			slog.String("title", c.Title),
			slog.Bool("published", c.IsPublished),
		)
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository, now time.Time) error {
	slog.Info("seeding demo coupons")

	for _, c := range demoCoupons(now) {
		if err := repo.Upsert(ctx, &c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("type", string(c.Type)))
	}

	return nil
}

// demoCoupons returns one coupon per rule shape, active for a year from now.
func demoCoupons(now time.Time) []coupon.Coupon {
	one, hundred := 1, 100
	coupons := []coupon.Coupon{
		{
			ID: "coupon-save10", Code: "SAVE10", Type: coupon.DiscountPercentage,
			Value: decimal.NewFromInt(10),
		},
		{
			ID: "coupon-welcome20", Code: "WELCOME20", Type: coupon.DiscountPercentage,
			Value:       decimal.NewFromInt(20),
			MinPurchase: decimal.NewNullDecimal(decimal.NewFromInt(30)),
			MaxDiscount: decimal.NewNullDecimal(decimal.NewFromInt(15)),
			UsageLimit:  &hundred,
		},
		{
			ID: "coupon-flat25", Code: "FLAT25", Type: coupon.DiscountFixed,
			Value: decimal.NewFromInt(25),
		},
		{
			ID: "coupon-firstone", Code: "FIRSTONE", Type: coupon.DiscountPercentage,
			Value:      decimal.NewFromInt(50),
			UsageLimit: &one,
		},
	}
	for i := range coupons {
		coupons[i].ValidFrom = now
		coupons[i].ValidUntil = now.AddDate(1, 0, 0)
		coupons[i].IsActive = true
	}
	return coupons
}
