package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/academy-commerce/internal/domain/catalog"
)

const (
	getCourseByIDSQL = `SELECT id, title, slug, image, price, is_published
		FROM courses WHERE id = $1`

	upsertCourseSQL = `INSERT INTO courses (id, title, slug, image, price, is_published)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			slug = EXCLUDED.slug,
			image = EXCLUDED.image,
			price = EXCLUDED.price,
			is_published = EXCLUDED.is_published,
			updated_at = NOW()`
)

var _ catalog.Repository = (*CourseRepository)(nil)

// CourseRepository implements catalog.Repository backed by PostgreSQL.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository returns a CourseRepository that uses the given pool.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// GetByID returns a single course by its identifier.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*catalog.Course, error) {
	rows, err := r.pool.Query(ctx, getCourseByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting course %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCourse)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting course %q: %w", id, err)
	}
	return &c, nil
}

// Upsert inserts or replaces a course. Used by seeding tools.
func (r *CourseRepository) Upsert(ctx context.Context, c *catalog.Course) error {
	_, err := r.pool.Exec(ctx, upsertCourseSQL,
		c.ID, c.Title, c.Slug, c.Image, c.Price, c.IsPublished,
	)
	if err != nil {
		return fmt.Errorf("upserting course %q: %w", c.ID, err)
	}
	return nil
}

func scanCourse(row pgx.CollectableRow) (catalog.Course, error) {
	var c catalog.Course
	err := row.Scan(&c.ID, &c.Title, &c.Slug, &c.Image, &c.Price, &c.IsPublished)
	return c, err
}
