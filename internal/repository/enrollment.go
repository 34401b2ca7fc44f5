package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/academy-commerce/internal/domain/enrollment"
)

const (
	enrollmentExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)`

	enrollmentColumns = `e.id, e.user_id, e.course_id, e.order_id, e.progress,
		e.certificate_issued, e.completed_at, e.enrolled_at,
		c.id, c.title, c.slug, c.image, c.price`

	listEnrollmentsByUserSQL = `SELECT ` + enrollmentColumns + `
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE e.user_id = $1
		ORDER BY e.enrolled_at DESC, e.id`

	listEnrollmentsByOrderSQL = `SELECT ` + enrollmentColumns + `
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE e.order_id = $1
		ORDER BY e.course_id`

	insertEnrollmentSQL = `INSERT INTO enrollments (id, user_id, course_id, order_id, enrolled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING progress, certificate_issued`

	enrollmentsUniqueConstraint = "enrollments_user_course_key"
)

var _ enrollment.Repository = (*EnrollmentRepository)(nil)

// EnrollmentRepository implements enrollment.Repository backed by PostgreSQL.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository returns an EnrollmentRepository that uses the given pool.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Exists reports whether the user is enrolled in the course.
func (r *EnrollmentRepository) Exists(ctx context.Context, userID, courseID string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, enrollmentExistsSQL, userID, courseID).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking enrollment of %q in %q: %w", userID, courseID, err)
	}
	return ok, nil
}

// ListForUser returns the user's enrollments, newest first.
func (r *EnrollmentRepository) ListForUser(ctx context.Context, userID string) ([]enrollment.Enrollment, error) {
	return r.list(ctx, listEnrollmentsByUserSQL, userID)
}

// ListByOrder returns the enrollments created by the order.
func (r *EnrollmentRepository) ListByOrder(ctx context.Context, orderID string) ([]enrollment.Enrollment, error) {
	return r.list(ctx, listEnrollmentsByOrderSQL, orderID)
}

func (r *EnrollmentRepository) list(ctx context.Context, sql, arg string) ([]enrollment.Enrollment, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("listing enrollments: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanEnrollment)
	if err != nil {
		return nil, fmt.Errorf("listing enrollments: %w", err)
	}
	if list == nil {
		list = []enrollment.Enrollment{}
	}
	return list, nil
}

// activateEnrollment creates the enrollment on q, normally a checkout
// transaction. An existing enrollment for the same user and course yields
// enrollment.ErrAlreadyEnrolled.
func activateEnrollment(ctx context.Context, q querier, e *enrollment.Enrollment) error {
	err := q.QueryRow(ctx, insertEnrollmentSQL,
		e.ID, e.UserID, e.CourseID, e.OrderID, e.EnrolledAt,
	).Scan(&e.Progress, &e.CertificateIssued)
	if err != nil {
		if isUniqueViolation(err, enrollmentsUniqueConstraint) {
			return enrollment.ErrAlreadyEnrolled
		}
		return fmt.Errorf("creating enrollment of %q in %q: %w", e.UserID, e.CourseID, err)
	}
	return nil
}

func scanEnrollment(row pgx.CollectableRow) (enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	err := row.Scan(
		&e.ID, &e.UserID, &e.CourseID, &e.OrderID, &e.Progress,
		&e.CertificateIssued, &e.CompletedAt, &e.EnrolledAt,
		&e.Course.ID, &e.Course.Title, &e.Course.Slug, &e.Course.Image, &e.Course.Price,
	)
	return e, err
}
