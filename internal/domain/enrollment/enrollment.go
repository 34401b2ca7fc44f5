// Package enrollment grants and checks course access. Enrollments are created
// by checkout; this package owns the access rules around them.
package enrollment

import (
	"context"
	"time"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
	"github.com/xenking/academy-commerce/internal/domain/catalog"
)

var (
	// ErrAlreadyEnrolled is returned when a user already has access to a course.
	ErrAlreadyEnrolled = apperr.New(apperr.Conflict, "already enrolled in this course")
	// ErrNotEnrolled is returned when a user requests content of a course they
	// do not own.
	ErrNotEnrolled = apperr.New(apperr.Forbidden, "not enrolled in this course")
)

// Enrollment grants a user access to a course.
type Enrollment struct {
	ID       string
	UserID   string
	CourseID string
	// OrderID links the enrollment to the purchase that created it. Nil for
	// enrollments granted outside checkout.
	OrderID           *string
	Progress          int
	CertificateIssued bool
	CompletedAt       *time.Time
	EnrolledAt        time.Time
	Course            catalog.Summary
}

// Repository defines read operations for enrollments. Creation happens inside
// the checkout transaction and is not part of this interface.
type Repository interface {
	Exists(ctx context.Context, userID, courseID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]Enrollment, error)
	ListByOrder(ctx context.Context, orderID string) ([]Enrollment, error)
}
