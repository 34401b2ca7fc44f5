package cart

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/academy-commerce/internal/domain/catalog"
	"github.com/xenking/academy-commerce/internal/domain/enrollment"
)

// EnrollmentChecker reports whether a user already owns a course.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
}

// Service implements the cart operations exposed to users.
type Service struct {
	courses     catalog.Repository
	enrollments EnrollmentChecker
	carts       Repository
}

// NewService creates a cart Service.
func NewService(courses catalog.Repository, enrollments EnrollmentChecker, carts Repository) *Service {
	return &Service{
		courses:     courses,
		enrollments: enrollments,
		carts:       carts,
	}
}

// Get returns the user's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem adds a published course the user does not own yet.
func (s *Service) AddItem(ctx context.Context, userID, courseID string) (*Cart, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, ErrCourseIDRequired
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrap(err, "get course")
	}
	if !course.IsPublished {
		return nil, ErrCourseUnavailable
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "check enrollment")
	}
	if enrolled {
		return nil, enrollment.ErrAlreadyEnrolled
	}

	c, err := s.carts.AddItem(ctx, userID, course)
	if err != nil {
		if errors.Is(err, ErrCourseInCart) {
			return nil, ErrCourseInCart
		}
		return nil, errors.Wrap(err, "add cart item")
	}
	return c, nil
}

// RemoveItem removes a course from the cart. Removing an absent course is not
// an error.
func (s *Service) RemoveItem(ctx context.Context, userID, courseID string) (*Cart, error) {
	c, err := s.carts.RemoveItem(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Empty(userID), nil
		}
		return nil, errors.Wrap(err, "remove cart item")
	}
	return c, nil
}

// Clear removes every item from the cart.
func (s *Service) Clear(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Clear(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Empty(userID), nil
		}
		return nil, errors.Wrap(err, "clear cart")
	}
	return c, nil
}
