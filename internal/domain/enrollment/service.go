package enrollment

import (
	"context"

	"github.com/go-faster/errors"
)

// Service answers access questions about enrollments.
type Service struct {
	repo Repository
}

// NewService creates an enrollment Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// IsEnrolled reports whether the user has access to the course.
func (s *Service) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	ok, err := s.repo.Exists(ctx, userID, courseID)
	if err != nil {
		return false, errors.Wrap(err, "check enrollment")
	}
	return ok, nil
}

// CheckAccess returns ErrNotEnrolled unless the user is enrolled in the course.
func (s *Service) CheckAccess(ctx context.Context, userID, courseID string) error {
	ok, err := s.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotEnrolled
	}
	return nil
}

// ListForUser returns the user's enrollments, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Enrollment, error) {
	list, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list enrollments")
	}
	return list, nil
}

// ListByOrder returns the enrollments created by an order.
func (s *Service) ListByOrder(ctx context.Context, orderID string) ([]Enrollment, error) {
	list, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "list order enrollments")
	}
	return list, nil
}
