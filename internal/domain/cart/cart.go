// Package cart holds each user's pending course selection before checkout.
//
// A user has at most one cart. It is created on first access and emptied, not
// deleted, by checkout. The cart total always equals the sum of the item price
// snapshots; repositories recompute it in the same transaction as every
// mutation.
package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
	"github.com/xenking/academy-commerce/internal/domain/catalog"
)

var (
	// ErrNotFound is returned when a user has no cart yet.
	ErrNotFound = apperr.New(apperr.NotFound, "cart not found")
	// ErrCourseInCart is returned when the course is already in the cart.
	ErrCourseInCart = apperr.New(apperr.Conflict, "course already in cart")
	// ErrCourseUnavailable is returned for courses that cannot be purchased.
	ErrCourseUnavailable = apperr.New(apperr.Validation, "course is not available for purchase")
	// ErrCourseIDRequired is returned when no course id is given.
	ErrCourseIDRequired = apperr.New(apperr.Validation, "course id is required")
)

// Cart is a user's pending selection of courses.
type Cart struct {
	ID        string
	UserID    string
	Total     decimal.Decimal
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is one course in a cart. Price is the snapshot taken when the course
// was added; Course carries the live catalog data for display.
type Item struct {
	ID       string
	CourseID string
	Price    decimal.Decimal
	Course   catalog.Summary
	AddedAt  time.Time
}

// Empty returns an unpersisted empty cart for the user.
func Empty(userID string) *Cart {
	return &Cart{UserID: userID, Total: decimal.Zero, Items: []Item{}}
}

// Repository persists carts. Every mutation recomputes the cart total in the
// same transaction and returns the refreshed cart.
type Repository interface {
	GetOrCreate(ctx context.Context, userID string) (*Cart, error)
	// Find returns ErrNotFound when the user has no cart.
	Find(ctx context.Context, userID string) (*Cart, error)
	// AddItem returns ErrCourseInCart when the course is already present.
	AddItem(ctx context.Context, userID string, course *catalog.Course) (*Cart, error)
	// RemoveItem and Clear return ErrNotFound when the user has no cart.
	RemoveItem(ctx context.Context, userID, courseID string) (*Cart, error)
	Clear(ctx context.Context, userID string) (*Cart, error)
}
