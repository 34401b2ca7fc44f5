// Package catalog is the read-only view of the course catalog that the
// commerce core depends on. Catalog management lives elsewhere.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
)

// ErrNotFound is returned when a requested course does not exist.
var ErrNotFound = apperr.New(apperr.NotFound, "course not found")

// Course represents a catalog course available for purchase.
type Course struct {
	ID          string
	Title       string
	Slug        string
	Image       string
	Price       decimal.Decimal
	IsPublished bool
}

// Summary is the subset of course fields embedded in carts, orders and
// enrollments.
type Summary struct {
	ID    string
	Title string
	Slug  string
	Image string
	Price decimal.Decimal
}

// Repository defines read operations for the course catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Course, error)
}
