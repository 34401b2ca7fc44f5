package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
)

// Status is the lifecycle state of an order. Orders are created directly in
// StatusCompleted and never change afterwards.
type Status string

// StatusCompleted marks a paid order whose enrollments are active.
const StatusCompleted Status = "completed"

// ErrNotFound is returned when an order does not exist or belongs to another user.
var ErrNotFound = apperr.New(apperr.NotFound, "order not found")

// Order is an immutable record of a completed purchase.
type Order struct {
	ID          string
	OrderNumber string
	UserID      string
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	Status      Status
	// CouponID is nil when no coupon was redeemed.
	CouponID  *string
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is the snapshot of one purchased course.
type Item struct {
	ID       string
	OrderID  string
	CourseID string
	Title    string
	Price    decimal.Decimal
}

// Repository defines read operations for orders. Orders are written only by
// the checkout transaction.
type Repository interface {
	// ListForUser returns one page of the user's orders, newest first, with
	// items, plus the total number of orders the user has.
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]Order, int, error)
	// GetByNumber returns ErrNotFound for unknown numbers and for orders of
	// other users.
	GetByNumber(ctx context.Context, userID, number string) (*Order, error)
}
