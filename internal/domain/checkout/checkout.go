// Package checkout turns a user's cart into a completed order.
//
// The orchestration (cart read, coupon evaluation, pricing) happens outside
// the database transaction. Everything that writes happens in one Store.Commit
// call: the order, its items, the enrollments, the coupon redemption and the
// cart reset either all persist or none do.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
	"github.com/xenking/academy-commerce/internal/domain/cart"
	"github.com/xenking/academy-commerce/internal/domain/coupon"
	"github.com/xenking/academy-commerce/internal/domain/enrollment"
	"github.com/xenking/academy-commerce/internal/domain/order"
)

var (
	// ErrEmptyCart is returned when the user has nothing to buy.
	ErrEmptyCart = apperr.New(apperr.Validation, "cart is empty")
	// ErrCartChanged is returned when the cart was modified between pricing and
	// commit.
	ErrCartChanged = apperr.New(apperr.Conflict, "cart changed during checkout, review it and try again")
	// ErrCheckoutInProgress is returned when another request holds the same
	// idempotency key.
	ErrCheckoutInProgress = apperr.New(apperr.Conflict, "checkout with this idempotency key is already in progress")
	// ErrOrderNumberTaken is returned by a Store when the generated order number
	// collides with an existing order. The service retries with a new number.
	ErrOrderNumberTaken = errors.New("order number already taken")
)

// Request is the input of a checkout.
type Request struct {
	UserID     string
	CouponCode string
	// IdempotencyKey makes retries of the same checkout return the first
	// result instead of failing on an empty cart. Optional.
	IdempotencyKey string
}

// Result is the outcome of a checkout.
type Result struct {
	Order       *order.Order
	Enrollments []enrollment.Enrollment
	// Replayed is true when the result was recalled by idempotency key.
	Replayed bool
}

// Plan is a priced checkout ready to be committed.
type Plan struct {
	OrderID     string
	OrderNumber string
	UserID      string
	CartID      string
	// Items are the cart items the plan was priced from. Commit must fail with
	// ErrCartChanged if the cart no longer holds exactly these items.
	Items    []cart.Item
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	// Coupon is nil when no coupon is redeemed.
	Coupon    *coupon.Coupon
	CreatedAt time.Time
}

// Store commits a Plan atomically.
//
// Commit returns ErrCartChanged, ErrOrderNumberTaken,
// enrollment.ErrAlreadyEnrolled or coupon.ErrExhausted when the corresponding
// guard fails. Any error leaves the database unchanged.
type Store interface {
	Commit(ctx context.Context, plan *Plan) (*Result, error)
}

// CartReader loads the cart being checked out.
type CartReader interface {
	Find(ctx context.Context, userID string) (*cart.Cart, error)
}

// CouponEvaluator prices a coupon against a subtotal.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, code string, subtotal decimal.Decimal) (*coupon.Evaluation, error)
}

// OrderReader loads a committed order for idempotent replay.
type OrderReader interface {
	GetByNumber(ctx context.Context, userID, number string) (*order.Order, error)
}

// EnrollmentReader loads the enrollments of a committed order.
type EnrollmentReader interface {
	ListByOrder(ctx context.Context, orderID string) ([]enrollment.Enrollment, error)
}

// IdempotencyStore remembers which order an idempotency key produced.
type IdempotencyStore interface {
	// Acquire reserves the key. It returns false when the key is held.
	Acquire(ctx context.Context, scope, key string) (bool, error)
	// Release drops a reservation after a failed checkout.
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, orderNumber string) error
	// Recall returns the order number remembered for the key, if any.
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type nopIdempotency struct{}

func (nopIdempotency) Acquire(context.Context, string, string) (bool, error) {
	return true, nil
}

func (nopIdempotency) Release(context.Context, string, string) error {
	return nil
}

func (nopIdempotency) Remember(context.Context, string, string, string) error {
	return nil
}

func (nopIdempotency) Recall(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}
