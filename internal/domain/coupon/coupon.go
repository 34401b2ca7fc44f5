package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the subtotal, optionally capped.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount, never more than the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// Valid reports whether t is a supported discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var (
	// ErrNotFound is returned for unknown, inactive, not yet valid and expired
	// coupons alike.
	ErrNotFound = apperr.New(apperr.NotFound, "coupon not valid or expired")
	// ErrExhausted is returned when a coupon has no redemptions left.
	ErrExhausted = apperr.New(apperr.Validation, "coupon exhausted")
	// ErrCodeRequired is returned for an empty coupon code.
	ErrCodeRequired = apperr.New(apperr.Validation, "coupon code is required")
	// ErrNegativeSubtotal is returned when a coupon is evaluated against a
	// negative amount.
	ErrNegativeSubtotal = apperr.New(apperr.Validation, "subtotal must not be negative")
)

// MinPurchaseError indicates the subtotal is below the coupon's purchase floor.
type MinPurchaseError struct {
	Min decimal.Decimal
}

func (e *MinPurchaseError) Error() string {
	return fmt.Sprintf("order total must be at least $%s to use this coupon", e.Min.StringFixed(2))
}

// Kind implements the apperr kind contract.
func (e *MinPurchaseError) Kind() apperr.Kind { return apperr.Validation }

// Coupon is a discount code with its eligibility window and usage ceiling.
type Coupon struct {
	ID          string
	Code        string
	Type        DiscountType
	Value       decimal.Decimal
	MinPurchase decimal.NullDecimal
	MaxDiscount decimal.NullDecimal
	ValidFrom   time.Time
	ValidUntil  time.Time
	// UsageLimit is nil for unlimited coupons.
	UsageLimit *int
	UsedCount  int
	IsActive   bool
}

// Exhausted reports whether the coupon has reached its usage ceiling.
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}

// Evaluation is the outcome of a successful coupon check.
type Evaluation struct {
	Coupon   *Coupon
	Discount decimal.Decimal
}

// Repository provides coupon lookup by code. Lookups are case-insensitive and
// return ErrNotFound when no coupon matches.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}
