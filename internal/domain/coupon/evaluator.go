package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Evaluator checks a coupon code against a subtotal and computes the discount.
// Evaluation is read-only: redemption happens inside the checkout transaction.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given Repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Evaluate runs the eligibility checks in a fixed order (lookup, validity
// window, usage ceiling, purchase floor) and returns the discount.
func (e *Evaluator) Evaluate(ctx context.Context, code string, subtotal decimal.Decimal) (*Evaluation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeRequired
	}
	if subtotal.IsNegative() {
		return nil, ErrNegativeSubtotal
	}

	c, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if !c.IsActive {
		return nil, ErrNotFound
	}

	now := e.now()
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return nil, ErrNotFound
	}

	if c.Exhausted() {
		return nil, ErrExhausted
	}

	if c.MinPurchase.Valid && subtotal.LessThan(c.MinPurchase.Decimal) {
		return nil, &MinPurchaseError{Min: c.MinPurchase.Decimal}
	}

	discount, err := Apply(c, subtotal)
	if err != nil {
		return nil, err
	}

	return &Evaluation{Coupon: c, Discount: discount}, nil
}
