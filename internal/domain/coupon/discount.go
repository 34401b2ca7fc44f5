package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply calculates the discount the coupon grants on subtotal. The result is
// rounded to cents and lies between zero and subtotal.
func Apply(c *Coupon, subtotal decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch c.Type {
	case DiscountPercentage:
		amount = subtotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.Valid {
			amount = decimal.Min(amount, c.MaxDiscount.Decimal)
		}
	case DiscountFixed:
		amount = decimal.Min(c.Value, subtotal)
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", c.Type)
	}

	amount = decimal.Min(floorAtZero(amount), floorAtZero(subtotal))
	return amount.Round(2), nil
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
