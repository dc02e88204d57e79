package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Compute calculates the merchandise discount for the coupon against the
// given subtotal. Every DiscountKind must be handled here explicitly; an
// unknown kind is a fault, never a silent zero.
func Compute(c *Coupon, subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch c.Kind {
	case KindPercentage:
		amount := subtotal.Mul(c.Value).Div(hundred)
		if !c.MaxDiscount.IsZero() && amount.GreaterThan(c.MaxDiscount) {
			amount = c.MaxDiscount
		}
		return floorAtZero(amount).Round(2), nil
	case KindFixedAmount:
		// A fixed discount never exceeds the subtotal.
		return floorAtZero(decimal.Min(c.Value, subtotal)).Round(2), nil
	case KindFreeShipping:
		// The merchandise discount is zero; the kind itself tells the
		// checkout flow to waive shipping, with Value as the shipping
		// cost reference.
		return zero, nil
	default:
		return zero, errors.Errorf("unsupported discount kind: %q", c.Kind)
	}
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
