package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avelys/promo-engine/internal/domain/cart"
	"github.com/avelys/promo-engine/internal/domain/coupon"
)

// ErrEmptyCart is returned when checkout is attempted on a cart with no items.
var ErrEmptyCart = errors.New("cart has no items")

// CouponInvalidError signals that the cart's applied coupon failed
// re-validation at checkout. This is an expected race (time passed, budget
// exhausted by concurrent orders), not an order-pipeline fault. The cart is
// left intact, applied coupon included, so the customer can review it.
type CouponInvalidError struct {
	Code      string
	Rejection *coupon.Rejection
}

func (e *CouponInvalidError) Error() string {
	return "coupon " + e.Code + " is no longer valid: " + string(e.Rejection.Reason)
}

// Service finalizes carts into orders. It is the only caller of the engine's
// Commit: usage is consumed exactly once per placed order, never at apply
// time.
type Service struct {
	carts  cart.Repository
	engine CouponEngine
	orders Repository
}

// NewService creates an order Service with the required dependencies.
func NewService(carts cart.Repository, engine CouponEngine, orders Repository) *Service {
	return &Service{
		carts:  carts,
		engine: engine,
		orders: orders,
	}
}

// Checkout finalizes the cart into an order. When a coupon is applied it is
// re-evaluated against the live cart (the cached applied-coupon record is
// never trusted) and committed, and only then is the order persisted and the
// cart deleted.
func (s *Service) Checkout(ctx context.Context, cartID string) (*Order, error) {
	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	subtotal := c.Subtotal()
	discount := decimal.Zero
	couponCode := ""
	freeShipping := false

	if c.Applied != nil {
		eval, err := s.engine.Evaluate(ctx, c.Applied.Code, c.Context())
		if err != nil {
			return nil, s.couponError(c.Applied.Code, err)
		}

		if _, err := s.engine.Commit(ctx, eval.Code, c.UserID); err != nil {
			return nil, s.couponError(eval.Code, err)
		}

		discount = eval.DiscountAmount
		couponCode = eval.Code
		freeShipping = eval.FreeShipping()
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	items := make([]Item, len(c.Items))
	for i, li := range c.Items {
		items[i] = Item{
			ProductID: li.ProductID,
			Name:      li.Name,
			UnitPrice: li.EffectivePrice(),
			Quantity:  li.Quantity,
		}
	}

	o := &Order{
		ID:           uuid.New().String(),
		CartID:       c.ID,
		UserID:       c.UserID,
		Items:        items,
		Subtotal:     subtotal.Round(2),
		Discount:     discount.Round(2),
		Total:        total.Round(2),
		CouponCode:   couponCode,
		FreeShipping: freeShipping,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	if err := s.carts.Delete(ctx, c.ID); err != nil {
		return nil, errors.Wrap(err, "delete cart")
	}

	return o, nil
}

// couponError maps an engine error to CouponInvalidError when it is an
// expected rejection, preserving storage faults as-is.
func (s *Service) couponError(code string, err error) error {
	if rej, ok := coupon.AsRejection(err); ok {
		return &CouponInvalidError{Code: code, Rejection: rej}
	}
	return errors.Wrap(err, "validate coupon")
}
