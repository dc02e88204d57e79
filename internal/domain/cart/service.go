package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avelys/promo-engine/internal/domain/coupon"
	"github.com/avelys/promo-engine/internal/domain/product"
)

// Sentinel errors for cart item updates.
var (
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrNoCoupon        = errors.New("no coupon applied to cart")
)

// ItemRequest is a requested cart line: product identity plus quantity.
// Prices and categories are resolved from the catalog.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// Totals summarizes a cart's pricing after coupon application.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Service owns cart state and the apply/remove half of the coupon flow.
// Applying a coupon evaluates it and caches the result on the cart; it
// never consumes usage. That happens once, at checkout.
type Service struct {
	carts     Repository
	products  product.Repository
	evaluator coupon.Evaluator
}

// NewService creates a cart Service with the required dependencies.
func NewService(carts Repository, products product.Repository, evaluator coupon.Evaluator) *Service {
	return &Service{
		carts:     carts,
		products:  products,
		evaluator: evaluator,
	}
}

// Get returns a cart by ID.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	return s.carts.Get(ctx, id)
}

// SetItems replaces the cart's line items, resolving prices and categories
// from the catalog in a single batch. A missing cart is created; an existing
// applied coupon is kept on the cart and re-validated at checkout.
func (s *Service) SetItems(ctx context.Context, cartID, userID string, items []ItemRequest) (*Cart, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		ids[i] = it.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]LineItem, len(items))
	for i, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, errors.Wrapf(product.ErrNotFound, "product %s", it.ProductID)
		}
		lines[i] = LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			UnitPrice: p.Price,
			SalePrice: p.SalePrice,
			Quantity:  it.Quantity,
		}
	}

	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(err, "get cart")
		}
		if cartID == "" {
			cartID = uuid.New().String()
		}
		c = &Cart{ID: cartID, UserID: userID}
	}

	c.Items = lines
	if userID != "" {
		c.UserID = userID
	}
	c.UpdatedAt = time.Now().UTC()

	if err := s.carts.Put(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// ValidateCoupon evaluates a code against the cart without touching cart or
// coupon state. Read-only; safe to call on every cart render.
func (s *Service) ValidateCoupon(ctx context.Context, cartID, code string) (*coupon.Evaluation, error) {
	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return s.evaluator.Evaluate(ctx, code, c.Context())
}

// ApplyCoupon evaluates the code and, on success, stores the applied-coupon
// record on the cart. Usage is not consumed here: an applied cart can still
// be abandoned.
func (s *Service) ApplyCoupon(ctx context.Context, cartID, code string) (*Cart, *coupon.Evaluation, error) {
	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get cart")
	}

	eval, err := s.evaluator.Evaluate(ctx, code, c.Context())
	if err != nil {
		return nil, nil, err
	}

	c.Applied = &AppliedCoupon{
		Code:           eval.Code,
		Kind:           eval.Kind,
		Value:          eval.Value,
		DiscountAmount: eval.DiscountAmount,
	}
	c.UpdatedAt = time.Now().UTC()

	if err := s.carts.Put(ctx, c); err != nil {
		return nil, nil, errors.Wrap(err, "save cart")
	}
	return c, eval, nil
}

// RemoveCoupon clears the cart's applied-coupon record. The engine is not
// involved: nothing was committed.
func (s *Service) RemoveCoupon(ctx context.Context, cartID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if c.Applied == nil {
		return nil, ErrNoCoupon
	}

	c.Applied = nil
	c.UpdatedAt = time.Now().UTC()

	if err := s.carts.Put(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// TotalsFor computes the cart's totals using the given discount amount.
func TotalsFor(c *Cart, discount decimal.Decimal) Totals {
	subtotal := c.Subtotal()
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Totals{
		Subtotal: subtotal.Round(2),
		Discount: discount.Round(2),
		Total:    total.Round(2),
	}
}
