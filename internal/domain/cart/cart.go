package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/avelys/promo-engine/internal/domain/coupon"
)

// ErrNotFound is returned when a requested cart does not exist.
var ErrNotFound = errors.New("cart not found")

// LineItem is a snapshot of a product placed in a cart. Prices are copied
// from the catalog at the time the line is added.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	// SalePrice is the discounted unit price when the product was on
	// sale; zero otherwise.
	SalePrice decimal.Decimal `json:"sale_price"`
	Quantity  int             `json:"quantity"`
}

// EffectivePrice returns the unit price this line pays.
func (li LineItem) EffectivePrice() decimal.Decimal {
	if !li.SalePrice.IsZero() {
		return li.SalePrice
	}
	return li.UnitPrice
}

// AppliedCoupon caches the last successful evaluation of a coupon against
// this cart. It is provisional: checkout re-validates it against current
// coupon and cart state rather than trusting the cached amounts.
type AppliedCoupon struct {
	Code           string              `json:"code"`
	Kind           coupon.DiscountKind `json:"kind"`
	Value          decimal.Decimal     `json:"value"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
}

// Cart is a customer's open cart.
type Cart struct {
	ID      string
	UserID  string
	Items   []LineItem
	Applied *AppliedCoupon

	UpdatedAt time.Time
}

// Subtotal sums line prices times quantities, using each line's discounted
// unit price when present.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range c.Items {
		sum = sum.Add(li.EffectivePrice().Mul(decimal.NewFromInt(int64(li.Quantity))))
	}
	return sum
}

// Context builds the evaluation context the discount engine consumes.
func (c *Cart) Context() coupon.CartContext {
	items := make([]coupon.CartItem, len(c.Items))
	for i, li := range c.Items {
		items[i] = coupon.CartItem{ProductID: li.ProductID, Category: li.Category}
	}
	return coupon.CartContext{
		Subtotal: c.Subtotal(),
		UserID:   c.UserID,
		Items:    items,
	}
}

// Repository defines persistence operations for carts.
type Repository interface {
	Get(ctx context.Context, id string) (*Cart, error)
	Put(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, id string) error
}
