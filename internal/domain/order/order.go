package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avelys/promo-engine/internal/domain/coupon"
)

// Order is a finalized purchase with pricing and discount details.
type Order struct {
	ID     string
	CartID string
	UserID string
	Items  []Item

	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal

	// CouponCode is the committed coupon, empty when none was applied.
	CouponCode string
	// FreeShipping is set when the committed coupon waives shipping.
	FreeShipping bool

	CreatedAt time.Time
}

// Item is a single order line.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
}

// CouponEngine is the slice of the discount engine checkout depends on.
type CouponEngine interface {
	coupon.Evaluator
	coupon.Committer
}
