package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID       string
	Name     string
	Category string
	Price    decimal.Decimal
	// SalePrice is the discounted unit price while the product is on
	// sale; zero when not. Cart subtotals use it when set.
	SalePrice decimal.Decimal
}

// EffectivePrice returns the unit price a cart line pays: the sale price
// when one is set, the list price otherwise.
func (p Product) EffectivePrice() decimal.Decimal {
	if !p.SalePrice.IsZero() {
		return p.SalePrice
	}
	return p.Price
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
