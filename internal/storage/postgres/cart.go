package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelys/promo-engine/internal/domain/cart"
)

const (
	getCartSQL = `SELECT id, user_id, items, applied, updated_at
		FROM carts WHERE id = $1`

	putCartSQL = `INSERT INTO carts (id, user_id, items, applied, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			items = EXCLUDED.items,
			applied = EXCLUDED.applied,
			updated_at = EXCLUDED.updated_at`

	deleteCartSQL = `DELETE FROM carts WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Line items
// and the applied-coupon record are stored as JSONB.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the cart with the given ID, or cart.ErrNotFound.
func (r *CartRepository) Get(ctx context.Context, id string) (*cart.Cart, error) {
	var (
		c           cart.Cart
		itemsJSON   []byte
		appliedJSON []byte
	)
	err := r.pool.QueryRow(ctx, getCartSQL, id).Scan(
		&c.ID, &c.UserID, &itemsJSON, &appliedJSON, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("finding cart %q: %w", id, err)
	}

	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling cart %q items: %w", id, err)
	}
	if len(appliedJSON) > 0 {
		c.Applied = &cart.AppliedCoupon{}
		if err := json.Unmarshal(appliedJSON, c.Applied); err != nil {
			return nil, fmt.Errorf("unmarshaling cart %q applied coupon: %w", id, err)
		}
	}
	return &c, nil
}

// Put upserts the cart.
func (r *CartRepository) Put(ctx context.Context, c *cart.Cart) error {
	itemsJSON, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart %q items: %w", c.ID, err)
	}

	var appliedJSON []byte
	if c.Applied != nil {
		appliedJSON, err = json.Marshal(c.Applied)
		if err != nil {
			return fmt.Errorf("marshaling cart %q applied coupon: %w", c.ID, err)
		}
	}

	_, err = r.pool.Exec(ctx, putCartSQL, c.ID, c.UserID, itemsJSON, appliedJSON, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving cart %q: %w", c.ID, err)
	}
	return nil
}

// Delete removes the cart. Deleting a missing cart is a no-op.
func (r *CartRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, deleteCartSQL, id)
	if err != nil {
		return fmt.Errorf("deleting cart %q: %w", id, err)
	}
	return nil
}
