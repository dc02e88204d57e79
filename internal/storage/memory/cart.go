package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/avelys/promo-engine/internal/domain/cart"
)

// CartStore is an in-memory cart.Repository.
type CartStore struct {
	mu    sync.RWMutex
	carts map[string]*cart.Cart
}

var _ cart.Repository = (*CartStore)(nil)

// NewCartStore creates an empty CartStore.
func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string]*cart.Cart)}
}

// Get returns a copy of the cart.
func (s *CartStore) Get(_ context.Context, id string) (*cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return cloneCart(c), nil
}

// Put stores the cart, replacing any existing record.
func (s *CartStore) Put(_ context.Context, c *cart.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[c.ID] = cloneCart(c)
	return nil
}

// Delete removes the cart. Deleting a missing cart is a no-op.
func (s *CartStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, id)
	return nil
}

func cloneCart(c *cart.Cart) *cart.Cart {
	clone := *c
	clone.Items = slices.Clone(c.Items)
	if c.Applied != nil {
		applied := *c.Applied
		clone.Applied = &applied
	}
	return &clone
}
