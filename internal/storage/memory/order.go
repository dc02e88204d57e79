package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/avelys/promo-engine/internal/domain/order"
)

// ErrOrderNotFound is returned when a requested order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// OrderStore is an in-memory order.Repository.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*order.Order
}

var _ order.Repository = (*OrderStore)(nil)

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*order.Order)}
}

// Create persists a new order.
func (s *OrderStore) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *o
	clone.Items = slices.Clone(o.Items)
	s.orders[o.ID] = &clone
	return nil
}

// GetByID returns a copy of the order.
func (s *OrderStore) GetByID(_ context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	clone := *o
	clone.Items = slices.Clone(o.Items)
	return &clone, nil
}
