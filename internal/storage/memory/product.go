package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/avelys/promo-engine/internal/domain/product"
)

// ProductStore is an in-memory product.Repository.
type ProductStore struct {
	mu       sync.RWMutex
	products map[string]product.Product
}

var _ product.Repository = (*ProductStore)(nil)

// NewProductStore creates a ProductStore seeded with the given products.
func NewProductStore(products ...product.Product) *ProductStore {
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &ProductStore{products: byID}
}

// Put inserts or replaces a product.
func (s *ProductStore) Put(_ context.Context, p product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = p
	return nil
}

// List returns all products ordered by ID.
func (s *ProductStore) List(_ context.Context) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetByID returns a single product.
func (s *ProductStore) GetByID(_ context.Context, id string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// GetByIDs returns the products matching the given IDs. Missing IDs are
// simply absent from the result; callers decide whether that is an error.
func (s *ProductStore) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]product.Product, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
