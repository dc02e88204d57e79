package memory

import (
	"context"
	"sync"

	"github.com/avelys/promo-engine/internal/domain/auth"
)

// APIKeyStore is an in-memory auth.Repository.
type APIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*auth.APIKey // keyed by hash
}

var _ auth.Repository = (*APIKeyStore)(nil)

// NewAPIKeyStore creates an APIKeyStore seeded with the given keys.
func NewAPIKeyStore(keys ...auth.APIKey) *APIKeyStore {
	byHash := make(map[string]*auth.APIKey, len(keys))
	for i := range keys {
		byHash[keys[i].KeyHash] = &keys[i]
	}
	return &APIKeyStore{keys: byHash}
}

// FindByHash looks up an API key by its HMAC-SHA256 hash.
func (s *APIKeyStore) FindByHash(_ context.Context, hash string) (*auth.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[hash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *k
	return &clone, nil
}
