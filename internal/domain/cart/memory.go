package cart

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-faster/errors"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps carts in process memory keyed by session ID. Carts are
// stored as their JSON serialization so the store behaves like the external
// session transport it stands in for: callers always get an independent copy.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

// NewMemoryStore returns an empty in-memory cart store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]byte)}
}

// Get returns the cart for the session, or a fresh empty cart when the
// session has none.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (Cart, error) {
	s.mu.RLock()
	raw, ok := s.carts[sessionID]
	s.mu.RUnlock()

	if !ok {
		return New(), nil
	}

	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cart{}, errors.Wrap(err, "decode cart")
	}
	if c.Lines == nil {
		c.Lines = make(map[string]Line)
	}
	return c, nil
}

// Set stores the cart for the session, replacing any previous contents.
func (s *MemoryStore) Set(_ context.Context, sessionID string, c Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}

	s.mu.Lock()
	s.carts[sessionID] = raw
	s.mu.Unlock()
	return nil
}

// Clear removes the session's cart.
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.carts, sessionID)
	s.mu.Unlock()
	return nil
}
