// Package store provides StateStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/transitkit/basket-engine/basket"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	baskets map[basket.BasketID]basket.State
}

func NewMemory() *Memory {
	return &Memory{baskets: make(map[basket.BasketID]basket.State)}
}

// Load returns the snapshot for a basket id. Unknown ids load as an
// empty basket; baskets exist implicitly from the first save.
func (m *Memory) Load(_ context.Context, id basket.BasketID) (basket.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.baskets[id]
	if !ok {
		return basket.NewState(), nil
	}
	return st.Clone(), nil
}

// Save replaces the snapshot for a basket id.
func (m *Memory) Save(_ context.Context, id basket.BasketID, st basket.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baskets[id] = st.Clone()
	return nil
}

// List returns all known basket ids in a stable order.
func (m *Memory) List(_ context.Context) ([]basket.BasketID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]basket.BasketID, 0, len(m.baskets))
	for id := range m.baskets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
