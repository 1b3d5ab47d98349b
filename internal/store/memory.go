// internal/store/memory.go
//
// In-memory registry of live game sessions.
// Every connected browser tab owns one *game.Engine; the HTTP layer
// registers it on connect and removes it on disconnect.
//
// Characteristics:
//   - Stores *game.Engine objects keyed by engine ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts; games are ephemeral anyway.
//   - ErrNotFound is returned for unknown IDs.

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/robalobadob/whackamole/internal/game"
)

// ErrNotFound is returned by Get for IDs that are not registered.
var ErrNotFound = errors.New("not found")

// Store defines the registry interface for live sessions.
type Store interface {
	// Save registers or replaces an engine under its ID.
	Save(ctx context.Context, e *game.Engine) error

	// Get retrieves a live engine by ID.
	Get(ctx context.Context, id string) (*game.Engine, error)

	// Delete forgets an engine. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// Len reports the number of live sessions.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu      sync.RWMutex            // guards engines map
	engines map[string]*game.Engine // keyed by Engine.ID()
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{engines: make(map[string]*game.Engine)}
}

func (m *memory) Save(ctx context.Context, e *game.Engine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines[e.ID()] = e
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*game.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.engines[id]; ok {
		return e, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.engines, id)
	return nil
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.engines)
}
