// internal/store/memory.go
//
// In-memory round store.
// Holds live *game.Engine values keyed by round ID for the HTTP layer.
//
// Characteristics:
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - Sweep evicts rounds that are no longer running and have been idle too long.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/imbanker-naver/cursor-pjt/internal/game"
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("not found")

// Store defines the lookup interface for live rounds.
type Store interface {
	// Save adds or replaces a round.
	Save(ctx context.Context, e *game.Engine) error

	// Get retrieves a round by ID.
	Get(ctx context.Context, id string) (*game.Engine, error)

	// Delete drops a round; unknown IDs are ignored.
	Delete(ctx context.Context, id string) error

	// Sweep removes rounds that are not running and whose last activity is
	// before cutoff. It returns the removed IDs.
	Sweep(ctx context.Context, cutoff time.Time) ([]string, error)

	// Len reports how many rounds are held.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu     sync.RWMutex            // guards rounds map
	rounds map[string]*game.Engine // keyed by Engine.ID()
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{rounds: make(map[string]*game.Engine)}
}

func (m *memory) Save(ctx context.Context, e *game.Engine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[e.ID()] = e
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*game.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.rounds[id]; ok {
		return e, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rounds, id)
	return nil
}

func (m *memory) Sweep(ctx context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []string
	for id, e := range m.rounds {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.State().Phase == game.PhaseRunning {
			continue
		}
		if e.LastActivity().Before(cutoff) {
			delete(m.rounds, id)
			removed = append(removed, id)
		}
	}
	return removed, nil
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rounds)
}
