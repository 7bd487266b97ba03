package personality

import (
	"context"
	"sync"
	"time"
)

// Change describes one update of a user's vector.
type Change struct {
	Old    Vector
	New    Vector
	Delta  Vector
	Reason string
	At     time.Time
}

// Store persists personality vectors per user.
type Store interface {
	// Get returns the user's vector, or Default() when none is stored.
	Get(ctx context.Context, userID string) (Vector, error)

	// Save stores the new vector and records the change in the history.
	Save(ctx context.Context, userID string, change Change) error

	// History returns up to limit changes, newest first.
	History(ctx context.Context, userID string, limit int) ([]Change, error)

	// Close releases resources held by the store.
	Close() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	vectors map[string]Vector
	history map[string][]Change
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vectors: make(map[string]Vector),
		history: make(map[string][]Change),
	}
}

// Get returns userID's vector, or Default when none was saved.
func (s *MemoryStore) Get(ctx context.Context, userID string) (Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.vectors[userID]; ok {
		return v.Copy(), nil
	}
	return Default(), nil
}

// Save stores change.New as userID's vector and appends change to its history.
func (s *MemoryStore) Save(ctx context.Context, userID string, change Change) error {
	if change.At.IsZero() {
		change.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[userID] = change.New.Copy()
	s.history[userID] = append(s.history[userID], change)
	return nil
}

// History returns up to limit changes of userID, newest first.
func (s *MemoryStore) History(ctx context.Context, userID string, limit int) ([]Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.history[userID]
	out := make([]Change, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
