package renewal

import (
	"context"
	"sync"
	"time"
)

// State is the per-account renewal record shared between the periodic sweep
// and on-demand requests. NextCheck and RemainingMinutes always change
// together; a torn pair must never be observable.
type State struct {
	Plate            string    `json:"plate"`
	NextCheck        time.Time `json:"next_check"`
	RemainingMinutes int       `json:"remaining_minutes"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Due reports whether the sweep should renew this entry at the given instant.
// Entries with no remaining minutes are inert but kept for inspection.
func (s State) Due(now time.Time) bool {
	return s.RemainingMinutes > 0 && !s.NextCheck.After(now)
}

// Store keeps renewal state per account name.
type Store interface {
	Get(ctx context.Context, account string) (State, bool, error)
	Put(ctx context.Context, account string, state State) error
	List(ctx context.Context) (map[string]State, error)
}

// MemoryStore is the in-process Store. Reads share a lock, writes are
// exclusive, so the sweep's enumeration never blocks longer than one pass.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Get returns the state for an account.
func (m *MemoryStore) Get(ctx context.Context, account string) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[account]
	return state, ok, nil
}

// Put overwrites the state for an account.
func (m *MemoryStore) Put(ctx context.Context, account string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[account] = state
	return nil
}

// List returns a copy of all entries.
func (m *MemoryStore) List(ctx context.Context) (map[string]State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]State, len(m.states))
	for account, state := range m.states {
		result[account] = state
	}
	return result, nil
}
