// Package connectivity tracks a per-agent connection status machine
// (disconnected, checking, connected) with durable persistence.
// API-backed agents are verified by a single shared credential probe;
// web-embedded agents can only be asserted manually by the user.
package connectivity

import (
	"context"
	"errors"
	"sync"
)

// Status is one agent's connection state.
type Status string

const (
	// StatusDisconnected is the default state.
	StatusDisconnected Status = "disconnected"
	// StatusChecking means a probe is in flight.
	StatusChecking Status = "checking"
	// StatusConnected means the agent is believed reachable.
	StatusConnected Status = "connected"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDisconnected, StatusChecking, StatusConnected:
		return true
	}
	return false
}

// ErrStoreClosed is returned when operating on a closed store.
var ErrStoreClosed = errors.New("status store is closed")

// Store persists the status map. Writes are whole-map replacements;
// there is no partial update. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save replaces the persisted map.
	Save(ctx context.Context, statuses map[string]Status) error

	// Load restores the persisted map. A missing record yields an
	// empty map and no error; a corrupt record yields an error the
	// caller recovers from.
	Load(ctx context.Context) (map[string]Status, error)

	// Close releases store resources.
	Close() error
}

// MemoryStore is an in-process Store for tests and ephemeral use.
type MemoryStore struct {
	mu       sync.Mutex
	statuses map[string]Status
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{statuses: make(map[string]Status)}
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, statuses map[string]Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.statuses = make(map[string]Status, len(statuses))
	for id, s := range statuses {
		m.statuses[id] = s
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context) (map[string]Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	out := make(map[string]Status, len(m.statuses))
	for id, s := range m.statuses {
		out[id] = s
	}
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
