package store

import (
	"fmt"
	"sync"

	"github.com/praetorian-inc/capmatch/pkg/extractor"
)

// MemoryStore implements Store using in-memory data structures.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots []Snapshot
	byID      map[string]int                         // index into snapshots
	records   map[string]map[extractor.Scope][]Record // keyed by snapshot id
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]int),
		records: make(map[string]map[extractor.Scope][]Record),
	}
}

// AddSnapshot stores a snapshot.
func (m *MemoryStore) AddSnapshot(s Snapshot) error {
	if s.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[s.ID]; exists {
		// Idempotent - already exists
		return nil
	}
	m.byID[s.ID] = len(m.snapshots)
	m.snapshots = append(m.snapshots, s)
	m.records[s.ID] = make(map[extractor.Scope][]Record)
	return nil
}

// AddFeature appends a record to a snapshot.
func (m *MemoryStore) AddFeature(snapshotID string, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scopes, ok := m.records[snapshotID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSnapshot, snapshotID)
	}
	scopes[r.Scope] = append(scopes[r.Scope], r)
	return nil
}

// Features returns the records of one scope.
func (m *MemoryStore) Features(snapshotID string, scope extractor.Scope) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scopes, ok := m.records[snapshotID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSnapshot, snapshotID)
	}
	out := make([]Record, len(scopes[scope]))
	copy(out, scopes[scope])
	return out, nil
}

// Snapshots returns every snapshot.
func (m *MemoryStore) Snapshots() ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
