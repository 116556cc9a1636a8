package duplicates

import (
	"context"
	"sync"
)

type memoryIndex struct {
	mu      sync.RWMutex
	entries map[string][]IndexEntry
}

// NewMemoryIndex returns a process-local Index.
func NewMemoryIndex() Index {
	return &memoryIndex{entries: make(map[string][]IndexEntry)}
}

func (m *memoryIndex) Lookup(ctx context.Context, hash Hash, scope Scope) ([]IndexEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !scope.Global {
		return append([]IndexEntry(nil), m.entries[scope.ID]...), nil
	}

	var out []IndexEntry
	for _, list := range m.entries {
		out = append(out, list...)
	}
	return out, nil
}

func (m *memoryIndex) Store(ctx context.Context, scope Scope, entries ...IndexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		e.Scope = scope.ID
		m.entries[scope.ID] = append(m.entries[scope.ID], e)
	}
	return nil
}
