package cache

import "sync"

// Memory is an in-memory Store for tests and cache-disabled runs that still
// want warm lookups within a single process.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry)}
}

func (m *Memory) Get(contentHash string) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[contentHash]
	if !ok || e.SchemaVersion != SchemaVersion {
		return nil, false
	}
	return e, true
}

func (m *Memory) Put(contentHash string, e *Entry) error {
	e.SchemaVersion = SchemaVersion
	e.ContentHash = contentHash
	m.mu.Lock()
	m.entries[contentHash] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(contentHash string) error {
	m.mu.Lock()
	delete(m.entries, contentHash)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	m.entries = make(map[string]*Entry)
	m.mu.Unlock()
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
