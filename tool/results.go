package tool

import "sync"

// ResultStore maps semantic keys to the last successful output of a tool,
// scoped to one agent run. Writes are last-write-wins per key; reads serve
// subsequent tools and the final result-assembly step. The store is cleared
// only at caller discretion between retries (clearing policy is caller
// defined, never automatic).
//
// Parallel dispatch is restricted to disjoint-key tool groups by
// construction, but the store locks anyway so concurrent writes to distinct
// keys are safe.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]any
}

// NewResultStore constructs an empty result store.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]any)}
}

// Put records value under key, overwriting any previous entry.
func (s *ResultStore) Put(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[key] = value
}

// Get returns the stored value and whether the key exists.
func (s *ResultStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.results[key]
	return v, ok
}

// Has reports whether the key exists.
func (s *ResultStore) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Len returns the number of stored results.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// Keys returns a snapshot of the stored keys.
func (s *ResultStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.results))
	for k := range s.results {
		keys = append(keys, k)
	}
	return keys
}

// Clear removes all stored results.
func (s *ResultStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]any)
}
