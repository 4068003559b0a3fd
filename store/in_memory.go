package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fitforge/coachkit/coach"
)

// InMemorySessionStore is a volatile SessionStore keeping requirements in a
// process local map. Records are cloned on save and load to prevent external
// mutation of internal state.
type InMemorySessionStore struct {
	mu           sync.RWMutex
	requirements map[string]*coach.SessionRequirements
}

// NewInMemorySessionStore constructs an empty in-memory session store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{requirements: make(map[string]*coach.SessionRequirements)}
}

// Requirements returns a clone of the stored requirements or ErrNotFound.
func (s *InMemorySessionStore) Requirements(_ context.Context, sessionID string) (*coach.SessionRequirements, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requirements[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return req.Clone(), nil
}

// PutRequirements stores (or overwrites) a clone of the provided snapshot.
func (s *InMemorySessionStore) PutRequirements(_ context.Context, req *coach.SessionRequirements) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requirements[req.SessionID] = req.Clone()
	return nil
}

// InMemoryConfigStore is a volatile ConfigStore keyed by config id.
type InMemoryConfigStore struct {
	mu      sync.RWMutex
	configs map[string]*coach.Config
}

// NewInMemoryConfigStore constructs an empty in-memory config store.
func NewInMemoryConfigStore() *InMemoryConfigStore {
	return &InMemoryConfigStore{configs: make(map[string]*coach.Config)}
}

// Get returns a clone of the stored config or ErrNotFound.
func (s *InMemoryConfigStore) Get(_ context.Context, configID string) (*coach.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[configID]
	if !ok {
		return nil, ErrNotFound
	}
	return cfg.Clone(), nil
}

// Save stores a clone of the config, assigning an id when missing.
func (s *InMemoryConfigStore) Save(_ context.Context, cfg *coach.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	s.configs[cfg.ID] = cfg.Clone()
	return nil
}

// ListByUser returns clones of all configs owned by the user, newest first.
func (s *InMemoryConfigStore) ListByUser(_ context.Context, userID string) ([]*coach.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*coach.Config, 0)
	for _, cfg := range s.configs {
		if cfg.UserID == userID {
			out = append(out, cfg.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// InMemoryWorkoutStore is a volatile WorkoutStore with per-user append-only
// workout lists.
type InMemoryWorkoutStore struct {
	mu       sync.RWMutex
	workouts map[string][]*coach.Workout // userID -> workouts
}

// NewInMemoryWorkoutStore constructs an empty in-memory workout store.
func NewInMemoryWorkoutStore() *InMemoryWorkoutStore {
	return &InMemoryWorkoutStore{workouts: make(map[string][]*coach.Workout)}
}

// Save appends a copy of the workout, assigning an id when missing.
func (s *InMemoryWorkoutStore) Save(_ context.Context, w *coach.Workout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	cp := *w
	s.workouts[w.UserID] = append(s.workouts[w.UserID], &cp)
	return nil
}

// Recent returns up to limit workouts for the user, newest first.
func (s *InMemoryWorkoutStore) Recent(_ context.Context, userID string, limit int) ([]*coach.Workout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.workouts[userID]
	out := make([]*coach.Workout, 0, len(stored))
	for _, w := range stored {
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoggedAt.After(out[j].LoggedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InMemoryMemoryStore is a naive process-local MemoryStore. Search is a
// linear scan scoring each memory by the fraction of query terms found in
// its content or tags (case insensitive). Suitable only for tests and
// demos; swap for a vector index for production retrieval.
type InMemoryMemoryStore struct {
	mu       sync.RWMutex
	memories map[string][]*coach.Memory // userID -> memories
}

// NewInMemoryMemoryStore constructs an empty in-memory memory store.
func NewInMemoryMemoryStore() *InMemoryMemoryStore {
	return &InMemoryMemoryStore{memories: make(map[string][]*coach.Memory)}
}

// Save appends a clone of the memory, assigning an id when missing.
func (s *InMemoryMemoryStore) Save(_ context.Context, m *coach.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.memories[m.UserID] = append(s.memories[m.UserID], m.Clone())
	return nil
}

// Search scores every stored memory against the query terms and returns up
// to limit hits ordered by score, then recency. An empty query matches
// everything with a score of 1.0.
func (s *InMemoryMemoryStore) Search(_ context.Context, userID string, query string, limit int) ([]MemorySearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	results := make([]MemorySearchResult, 0)
	for _, m := range s.memories[userID] {
		score := scoreMemory(m, terms)
		if score > 0 {
			results = append(results, MemorySearchResult{Memory: *m.Clone(), Score: score})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.CreatedAt.After(results[j].Memory.CreatedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func scoreMemory(m *coach.Memory, terms []string) float64 {
	if len(terms) == 0 {
		return 1.0
	}
	haystack := strings.ToLower(m.Content)
	for _, tag := range m.Tags {
		haystack += " " + strings.ToLower(tag)
	}
	matched := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
