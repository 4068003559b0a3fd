package store

import (
	"context"
	"fmt"

	"github.com/fitforge/coachkit/coach"
)

// ErrNotFound is returned when a record for the given id does not exist in
// the underlying store.
var ErrNotFound = fmt.Errorf("record not found")

// SessionStore persists coach-creator session state: the requirements a
// session collected before the creation workflow runs.
type SessionStore interface {
	Requirements(ctx context.Context, sessionID string) (*coach.SessionRequirements, error)
	PutRequirements(ctx context.Context, req *coach.SessionRequirements) error
}

// ConfigStore persists assembled coach configurations by id.
type ConfigStore interface {
	Get(ctx context.Context, configID string) (*coach.Config, error)
	Save(ctx context.Context, cfg *coach.Config) error
	ListByUser(ctx context.Context, userID string) ([]*coach.Config, error)
}

// WorkoutStore persists logged workouts and serves recency queries.
type WorkoutStore interface {
	Save(ctx context.Context, w *coach.Workout) error
	Recent(ctx context.Context, userID string, limit int) ([]*coach.Workout, error)
}

// MemorySearchResult is a recalled memory with a relevance score.
type MemorySearchResult struct {
	Memory coach.Memory
	Score  float64
}

// MemoryStore persists conversational memories and serves recall queries.
// Implementations can back Search with embeddings, keywords or any
// heuristic; the agents only depend on the score ordering.
type MemoryStore interface {
	Save(ctx context.Context, m *coach.Memory) error
	Search(ctx context.Context, userID string, query string, limit int) ([]MemorySearchResult, error)
}
