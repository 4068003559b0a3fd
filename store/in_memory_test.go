package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitforge/coachkit/coach"
)

func TestSessionStoreRoundTripAndClone(t *testing.T) {
	s := NewInMemorySessionStore()
	ctx := context.Background()

	_, err := s.Requirements(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	req := &coach.SessionRequirements{
		SessionID:   "s1",
		UserID:      "u1",
		Goals:       []string{"strength"},
		DaysPerWeek: 3,
	}
	require.NoError(t, s.PutRequirements(ctx, req))

	// Mutating the original after save must not leak into the store.
	req.Goals[0] = "mutated"

	got, err := s.Requirements(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"strength"}, got.Goals)

	// Mutating the returned clone must not leak either.
	got.Goals[0] = "also mutated"
	again, err := s.Requirements(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"strength"}, again.Goals)
}

func TestConfigStoreAssignsIDAndListsByUser(t *testing.T) {
	s := NewInMemoryConfigStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	older := &coach.Config{UserID: "u1", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &coach.Config{UserID: "u1", CreatedAt: time.Now()}
	other := &coach.Config{UserID: "u2", CreatedAt: time.Now()}

	for _, cfg := range []*coach.Config{older, newer, other} {
		require.NoError(t, s.Save(ctx, cfg))
		assert.NotEmpty(t, cfg.ID)
	}

	got, err := s.Get(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	list, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID, "newest first")
	assert.Equal(t, older.ID, list[1].ID)
}

func TestWorkoutStoreRecentOrderAndLimit(t *testing.T) {
	s := NewInMemoryWorkoutStore()
	ctx := context.Background()

	base := time.Now().Add(-24 * time.Hour)
	for i, activity := range []string{"run", "lift", "swim"} {
		require.NoError(t, s.Save(ctx, &coach.Workout{
			UserID:   "u1",
			Activity: activity,
			LoggedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	recent, err := s.Recent(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "swim", recent[0].Activity)
	assert.Equal(t, "lift", recent[1].Activity)

	all, err := s.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.Recent(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStoreSearchScoring(t *testing.T) {
	s := NewInMemoryMemoryStore()
	ctx := context.Background()

	seed := []*coach.Memory{
		{UserID: "u1", Content: "Left knee hurts during squats", Tags: []string{"injury"}},
		{UserID: "u1", Content: "Prefers morning workouts"},
		{UserID: "u1", Content: "Training for a marathon in spring", Tags: []string{"goal"}},
		{UserID: "u2", Content: "knee surgery last year"},
	}
	for _, m := range seed {
		require.NoError(t, s.Save(ctx, m))
		assert.NotEmpty(t, m.ID)
	}

	hits, err := s.Search(ctx, "u1", "knee squats", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Memory.Content, "knee")
	assert.Equal(t, 1.0, hits[0].Score)

	// Partial term matches score lower but still rank.
	hits, err = s.Search(ctx, "u1", "knee marathon", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0.5, hits[0].Score)

	// Tag text participates in matching.
	hits, err = s.Search(ctx, "u1", "injury", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Memory.Content, "knee")

	// Empty query matches everything for the user.
	hits, err = s.Search(ctx, "u1", "", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	// Scoped per user.
	hits, err = s.Search(ctx, "u2", "knee", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	// Limit applies after ranking.
	hits, err = s.Search(ctx, "u1", "", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
