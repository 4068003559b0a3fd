package conversation

import (
	"fmt"
	"time"

	"github.com/fitforge/coachkit/coach"
	"github.com/fitforge/coachkit/tool"
)

const (
	toolLogWorkout     = "log_workout"
	toolRecentWorkouts = "get_recent_workouts"
	toolSaveMemory     = "save_user_memory"
	toolSearchMemories = "search_user_memories"
)

const defaultQueryLimit = 5

// registerTools builds the conversational tool set bound to this coach's
// stores. The two read-only lookups touch disjoint stores and may run in
// one turn.
func (c *Coach) registerTools(reg *tool.Registry) {
	reg.RegisterAll(
		c.logWorkoutTool(),
		c.recentWorkoutsTool(),
		c.saveMemoryTool(),
		c.searchMemoriesTool(),
	)
	reg.MarkParallelSafe(toolRecentWorkouts, toolSearchMemories)
}

func (c *Coach) logWorkoutTool() tool.Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"activity":     map[string]any{"type": "string", "description": "What the user did, e.g. 'upper body strength' or '5k run'"},
			"duration_min": map[string]any{"type": "integer", "description": "Duration in minutes"},
			"intensity":    map[string]any{"type": "string", "description": "Perceived intensity", "enum": []string{"easy", "moderate", "hard"}},
			"notes":        map[string]any{"type": "string", "description": "Anything notable: PRs, pain, conditions"},
		},
		"required": []string{"activity"},
	}

	return tool.NewFunctionTool(
		toolLogWorkout,
		"Record a workout the user reports having completed. Use whenever the user describes training they did.",
		schema,
		func(tc *tool.Context, args map[string]any) (any, error) {
			w := &coach.Workout{
				UserID:    tc.UserID(),
				Activity:  stringArg(args, "activity"),
				Intensity: stringArg(args, "intensity"),
				Notes:     stringArg(args, "notes"),
				LoggedAt:  time.Now().UTC(),
			}
			if d, ok := args["duration_min"].(float64); ok {
				w.DurationMin = int(d)
			}
			if err := c.workouts.Save(tc.Context(), w); err != nil {
				return nil, fmt.Errorf("save workout: %w", err)
			}
			return w, nil
		},
	)
}

func (c *Coach) recentWorkoutsTool() tool.Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Maximum number of workouts to return, default 5"},
		},
	}

	return tool.NewFunctionTool(
		toolRecentWorkouts,
		"Fetch the user's most recent logged workouts, newest first. Use before commenting on training consistency or progress.",
		schema,
		func(tc *tool.Context, args map[string]any) (any, error) {
			limit := defaultQueryLimit
			if l, ok := args["limit"].(float64); ok && l > 0 {
				limit = int(l)
			}
			workouts, err := c.workouts.Recent(tc.Context(), tc.UserID(), limit)
			if err != nil {
				return nil, fmt.Errorf("load recent workouts: %w", err)
			}
			return workouts, nil
		},
	)
}

func (c *Coach) saveMemoryTool() tool.Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string", "description": "The fact to remember, phrased as a standalone statement"},
			"tags":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Short lowercase tags, e.g. injury, preference, goal"},
		},
		"required": []string{"content"},
	}

	return tool.NewFunctionTool(
		toolSaveMemory,
		"Save a durable fact about the user (injury, preference, standing goal) so future conversations can use it.",
		schema,
		func(tc *tool.Context, args map[string]any) (any, error) {
			m := &coach.Memory{
				UserID:    tc.UserID(),
				Content:   stringArg(args, "content"),
				CreatedAt: time.Now().UTC(),
			}
			if raw, ok := args["tags"].([]any); ok {
				for _, v := range raw {
					if s, ok := v.(string); ok {
						m.Tags = append(m.Tags, s)
					}
				}
			}
			if err := c.memories.Save(tc.Context(), m); err != nil {
				return nil, fmt.Errorf("save memory: %w", err)
			}
			return m, nil
		},
	)
}

func (c *Coach) searchMemoriesTool() tool.Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Keywords to search for"},
			"limit": map[string]any{"type": "integer", "description": "Maximum number of memories to return, default 5"},
		},
		"required": []string{"query"},
	}

	return tool.NewFunctionTool(
		toolSearchMemories,
		"Search previously saved facts about the user. Use before giving advice that could clash with injuries or preferences.",
		schema,
		func(tc *tool.Context, args map[string]any) (any, error) {
			limit := defaultQueryLimit
			if l, ok := args["limit"].(float64); ok && l > 0 {
				limit = int(l)
			}
			hits, err := c.memories.Search(tc.Context(), tc.UserID(), stringArg(args, "query"), limit)
			if err != nil {
				return nil, fmt.Errorf("search memories: %w", err)
			}
			return hits, nil
		},
	)
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
