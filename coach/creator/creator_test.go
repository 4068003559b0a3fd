package creator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitforge/coachkit/agent"
	"github.com/fitforge/coachkit/coach"
	"github.com/fitforge/coachkit/model"
	"github.com/fitforge/coachkit/store"
	"github.com/fitforge/coachkit/tool"
)

func seedSession(t *testing.T, sessions store.SessionStore) {
	t.Helper()
	err := sessions.PutRequirements(context.Background(), &coach.SessionRequirements{
		SessionID:   "s1",
		UserID:      "u1",
		Goals:       []string{"lose weight", "run a 10k"},
		Experience:  "beginner",
		DaysPerWeek: 3,
	})
	require.NoError(t, err)
}

func toolTurn(uses ...model.ToolUseBlock) model.Response {
	blocks := make([]model.Block, 0, len(uses))
	for _, u := range uses {
		blocks = append(blocks, u)
	}
	return model.Response{
		StopReason: model.StopToolUse,
		Message:    model.Message{Role: model.RoleAssistant, Blocks: blocks},
	}
}

func use(id, name, input string) model.ToolUseBlock {
	return model.ToolUseBlock{ID: id, Name: name, Input: json.RawMessage(input)}
}

// scriptWorkflow enqueues the model turns of a complete creation run.
func scriptWorkflow(llm *model.MockModel, idPrefix string) {
	llm.
		Enqueue(toolTurn(use(idPrefix+"1", toolLoadRequirements, `{}`))).
		Enqueue(toolTurn(
			use(idPrefix+"2", toolSelectPersonality, `{"template_id":"supportive_friend"}`),
			use(idPrefix+"3", toolSelectMethodology, `{"template_id":"endurance_base"}`),
		)).
		Enqueue(toolTurn(use(idPrefix+"4", toolGenerateProfile,
			`{"name":"Coach Maya","tagline":"Every step counts","voice":"Warm and encouraging."}`))).
		Enqueue(toolTurn(use(idPrefix+"5", toolAssembleConfig, `{}`))).
		Enqueue(toolTurn(use(idPrefix+"6", toolValidateConfig, `{}`))).
		Enqueue(toolTurn(use(idPrefix+"7", toolSaveConfig, `{}`))).
		EnqueueText("Created Coach Maya.")
}

func TestRunCompletesWorkflow(t *testing.T) {
	sessions := store.NewInMemorySessionStore()
	configs := store.NewInMemoryConfigStore()
	seedSession(t, sessions)

	llm := model.NewMockModel("m")
	scriptWorkflow(llm, "tu_")

	c := New(llm, sessions, configs)
	outcome, err := c.Run(context.Background(), "s1")
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.False(t, outcome.Skipped)
	require.NotEmpty(t, outcome.ConfigID)
	assert.Equal(t, "Created Coach Maya.", outcome.Response)

	cfg, err := configs.Get(context.Background(), outcome.ConfigID)
	require.NoError(t, err)
	assert.Equal(t, "u1", cfg.UserID)
	assert.Equal(t, "s1", cfg.SessionID)
	assert.Equal(t, "Coach Maya", cfg.Profile.Name)
	assert.Equal(t, coach.TemplateKindPersonality, cfg.Personality.Kind)
	assert.Equal(t, "supportive_friend", cfg.Personality.TemplateID)
	assert.Equal(t, "endurance_base", cfg.Methodology.TemplateID)
	assert.Equal(t, []string{"lose weight", "run a 10k"}, cfg.Requirements.Goals)
	assert.False(t, cfg.CreatedAt.IsZero())
}

func TestRunMissingSession(t *testing.T) {
	c := New(model.NewMockModel("m"), store.NewInMemorySessionStore(), store.NewInMemoryConfigStore())
	_, err := c.Run(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunSaveWithoutValidationIsSkippedOutcome(t *testing.T) {
	sessions := store.NewInMemorySessionStore()
	configs := store.NewInMemoryConfigStore()
	seedSession(t, sessions)

	llm := model.NewMockModel("m").
		Enqueue(toolTurn(use("tu_1", toolLoadRequirements, `{}`))).
		Enqueue(toolTurn(use("tu_2", toolSaveConfig, `{}`))).
		EnqueueText("I was unable to save the configuration.")

	c := New(llm, sessions, configs)
	outcome, err := c.Run(context.Background(), "s1")
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.True(t, outcome.Skipped)
	assert.NotEmpty(t, outcome.Reason)

	// Nothing reached the config store.
	list, err := configs.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBlockUnvalidatedSaveIdempotent(t *testing.T) {
	results := tool.NewResultStore()
	results.Put(keyValidation, coach.ValidationResult{IsValid: false, Issues: []string{"missing field"}})

	// Blocked on every attempt, not just the first.
	for i := 0; i < 3; i++ {
		br := BlockUnvalidatedSave(toolSaveConfig, nil, results)
		require.NotNil(t, br)
		assert.Contains(t, br.Reason, "missing field")
	}

	// Other tools are never vetoed.
	assert.Nil(t, BlockUnvalidatedSave(toolValidateConfig, nil, results))

	// A passing validation unblocks.
	results.Put(keyValidation, coach.ValidationResult{IsValid: true})
	assert.Nil(t, BlockUnvalidatedSave(toolSaveConfig, nil, results))
}

func TestBlockUnvalidatedSaveRequiresValidation(t *testing.T) {
	br := BlockUnvalidatedSave(toolSaveConfig, nil, tool.NewResultStore())
	require.NotNil(t, br)
	assert.Contains(t, br.Reason, toolValidateConfig)
}

func TestStalledWorkflowRetryPolicy(t *testing.T) {
	question := "Could you tell me what kind of goals you have?"

	tests := []struct {
		name      string
		res       *agent.Result
		results   func() *tool.ResultStore
		wantRetry bool
	}{
		{
			name:      "few tools and clarifying question",
			res:       &agent.Result{ToolCalls: 1, FinalText: question},
			results:   tool.NewResultStore,
			wantRetry: true,
		},
		{
			name:      "enough tool calls",
			res:       &agent.Result{ToolCalls: 5, FinalText: question},
			results:   tool.NewResultStore,
			wantRetry: false,
		},
		{
			name:      "statement instead of question",
			res:       &agent.Result{ToolCalls: 0, FinalText: "All done."},
			results:   tool.NewResultStore,
			wantRetry: false,
		},
		{
			name: "never after a successful save",
			res:  &agent.Result{ToolCalls: 0, FinalText: question},
			results: func() *tool.ResultStore {
				rs := tool.NewResultStore()
				rs.Put(keySaved, SaveReceipt{ConfigID: "c1", Saved: true})
				return rs
			},
			wantRetry: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := StalledWorkflowRetry(tt.res, tt.results())
			if tt.wantRetry {
				require.NotNil(t, decision)
				assert.NotEmpty(t, decision.Prompt)
			} else {
				assert.Nil(t, decision)
			}
		})
	}
}

func TestRunRetriesOnceOnClarifyingQuestion(t *testing.T) {
	sessions := store.NewInMemorySessionStore()
	configs := store.NewInMemoryConfigStore()
	seedSession(t, sessions)

	llm := model.NewMockModel("m").
		EnqueueText("Which training style would you prefer?")
	scriptWorkflow(llm, "retry_")

	c := New(llm, sessions, configs)
	outcome, err := c.Run(context.Background(), "s1")
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.NotEmpty(t, outcome.ConfigID)

	// First pass stalled after one model turn; the retry drove the full
	// workflow (6 tool turns + final text).
	assert.Len(t, llm.Requests(), 8)
}

func TestValidateConfigChecks(t *testing.T) {
	valid := &coach.Config{
		UserID:      "u1",
		Profile:     coach.Profile{Name: "Coach", Voice: "calm"},
		Personality: coach.TemplateChoice{TemplateID: "zen_guide"},
		Methodology: coach.TemplateChoice{TemplateID: "endurance_base"},
		Requirements: coach.SessionRequirements{
			Goals:       []string{"run"},
			DaysPerWeek: 3,
		},
	}
	res := validateConfig(valid)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Issues)

	broken := valid.Clone()
	broken.Profile.Name = " "
	broken.Requirements.DaysPerWeek = 9
	broken.Requirements.Goals = nil

	res = validateConfig(broken)
	assert.False(t, res.IsValid)
	assert.Len(t, res.Issues, 3)
}

func TestNormalizeConfigRepairs(t *testing.T) {
	cfg := &coach.Config{
		Profile: coach.Profile{Name: " Coach Maya ", Tagline: "steady "},
		Requirements: coach.SessionRequirements{
			DaysPerWeek: 0,
		},
	}

	out, changes := normalizeConfig(cfg)
	assert.Equal(t, "Coach Maya", out.Profile.Name)
	assert.Equal(t, "steady", out.Profile.Tagline)
	assert.Equal(t, 3, out.Requirements.DaysPerWeek)
	assert.Equal(t, "beginner", out.Requirements.Experience)
	assert.Len(t, changes, 4)

	// Input untouched.
	assert.Equal(t, " Coach Maya ", cfg.Profile.Name)
}

func TestRunAppliesConfiguredTemperature(t *testing.T) {
	sessions := store.NewInMemorySessionStore()
	configs := store.NewInMemoryConfigStore()
	seedSession(t, sessions)

	llm := model.NewMockModel("m").EnqueueText("Done.")

	c := New(llm, sessions, configs, func(o *Options) {
		o.Agent.Temperature = 0.2
	})

	_, err := c.Run(context.Background(), "s1")
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].Temperature)
	assert.InDelta(t, 0.2, *reqs[0].Temperature, 1e-9)
}
