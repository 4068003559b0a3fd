package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitforge/coachkit/model"
	"github.com/fitforge/coachkit/tool"
)

func slowTool(name string, delay time.Duration, record func(string)) tool.Tool {
	return tool.NewFunctionTool(name, "test tool", map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}, func(_ *tool.Context, _ map[string]any) (any, error) {
		time.Sleep(delay)
		record(name)
		return name + "-output", nil
	})
}

func TestParallelDispatchPreservesRequestOrder(t *testing.T) {
	var mu sync.Mutex
	var finished []string
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, name)
	}

	reg := tool.NewRegistry()
	reg.RegisterAll(
		slowTool("slow_a", 60*time.Millisecond, record),
		slowTool("fast_b", 0, record),
	)
	reg.MarkParallelSafe("slow_a", "fast_b")

	llm := model.NewMockModel("m").
		Enqueue(toolTurn(
			use("tu_a", "slow_a", `{}`),
			use("tu_b", "fast_b", `{}`),
		)).
		EnqueueText("done")

	ag := New(llm, reg)

	_, err := ag.Converse(context.Background(), "go")
	require.NoError(t, err)

	// fast_b finished before slow_a, proving concurrent execution.
	mu.Lock()
	assert.Equal(t, []string{"fast_b", "slow_a"}, finished)
	mu.Unlock()

	// The appended results keep request order regardless.
	results := ag.History()[2].ToolResults()
	require.Len(t, results, 2)
	assert.Equal(t, "tu_a", results[0].ToolUseID)
	assert.Equal(t, "slow_a-output", results[0].Content)
	assert.Equal(t, "tu_b", results[1].ToolUseID)
	assert.Equal(t, "fast_b-output", results[1].Content)
}

func TestUnmarkedToolsRunSequentially(t *testing.T) {
	var mu sync.Mutex
	var finished []string
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, name)
	}

	reg := tool.NewRegistry()
	reg.RegisterAll(
		slowTool("slow_a", 40*time.Millisecond, record),
		slowTool("fast_b", 0, record),
	)
	// No MarkParallelSafe: dispatch must run in request order.

	llm := model.NewMockModel("m").
		Enqueue(toolTurn(
			use("tu_a", "slow_a", `{}`),
			use("tu_b", "fast_b", `{}`),
		)).
		EnqueueText("done")

	ag := New(llm, reg)

	_, err := ag.Converse(context.Background(), "go")
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, []string{"slow_a", "fast_b"}, finished)
	mu.Unlock()
}

func TestBlockingPolicyVetoesCallWithoutExecuting(t *testing.T) {
	executed := false
	save := tool.NewFunctionTool("save", "persists things", map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}, func(_ *tool.Context, _ map[string]any) (any, error) {
		executed = true
		return "saved", nil
	})

	reg := tool.NewRegistry()
	reg.Register(save)

	llm := model.NewMockModel("m").
		Enqueue(toolTurn(use("tu_1", "save", `{}`))).
		EnqueueText("understood")

	ag := New(llm, reg, func(o *Options) {
		o.Blocking = func(toolName string, _ json.RawMessage, _ *tool.ResultStore) *BlockResult {
			if toolName == "save" {
				return &BlockResult{Reason: "validation failed: missing field"}
			}
			return nil
		}
	})

	res, err := ag.Converse(context.Background(), "go")
	require.NoError(t, err)
	assert.False(t, executed)
	assert.Equal(t, 1, res.ToolErrors)

	result := ag.History()[2].ToolResults()[0]
	assert.True(t, result.IsError)

	var payload struct {
		Error   bool   `json:"error"`
		Blocked bool   `json:"blocked"`
		Reason  string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Content), &payload))
	assert.True(t, payload.Error)
	assert.True(t, payload.Blocked)
	assert.Contains(t, payload.Reason, "missing field")
}

func TestToolPanicBecomesErrorResult(t *testing.T) {
	boom := tool.NewFunctionTool("boom", "panics", map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}, func(_ *tool.Context, _ map[string]any) (any, error) {
		panic("kaboom")
	})

	reg := tool.NewRegistry()
	reg.Register(boom)

	llm := model.NewMockModel("m").
		Enqueue(toolTurn(use("tu_1", "boom", `{}`))).
		EnqueueText("recovered")

	ag := New(llm, reg)

	res, err := ag.Converse(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.FinalText)
	assert.Equal(t, 1, res.ToolErrors)

	result := ag.History()[2].ToolResults()[0]
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "kaboom")
}

func TestSuccessfulOutputStoredUnderAlias(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(echoTool("load_requirements"))
	reg.Alias("load_requirements", "requirements")

	llm := model.NewMockModel("m").
		Enqueue(toolTurn(use("tu_1", "load_requirements", `{"v":"goals"}`))).
		EnqueueText("done")

	ag := New(llm, reg)

	_, err := ag.Converse(context.Background(), "go")
	require.NoError(t, err)

	v, ok := ag.Results().Get("requirements")
	require.True(t, ok)
	assert.Equal(t, "goals", v)

	_, rawKey := ag.Results().Get("load_requirements")
	assert.False(t, rawKey)
}

func TestFailedToolDoesNotWriteResultStore(t *testing.T) {
	failing := tool.NewFunctionTool("flaky", "always fails", map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}, func(_ *tool.Context, _ map[string]any) (any, error) {
		return nil, assert.AnError
	})

	reg := tool.NewRegistry()
	reg.Register(failing)

	llm := model.NewMockModel("m").
		Enqueue(toolTurn(use("tu_1", "flaky", `{}`))).
		EnqueueText("done")

	ag := New(llm, reg)

	_, err := ag.Converse(context.Background(), "go")
	require.NoError(t, err)
	assert.False(t, ag.Results().Has("flaky"))
}

func TestToolTimeoutBoundsCallContext(t *testing.T) {
	var (
		deadlineSet bool
		gotUser     string
	)
	inspect := tool.NewFunctionTool("inspect_ctx", "inspects its context", map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}, func(tc *tool.Context, _ map[string]any) (any, error) {
		_, deadlineSet = tc.Context().Deadline()
		gotUser = tc.UserID()
		return "ok", nil
	})

	reg := tool.NewRegistry()
	reg.Register(inspect)

	llm := model.NewMockModel("m").
		Enqueue(toolTurn(use("tu_1", "inspect_ctx", `{}`))).
		EnqueueText("done")

	ag := New(llm, reg, func(o *Options) {
		o.UserID = "u1"
		o.ToolTimeout = time.Second
	})

	_, err := ag.Converse(context.Background(), "go")
	require.NoError(t, err)

	assert.True(t, deadlineSet, "tool must observe the per-call deadline")
	assert.Equal(t, "u1", gotUser, "rebinding the context must keep run identity")
}
