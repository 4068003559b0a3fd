package tool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() *Context {
	return NewContext(ContextParams{UserID: "u1", SessionID: "s1", RunID: "r1"})
}

func intSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []string{"x"},
	}
}

func TestFunctionToolValidationError(t *testing.T) {
	ft := NewFunctionTool("calc", "test", intSchema(), func(_ *Context, args map[string]any) (any, error) {
		return args["x"], nil
	})

	_, err := ft.Call(newTestContext(), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.Equal(t, "calc", toolErr.Tool)

	_, err = ft.Call(newTestContext(), map[string]any{"x": "not-int"})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionToolExecutionError(t *testing.T) {
	ft := NewFunctionTool("flaky", "test", intSchema(), func(_ *Context, _ map[string]any) (any, error) {
		return nil, errors.New("backend unavailable")
	})

	_, err := ft.Call(newTestContext(), map[string]any{"x": float64(1)})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "backend unavailable", toolErr.Message)
}

func TestFunctionToolPreservesCustomToolError(t *testing.T) {
	custom := NewToolError("lookup", "record missing", CodeNotFound)
	ft := NewFunctionTool("lookup", "test", intSchema(), func(_ *Context, _ map[string]any) (any, error) {
		return nil, custom
	})

	_, err := ft.Call(newTestContext(), map[string]any{"x": float64(1)})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Same(t, custom, toolErr)
}

func TestFunctionToolSuccess(t *testing.T) {
	ft := NewFunctionTool("calc", "doubles x", intSchema(), func(_ *Context, args map[string]any) (any, error) {
		return args["x"].(float64) * 2, nil
	})

	out, err := ft.Call(newTestContext(), map[string]any{"x": float64(21)})
	require.NoError(t, err)
	assert.Equal(t, float64(42), out)
}

func TestRegistryDefinitionsKeepRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		reg.Register(NewFunctionTool(name, "d:"+name, intSchema(), nil))
	}

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "zeta", defs[0].Name)
	assert.Equal(t, "alpha", defs[1].Name)
	assert.Equal(t, "mid", defs[2].Name)
	assert.Equal(t, "d:alpha", defs[1].Description)
}

func TestRegistryLookupAndLen(t *testing.T) {
	reg := NewRegistry()
	assert.Zero(t, reg.Len())

	reg.Register(NewFunctionTool("a", "", intSchema(), nil))
	got, ok := reg.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "a", got.Name())

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryResultKeyAlias(t *testing.T) {
	reg := NewRegistry()
	reg.Alias("load_session_requirements", "requirements")

	assert.Equal(t, "requirements", reg.ResultKey("load_session_requirements"))
	assert.Equal(t, "other_tool", reg.ResultKey("other_tool"))
}

func TestRegistryParallelSafeGroups(t *testing.T) {
	reg := NewRegistry()
	reg.MarkParallelSafe("a", "b")
	reg.MarkParallelSafe("c", "d", "e")

	assert.True(t, reg.ParallelSafe([]string{"a", "b"}))
	assert.True(t, reg.ParallelSafe([]string{"b", "a"}))
	assert.True(t, reg.ParallelSafe([]string{"c", "e", "d"}))

	// Mixed groups, unknown members and singletons are not safe.
	assert.False(t, reg.ParallelSafe([]string{"a", "c"}))
	assert.False(t, reg.ParallelSafe([]string{"a", "x"}))
	assert.False(t, reg.ParallelSafe([]string{"a"}))
	assert.False(t, reg.ParallelSafe(nil))
}

func TestResultStoreLastWriteWins(t *testing.T) {
	s := NewResultStore()
	assert.Zero(t, s.Len())
	assert.False(t, s.Has("k"))

	s.Put("k", "first")
	s.Put("k", "second")

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "second", v)
	assert.Equal(t, 1, s.Len())
}

func TestResultStoreClear(t *testing.T) {
	s := NewResultStore()
	s.Put("a", 1)
	s.Put("b", 2)
	assert.ElementsMatch(t, []string{"a", "b"}, s.Keys())

	s.Clear()
	assert.Zero(t, s.Len())
	assert.False(t, s.Has("a"))
}

func TestContextAccessors(t *testing.T) {
	results := NewResultStore()
	results.Put("requirements", "stored")

	tc := NewContext(ContextParams{
		UserID:    "u1",
		SessionID: "s1",
		RunID:     "r1",
		Fields:    map[string]any{"plan": "premium"},
		Results:   results,
	})

	assert.Equal(t, "u1", tc.UserID())
	assert.Equal(t, "s1", tc.SessionID())
	assert.Equal(t, "r1", tc.RunID())

	v, ok := tc.Field("plan")
	assert.True(t, ok)
	assert.Equal(t, "premium", v)

	got, ok := tc.ToolResult("requirements")
	assert.True(t, ok)
	assert.Equal(t, "stored", got)

	_, ok = tc.ToolResult("missing")
	assert.False(t, ok)
}
