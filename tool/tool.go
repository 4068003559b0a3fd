// Package tool implements the tool calling subsystem that lets the agent
// loop invoke structured capabilities (store reads/writes, computations,
// side effects) with schema validated arguments, consistent error handling
// and a per-run result store keyed by semantic name.
package tool

import (
	"context"
	"fmt"

	"github.com/fitforge/coachkit/logging"
)

// Tool is an immutable descriptor binding a name and JSON input schema to an
// executable function the model may request.
//
// Implementations should:
//   - Provide clear, descriptive names (snake_case recommended)
//   - Define proper JSON schema for inputs
//   - Return structured error payloads for expected business failures;
//     returned Go errors are treated as unexpected failures of that call only
//   - Be safe for concurrent use when registered parallel-safe
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description provided to the model
	// so it understands when and how to use the tool.
	Description() string

	// InputSchema returns a JSON schema describing the expected arguments.
	InputSchema() map[string]any

	// Call executes the tool with decoded arguments and the per-run Context.
	Call(tc *Context, args map[string]any) (any, error)
}

// Context is the per-run value object passed by reference to every tool
// execution in a run. It carries caller identity, arbitrary domain fields
// and an accessor for prior tool results backed by the run's ResultStore.
type Context struct {
	ctx       context.Context
	userID    string
	sessionID string
	runID     string
	fields    map[string]any
	results   *ResultStore
	logger    logging.Logger
}

// ContextParams collects the inputs for NewContext.
type ContextParams struct {
	Ctx       context.Context
	UserID    string
	SessionID string
	RunID     string
	Fields    map[string]any
	Results   *ResultStore
	Logger    logging.Logger
}

// NewContext constructs a tool Context for one agent run.
func NewContext(p ContextParams) *Context {
	if p.Ctx == nil {
		p.Ctx = context.Background()
	}
	if p.Logger == nil {
		p.Logger = logging.NoOpLogger{}
	}
	if p.Results == nil {
		p.Results = NewResultStore()
	}
	return &Context{
		ctx:       p.Ctx,
		userID:    p.UserID,
		sessionID: p.SessionID,
		runID:     p.RunID,
		fields:    p.Fields,
		results:   p.Results,
		logger:    p.Logger,
	}
}

// Context returns the ambient cancellation context of the run.
func (tc *Context) Context() context.Context { return tc.ctx }

// UserID returns the caller's user identity.
func (tc *Context) UserID() string { return tc.userID }

// SessionID returns the session the run belongs to.
func (tc *Context) SessionID() string { return tc.sessionID }

// RunID returns the unique identifier of the current agent run.
func (tc *Context) RunID() string { return tc.runID }

// Logger returns the logger associated with the run.
func (tc *Context) Logger() logging.Logger { return tc.logger }

// Field returns an arbitrary domain field attached to the run.
func (tc *Context) Field(key string) (any, bool) {
	v, ok := tc.fields[key]
	return v, ok
}

// ToolResult returns the last stored output for a semantic result key.
func (tc *Context) ToolResult(key string) (any, bool) { return tc.results.Get(key) }

// Results returns the run's result store.
func (tc *Context) Results() *ResultStore { return tc.results }

// WithContext returns a copy bound to a different cancellation context.
// Used by the dispatcher to apply per-call timeouts.
func (tc *Context) WithContext(ctx context.Context) *Context {
	cp := *tc
	cp.ctx = ctx
	return &cp
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

// Error codes used across the dispatch pipeline.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeBlocked    = "BLOCKED"
)

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
