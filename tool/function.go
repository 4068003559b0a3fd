package tool

import (
	"fmt"
	"time"

	"github.com/fitforge/coachkit/internal/schemautil"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a
// coachkit tool. It validates model supplied arguments against the declared
// schema before execution and normalizes failures into *ToolError with
// consistent codes (VALIDATION_ERROR for schema mismatches, EXECUTION_ERROR
// for function errors; custom codes are preserved when the function returns
// a *ToolError directly).
//
// A FunctionTool has no internal mutable state after construction and is
// safe for concurrent use by multiple goroutines.
type FunctionTool struct {
	// Tool identifier (snake_case recommended)
	name string
	// Human-readable description shown to models
	description string
	// JSON schema describing accepted arguments
	inputSchema map[string]any
	// User supplied implementation
	fn func(tc *Context, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and function.
//
// Example:
//
//	logTool := NewFunctionTool(
//	  "log_workout",
//	  "Record a completed workout for the user",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "discipline": map[string]any{"type": "string"},
//	      "duration_minutes": map[string]any{"type": "integer"},
//	    },
//	    "required": []string{"discipline"},
//	  },
//	  func(tc *Context, args map[string]any) (any, error) { ... },
//	)
func NewFunctionTool(
	name, description string,
	inputSchema map[string]any,
	fn func(tc *Context, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		inputSchema: inputSchema,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the input schema from a struct using
// reflection, equivalent to schemautil.Schema(structType). Convenient for
// typed argument containers.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(tc *Context, args map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, schemautil.Schema(structType), fn)
}

// Name returns the unique tool name used in tool declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// InputSchema returns the JSON schema describing expected arguments.
func (t *FunctionTool) InputSchema() map[string]any { return t.inputSchema }

// Call validates the provided args against the declared schema then invokes
// the underlying function. Validation or execution failures are wrapped (or
// passed through) as *ToolError for uniform downstream handling.
func (t *FunctionTool) Call(tc *Context, args map[string]any) (any, error) {
	logger := tc.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "run_id", tc.RunID())

	if err := schemautil.Validate(args, t.inputSchema); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(tc, args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok { // already a ToolError, just log and forward
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)

			return nil, toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
