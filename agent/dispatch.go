package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fitforge/coachkit/model"
)

// blockedPayload is the structured in-band body of a vetoed tool call.
type blockedPayload struct {
	Error   bool   `json:"error"`
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason"`
}

// handleToolUse executes every tool-use block of one model turn and returns
// exactly one tool-result block per request, in the original request order.
// Lookup misses, blocked calls, execution errors and panics all become error
// tool-results; nothing here is fatal to the run.
func (a *Agent) handleToolUse(ctx context.Context, uses []model.ToolUseBlock, res *Result) []model.Block {
	n := len(uses)
	if n == 0 {
		return nil
	}

	results := make([]model.ToolResultBlock, n)

	names := make([]string, n)
	for i, use := range uses {
		names[i] = use.Name
	}

	batchStart := time.Now()

	if a.registry.ParallelSafe(names) {
		g, gctx := errgroup.WithContext(ctx)
		for i, use := range uses {
			g.Go(func() error {
				results[i] = a.executeOne(gctx, use)
				return nil
			})
		}
		_ = g.Wait() // executeOne never returns an error; failures are in-band
	} else {
		for i, use := range uses {
			results[i] = a.executeOne(ctx, use)
		}
	}

	blocks := make([]model.Block, 0, n)
	for _, r := range results {
		res.ToolCalls++
		if r.IsError {
			res.ToolErrors++
		}
		blocks = append(blocks, r)
	}

	a.logger.Debug("agent.tools.batch.complete",
		"run_id", a.runID,
		"count", n,
		"parallel", a.registry.ParallelSafe(names),
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return blocks
}

// executeOne runs a single tool-use block through lookup, blocking policy
// and execution, returning a success or error tool-result.
func (a *Agent) executeOne(ctx context.Context, use model.ToolUseBlock) model.ToolResultBlock {
	t, ok := a.registry.Lookup(use.Name)
	if !ok {
		a.logger.Warn("agent.tool.not_found", "run_id", a.runID, "tool", use.Name)
		return errorResult(use.ID, fmt.Sprintf("Tool '%s' not found", use.Name))
	}

	if br := a.opts.Blocking(use.Name, use.Input, a.results); br != nil {
		a.logger.Info("agent.tool.blocked", "run_id", a.runID, "tool", use.Name, "reason", br.Reason)
		body, err := json.Marshal(blockedPayload{Error: true, Blocked: true, Reason: br.Reason})
		if err != nil {
			return errorResult(use.ID, br.Reason)
		}
		return errorResult(use.ID, string(body))
	}

	args := make(map[string]any)
	if len(use.Input) > 0 {
		if err := json.Unmarshal(use.Input, &args); err != nil {
			a.logger.Warn("agent.tool.bad_input", "run_id", a.runID, "tool", use.Name, "error", err.Error())
			return errorResult(use.ID, fmt.Sprintf("invalid tool input: %v", err))
		}
	}

	tc := a.toolContext(ctx)
	if a.opts.ToolTimeout > 0 {
		callCtx, cancel := context.WithTimeout(ctx, a.opts.ToolTimeout)
		defer cancel()
		tc = tc.WithContext(callCtx)
	}

	start := time.Now()
	var (
		output any
		err    error
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tool panicked: %v", r)
				a.logger.Error("agent.tool.panic", "run_id", a.runID, "tool", use.Name, "stack", string(debug.Stack()))
			}
		}()
		output, err = t.Call(tc, args)
	}()
	dur := time.Since(start)

	a.logger.Info("agent.tool.executed",
		"run_id", a.runID,
		"tool", use.Name,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)

	if err != nil {
		return errorResult(use.ID, err.Error())
	}

	a.results.Put(a.registry.ResultKey(use.Name), output)

	return model.ToolResultBlock{ToolUseID: use.ID, Content: serializeOutput(output)}
}

// serializeOutput renders a tool's output for the model. Strings pass
// through; everything else is JSON encoded.
func serializeOutput(output any) string {
	switch v := output.(type) {
	case nil:
		return "null"
	case string:
		return v
	default:
		body, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(body)
	}
}

func errorResult(toolUseID, message string) model.ToolResultBlock {
	return model.ToolResultBlock{ToolUseID: toolUseID, Content: message, IsError: true}
}
