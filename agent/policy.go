package agent

import (
	"encoding/json"

	"github.com/fitforge/coachkit/tool"
)

// BlockResult is an authoritative veto of one specific tool call. It is not
// a bug signal; the reason is reported back to the model in-band so it can
// explain the refusal to its caller.
type BlockResult struct {
	Reason string `json:"reason"`
}

// BlockingPolicy decides, before every tool execution, whether the call must
// be vetoed. A nil return lets the call proceed. The policy sees the prior
// tool results of the run so safety-critical transitions (for example
// "persist only after validation passed") can be enforced in code rather
// than in the prompt.
type BlockingPolicy func(toolName string, input json.RawMessage, results *tool.ResultStore) *BlockResult

// NoBlocking is the default policy: every tool call proceeds.
func NoBlocking(string, json.RawMessage, *tool.ResultStore) *BlockResult { return nil }

// RetryDecision instructs the caller to drive one more Converse call with a
// stronger follow-up prompt. Prior tool results are preserved so completed
// steps are not redone.
type RetryDecision struct {
	Prompt string
}

// RetryPolicy inspects a finished run for symptoms of a stalled workflow
// (for example: too few tools invoked and the response reads like a
// clarifying question nobody will answer). A nil return means no retry. The
// loop itself never retries; retry is an explicit second Converse call
// driven by the caller.
type RetryPolicy func(res *Result, results *tool.ResultStore) *RetryDecision

// NoRetry is the default policy: never retry.
func NoRetry(*Result, *tool.ResultStore) *RetryDecision { return nil }
