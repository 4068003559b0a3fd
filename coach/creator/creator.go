package creator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/fitforge/coachkit/agent"
	"github.com/fitforge/coachkit/coach"
	"github.com/fitforge/coachkit/config"
	"github.com/fitforge/coachkit/logging"
	"github.com/fitforge/coachkit/model"
	"github.com/fitforge/coachkit/store"
	"github.com/fitforge/coachkit/tool"
)

// minToolCallsForProgress is the retry threshold: a run that invoked fewer
// tools than this and ended on a clarifying question is considered stalled.
const minToolCallsForProgress = 3

const retryPrompt = "Nobody is available to answer questions in this job. " +
	"Do not ask anything further. Assume sensible defaults for any missing detail, " +
	"skip workflow steps whose results already exist, and finish the remaining steps " +
	"through to saving the coach configuration."

const systemPrompt = `You are the coach creation workflow for a fitness platform. Build a complete coach configuration for the current session by calling the available tools in order:

1. load_session_requirements
2. select_personality_template and select_methodology_template (independent, you may request both in one turn)
3. generate_coach_profile
4. assemble_coach_config
5. validate_coach_config
6. normalize_coach_config, only if validation reported fixable issues, then validate again
7. save_coach_config, only after validation reports is_valid true

Work without asking the user anything; this runs as a background job. When a tool reports an error, adjust and continue. Finish with one short sentence summarizing the created coach.`

// Outcome is the semantic result of one creation run. Workflow
// incompleteness is a value, not an error: Success false with Skipped true
// means the model stopped before persisting and the caller may re-run.
type Outcome struct {
	Success  bool
	Skipped  bool
	Reason   string
	ConfigID string
	Response string
}

// Options configures a Creator.
type Options struct {
	// Agent carries loop tuning (iteration cap, token limits, timeouts).
	Agent config.AgentConfig
	// Logger receives run and tool events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Creator runs the coach creation workflow against a chat-completion model
// and the session/config stores. Safe for concurrent Run calls; each run
// builds its own agent instance.
type Creator struct {
	llm      model.Model
	sessions store.SessionStore
	configs  store.ConfigStore
	opts     Options
	logger   logging.Logger
}

// New constructs a Creator.
func New(llm model.Model, sessions store.SessionStore, configs store.ConfigStore, optFns ...func(o *Options)) *Creator {
	opts := Options{Agent: config.Default().Agent}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Creator{llm: llm, sessions: sessions, configs: configs, opts: opts, logger: opts.Logger}
}

// Run drives one creation workflow for the session. The model sequences the
// steps; persistence is blocked in code until validation passes. When the
// first pass stalls on a clarifying question, the run is retried exactly
// once with a stronger prompt, preserving completed tool results so finished
// steps are not redone. Model/API errors are returned as errors; an
// incomplete workflow is returned as a non-exceptional Outcome.
func (c *Creator) Run(ctx context.Context, sessionID string) (*Outcome, error) {
	req, err := c.sessions.Requirements(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	reg := tool.NewRegistry()
	c.registerTools(reg)

	ag := agent.New(c.llm, reg, func(o *agent.Options) {
		o.SystemPrompt = systemPrompt
		o.UserID = req.UserID
		o.SessionID = sessionID
		o.MaxIterations = c.opts.Agent.MaxIterations
		o.FallbackText = c.opts.Agent.FallbackText
		o.MaxHistoryMessages = c.opts.Agent.MaxHistoryMessages
		o.ToolTimeout = c.opts.Agent.ToolTimeout
		o.MaxTokens = c.opts.Agent.MaxTokens
		if t := c.opts.Agent.Temperature; t > 0 {
			o.Temperature = &t
		}
		o.Blocking = BlockUnvalidatedSave
		o.Retry = StalledWorkflowRetry
		o.Logger = c.logger
	})

	c.logger.Info("creator.run.start", "session_id", sessionID, "user_id", req.UserID)

	res, err := ag.Converse(ctx, fmt.Sprintf("Create the coach for session %s now.", sessionID))
	if err != nil {
		return nil, err
	}

	if decision := ag.ShouldRetry(res); decision != nil {
		c.logger.Warn("creator.run.retry", "session_id", sessionID, "run_id", res.RunID, "tool_calls", res.ToolCalls)
		res, err = ag.Converse(ctx, decision.Prompt)
		if err != nil {
			return nil, err
		}
	}

	outcome := c.outcome(ag.Results(), res)
	c.logger.Info("creator.run.complete",
		"session_id", sessionID,
		"success", outcome.Success,
		"skipped", outcome.Skipped,
		"config_id", outcome.ConfigID,
	)
	return outcome, nil
}

// outcome derives the semantic result from the run's result store.
func (c *Creator) outcome(results *tool.ResultStore, res *agent.Result) *Outcome {
	if v, ok := results.Get(keySaved); ok {
		if receipt, ok := v.(SaveReceipt); ok && receipt.Saved {
			return &Outcome{Success: true, ConfigID: receipt.ConfigID, Response: res.FinalText}
		}
	}

	reason := "workflow stopped before saving a coach configuration"
	if v, ok := results.Get(keyValidation); ok {
		if vr, ok := v.(coach.ValidationResult); ok && !vr.IsValid {
			reason = "validation failed: " + strings.Join(vr.Issues, "; ")
		}
	}
	return &Outcome{Skipped: true, Reason: reason, Response: res.FinalText}
}

// BlockUnvalidatedSave is the creation workflow's blocking policy: the
// persist tool is vetoed until the stored validation result reports valid.
// The check runs on every attempt, so a stale invalid result keeps blocking
// until validation is re-run and passes.
func BlockUnvalidatedSave(toolName string, _ json.RawMessage, results *tool.ResultStore) *agent.BlockResult {
	if toolName != toolSaveConfig {
		return nil
	}

	v, ok := results.Get(keyValidation)
	if !ok {
		return &agent.BlockResult{Reason: "coach config has not been validated, call " + toolValidateConfig + " first"}
	}
	vr, ok := v.(coach.ValidationResult)
	if !ok {
		return &agent.BlockResult{Reason: "stored validation result is unreadable, call " + toolValidateConfig + " again"}
	}
	if !vr.IsValid {
		return &agent.BlockResult{Reason: "validation failed: " + strings.Join(vr.Issues, "; ")}
	}
	return nil
}

var clarifyingPattern = regexp.MustCompile(`(?i)(could you|can you|would you|do you |what (kind|type|level|goals?)|which |how (many|often)|please (provide|confirm|clarify|share|tell)|let me know)`)

// StalledWorkflowRetry detects the degenerate case of the model asking a
// clarifying question in a fire-and-forget job nobody reads: near-zero tool
// invocation combined with interrogative text. It never fires once a config
// was saved.
func StalledWorkflowRetry(res *agent.Result, results *tool.ResultStore) *agent.RetryDecision {
	if results.Has(keySaved) {
		return nil
	}
	if res.ToolCalls >= minToolCallsForProgress {
		return nil
	}
	if !isClarifyingQuestion(res.FinalText) {
		return nil
	}
	return &agent.RetryDecision{Prompt: retryPrompt}
}

func isClarifyingQuestion(text string) bool {
	return strings.Contains(text, "?") && clarifyingPattern.MatchString(text)
}
