package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fitforge/coachkit/logging"
	"github.com/fitforge/coachkit/model"
	"github.com/fitforge/coachkit/tool"
)

// DefaultMaxIterations bounds the model-call/tool-exec cycle of one run.
const DefaultMaxIterations = 20

// DefaultFallbackText is returned when a run terminates without usable text.
const DefaultFallbackText = "I wasn't able to complete that request. Please try again in a moment."

// StopIterationCap is the loop-level terminal state reported when a run
// exhausts its iteration cap before the model finishes.
const StopIterationCap model.StopReason = "iteration_cap"

// Options configures an Agent instance. Use functional options with New to
// override defaults.
type Options struct {
	SystemPrompt string

	// Caller identity carried into every tool execution.
	UserID    string
	SessionID string

	// Fields holds arbitrary domain values exposed to tools via Context.Field.
	Fields map[string]any

	// MaxIterations caps model-call/tool-exec cycles per run (default 20).
	MaxIterations int

	// FallbackText substitutes for empty terminal output.
	FallbackText string

	// MaxHistoryMessages trims conversation history sent to the model.
	// Zero means unlimited.
	MaxHistoryMessages int

	// ToolTimeout bounds each individual tool execution. Zero disables.
	ToolTimeout time.Duration

	Temperature *float64
	MaxTokens   int64

	// Blocking vetoes individual tool calls (default: never block).
	Blocking BlockingPolicy

	// Retry detects stalled runs after the fact (default: never retry).
	Retry RetryPolicy

	Logger logging.Logger
}

// Agent drives the bounded Reason→Act→Reflect cycle against a tool-using
// chat-completion model. It owns the conversation history and the per-run
// tool ResultStore; one Agent instance must not serve concurrent runs.
type Agent struct {
	llm      model.Model
	registry *tool.Registry
	opts     Options
	logger   logging.Logger

	history []model.Message
	results *tool.ResultStore
	runID   string
}

// New creates an Agent with sensible defaults: a 20 iteration cap, no
// blocking, no retry and a no-op logger.
func New(llm model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Agent {
	opts := Options{
		MaxIterations: DefaultMaxIterations,
		FallbackText:  DefaultFallbackText,
		Blocking:      NoBlocking,
		Retry:         NoRetry,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.FallbackText == "" {
		opts.FallbackText = DefaultFallbackText
	}
	if opts.Blocking == nil {
		opts.Blocking = NoBlocking
	}
	if opts.Retry == nil {
		opts.Retry = NoRetry
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if registry == nil {
		registry = tool.NewRegistry()
	}

	return &Agent{
		llm:      llm,
		registry: registry,
		opts:     opts,
		logger:   opts.Logger,
		results:  tool.NewResultStore(),
	}
}

// Result is the terminal outcome of one Converse call.
type Result struct {
	FinalText  string
	StopReason model.StopReason
	Iterations int
	ToolCalls  int // tool-use blocks handled (including blocked / not-found)
	ToolErrors int // error tool-results among them
	Usage      model.Usage
	RunID      string
}

// History returns a copy of the conversation history accumulated so far.
func (a *Agent) History() []model.Message {
	out := make([]model.Message, len(a.history))
	copy(out, a.history)
	return out
}

// Results returns the tool result store shared across this agent's runs.
// It is cleared only at caller discretion (see tool.ResultStore).
func (a *Agent) Results() *tool.ResultStore { return a.results }

// Registry returns the agent's tool registry.
func (a *Agent) Registry() *tool.Registry { return a.registry }

// ShouldRetry consults the configured retry policy for a finished run.
func (a *Agent) ShouldRetry(res *Result) *RetryDecision {
	return a.opts.Retry(res, a.results)
}

// Converse appends the user turn (optionally multimodal) to history, then
// repeatedly invokes the model with full history, system prompt and tool
// declarations, executing requested tools between turns, until a terminal
// stop reason or the iteration cap. Model/API errors are fatal to the call;
// tool-level failures are reported in-band and never abort the run.
func (a *Agent) Converse(ctx context.Context, userMessage string, attachments ...model.ImageBlock) (*Result, error) {
	a.beginRun()
	a.history = append(a.history, model.NewUserMessage(userMessage, attachments...))

	res := &Result{RunID: a.runID}

	a.logger.Debug("agent.loop.start", "run_id", a.runID, "tools", a.registry.Len())

	var bestText string

	for iter := 1; iter <= a.opts.MaxIterations; iter++ {
		res.Iterations = iter

		start := time.Now()
		resp, err := a.llm.Invoke(ctx, a.buildRequest())
		if err != nil {
			a.logger.Error("agent.model.error", "run_id", a.runID, "iteration", iter, "error", err.Error())
			return nil, fmt.Errorf("model invocation failed: %w", err)
		}
		a.logger.Debug("agent.model.turn",
			"run_id", a.runID,
			"iteration", iter,
			"stop_reason", string(resp.StopReason),
			"duration_ms", time.Since(start).Milliseconds(),
		)

		res.Usage.Add(resp.Usage)
		res.StopReason = resp.StopReason

		switch resp.StopReason {
		case model.StopToolUse:
			if text := resp.Text(); text != "" {
				bestText = text
			}
			// One assistant entry with all blocks, then one user entry with
			// all tool results, mirroring the chat-completion protocol.
			a.history = append(a.history, resp.Message)
			resultBlocks := a.handleToolUse(ctx, resp.ToolUses(), res)
			a.history = append(a.history, model.Message{Role: model.RoleUser, Blocks: resultBlocks})

		case model.StopEndTurn, model.StopSequence:
			a.history = append(a.history, resp.Message)
			res.FinalText = resp.Text()
			a.endRun(res)
			return res, nil

		case model.StopMaxTokens, model.StopContentFiltered:
			text := resp.Text()
			if text == "" {
				text = a.opts.FallbackText
			}
			a.history = append(a.history, resp.Message)
			res.FinalText = text
			a.endRun(res)
			return res, nil

		default:
			// Unknown stop reasons terminate conservatively with whatever
			// text the turn produced.
			a.history = append(a.history, resp.Message)
			res.FinalText = resp.Text()
			a.endRun(res)
			return res, nil
		}
	}

	res.StopReason = StopIterationCap
	res.FinalText = bestText
	if res.FinalText == "" {
		res.FinalText = a.opts.FallbackText
	}

	a.logger.Warn("agent.loop.iteration_cap", "run_id", a.runID, "iterations", res.Iterations)
	a.endRun(res)

	return res, nil
}

func (a *Agent) beginRun() {
	a.runID = uuid.NewString()
}

func (a *Agent) endRun(res *Result) {
	a.logger.Info("agent.loop.complete",
		"run_id", a.runID,
		"stop_reason", string(res.StopReason),
		"iterations", res.Iterations,
		"tool_calls", res.ToolCalls,
		"tool_errors", res.ToolErrors,
		"tokens", res.Usage.Total(),
	)
}

func (a *Agent) buildRequest() model.Request {
	return model.Request{
		System:      a.opts.SystemPrompt,
		Messages:    a.trimmedHistory(),
		Tools:       a.registry.Definitions(),
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
	}
}

// trimmedHistory bounds the messages sent to the model. Trimming only cuts
// at plain user-message boundaries so assistant tool-use turns are never
// separated from their grouped tool results.
func (a *Agent) trimmedHistory() []model.Message {
	maxMsgs := a.opts.MaxHistoryMessages
	if maxMsgs <= 0 || len(a.history) <= maxMsgs {
		return a.history
	}

	start := len(a.history) - maxMsgs
	for start < len(a.history) {
		m := a.history[start]
		if m.Role == model.RoleUser && len(m.ToolResults()) == 0 {
			break
		}
		start++
	}
	if start >= len(a.history) {
		// Degenerate case: no clean boundary in range, keep the full tail.
		start = len(a.history) - maxMsgs
	}

	return a.history[start:]
}

func (a *Agent) toolContext(ctx context.Context) *tool.Context {
	return tool.NewContext(tool.ContextParams{
		Ctx:       ctx,
		UserID:    a.opts.UserID,
		SessionID: a.opts.SessionID,
		RunID:     a.runID,
		Fields:    a.opts.Fields,
		Results:   a.results,
		Logger:    a.logger,
	})
}
