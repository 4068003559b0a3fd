package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fitforge/coachkit/agent"
	"github.com/fitforge/coachkit/background"
	"github.com/fitforge/coachkit/config"
	"github.com/fitforge/coachkit/logging"
	"github.com/fitforge/coachkit/model"
	"github.com/fitforge/coachkit/store"
	"github.com/fitforge/coachkit/tool"
)

// MemoryExtractionJob names the detached job fired after every reply.
const MemoryExtractionJob = "memory_extraction"

const systemPrompt = `You are the user's personal fitness coach. Be concrete and brief. Use the tools:
- log_workout whenever the user reports training they completed
- get_recent_workouts before commenting on consistency or progress
- save_user_memory for durable facts (injuries, preferences, standing goals)
- search_user_memories before advice that could clash with known injuries or preferences

get_recent_workouts and search_user_memories may be requested together in one turn. Never mention tools or internal errors to the user.`

const contextualUpdatePrompt = `Write one short present-tense status line (under 10 words, no punctuation at the end) telling a user their fitness coach is working on this message: %q`

// Reply is one completed conversational turn.
type Reply struct {
	Text      string
	RunID     string
	ToolCalls int
	Usage     model.Usage
	// Fallback marks a substituted message after a model failure; the
	// original error was logged, not surfaced.
	Fallback bool
}

// MemoryExtractionPayload is the JSON payload of a memory-extraction job.
type MemoryExtractionPayload struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Reply     string `json:"reply"`
}

// Options configures a Coach.
type Options struct {
	// Agent carries loop tuning (iteration cap, token limits, timeouts).
	Agent config.AgentConfig
	// Dispatcher receives the detached memory-extraction job after each
	// reply. Defaults to NoOpDispatcher.
	Dispatcher background.Dispatcher
	// ContextualUpdates enables the overlapped status-line generation in
	// RespondStream.
	ContextualUpdates bool
	// UpdateTimeout bounds how long RespondStream waits for a contextual
	// update after the main work finished. Defaults to 2s.
	UpdateTimeout time.Duration
	// Logger receives run and tool events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Coach answers user messages through the bounded tool loop. Safe for
// concurrent Respond calls; each call builds its own agent instance.
type Coach struct {
	llm      model.Model
	workouts store.WorkoutStore
	memories store.MemoryStore
	opts     Options
	logger   logging.Logger
}

// New constructs a Coach.
func New(llm model.Model, workouts store.WorkoutStore, memories store.MemoryStore, optFns ...func(o *Options)) *Coach {
	opts := Options{
		Agent:         config.Default().Agent,
		Dispatcher:    background.NoOpDispatcher{},
		UpdateTimeout: 2 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = background.NoOpDispatcher{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Coach{llm: llm, workouts: workouts, memories: memories, opts: opts, logger: opts.Logger}
}

// Respond answers one user message. Model failures are absorbed: the user
// receives the fallback text and the error is logged, so a degraded model
// never fails the surrounding request. After the reply a detached
// memory-extraction job is fired.
func (c *Coach) Respond(ctx context.Context, userID, sessionID, message string) (*Reply, error) {
	ag := c.newAgent(userID, sessionID)

	res, err := ag.Converse(ctx, message)
	if err != nil {
		c.logger.Error("conversation.model.failed", "user_id", userID, "session_id", sessionID, "error", err.Error())
		return &Reply{Text: c.opts.Agent.FallbackText, Fallback: true}, nil
	}

	c.dispatchMemoryExtraction(userID, sessionID, message, res.FinalText)

	return &Reply{
		Text:      res.FinalText,
		RunID:     res.RunID,
		ToolCalls: res.ToolCalls,
		Usage:     res.Usage,
	}, nil
}

// RespondStream answers one user message, forwarding text chunks in arrival
// order followed by one terminal summary event. When contextual updates are
// enabled, a short status line is generated concurrently with the main work
// and emitted as a status event; it is best-effort and dropped when slow or
// failing. Model failures are absorbed the same way as in Respond.
func (c *Coach) RespondStream(ctx context.Context, userID, sessionID, message string) <-chan agent.StreamEvent {
	out := make(chan agent.StreamEvent, 32)

	go func() {
		defer close(out)

		var updateCh <-chan string
		if c.opts.ContextualUpdates {
			updateCh = c.startContextualUpdate(ctx, message)
		}

		ag := c.newAgent(userID, sessionID)
		events, errCh := ag.ConverseStream(ctx, message)

		var finalText string
		for events != nil {
			select {
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if ev.Type == agent.StreamEventSummary && ev.Result != nil {
					finalText = ev.Result.FinalText
				}
				forward(ctx, out, ev)
			case update, ok := <-updateCh:
				updateCh = nil
				if ok && update != "" {
					forward(ctx, out, agent.StreamEvent{Type: agent.StreamEventStatus, Text: update})
				}
			case <-ctx.Done():
				return
			}
		}

		if err, ok := <-errCh; ok && err != nil {
			c.logger.Error("conversation.model.failed", "user_id", userID, "session_id", sessionID, "error", err.Error())
			forward(ctx, out, agent.StreamEvent{Type: agent.StreamEventText, Text: c.opts.Agent.FallbackText})
			forward(ctx, out, agent.StreamEvent{
				Type:   agent.StreamEventSummary,
				Result: &agent.Result{FinalText: c.opts.Agent.FallbackText, StopReason: model.StopEndTurn},
			})
			return
		}

		c.dispatchMemoryExtraction(userID, sessionID, message, finalText)
	}()

	return out
}

func (c *Coach) newAgent(userID, sessionID string) *agent.Agent {
	reg := tool.NewRegistry()
	c.registerTools(reg)

	return agent.New(c.llm, reg, func(o *agent.Options) {
		o.SystemPrompt = systemPrompt
		o.UserID = userID
		o.SessionID = sessionID
		o.MaxIterations = c.opts.Agent.MaxIterations
		o.FallbackText = c.opts.Agent.FallbackText
		o.MaxHistoryMessages = c.opts.Agent.MaxHistoryMessages
		o.ToolTimeout = c.opts.Agent.ToolTimeout
		o.MaxTokens = c.opts.Agent.MaxTokens
		if t := c.opts.Agent.Temperature; t > 0 {
			o.Temperature = &t
		}
		o.Logger = c.logger
	})
}

// startContextualUpdate generates a short status line concurrently with the
// main work. The channel delivers at most one value; a failed or slow
// generation closes it empty.
func (c *Coach) startContextualUpdate(ctx context.Context, message string) <-chan string {
	ch := make(chan string, 1)
	go func() {
		defer close(ch)

		updateCtx, cancel := context.WithTimeout(ctx, c.opts.UpdateTimeout)
		defer cancel()

		resp, err := c.llm.Invoke(updateCtx, model.Request{
			Messages:  []model.Message{model.NewTextMessage(model.RoleUser, fmt.Sprintf(contextualUpdatePrompt, message))},
			MaxTokens: 64,
		})
		if err != nil {
			c.logger.Debug("conversation.update.failed", "error", err.Error())
			return
		}
		ch <- resp.Text()
	}()
	return ch
}

// dispatchMemoryExtraction fires the detached job; the caller never
// observes its completion.
func (c *Coach) dispatchMemoryExtraction(userID, sessionID, message, reply string) {
	payload, err := json.Marshal(MemoryExtractionPayload{
		UserID:    userID,
		SessionID: sessionID,
		Message:   message,
		Reply:     reply,
	})
	if err != nil {
		c.logger.Error("conversation.job.marshal_failed", "job", MemoryExtractionJob, "error", err.Error())
		return
	}
	c.opts.Dispatcher.Dispatch(background.Job{Name: MemoryExtractionJob, Payload: payload})
}

func forward(ctx context.Context, out chan<- agent.StreamEvent, ev agent.StreamEvent) {
	select {
	case <-ctx.Done():
	case out <- ev:
	}
}
