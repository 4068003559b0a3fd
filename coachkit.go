// Package coachkit provides a high-level façade over the agent loop and the
// two coaching orchestrations (coach creation and conversation). Most
// applications interact with this package by:
//  1. Creating a CoachKit via New() (optionally overriding the default
//     in-memory stores, the model and the logger)
//  2. Running the creation workflow (CreateCoach) for finished creator
//     sessions
//  3. Answering user messages (Respond / RespondStream)
//
// All defaults are safe for local development and testing; production
// deployments supply durable store implementations, a real model adapter
// and a structured logger.
package coachkit

import (
	"context"

	"github.com/fitforge/coachkit/agent"
	"github.com/fitforge/coachkit/background"
	"github.com/fitforge/coachkit/coach/conversation"
	"github.com/fitforge/coachkit/coach/creator"
	"github.com/fitforge/coachkit/config"
	"github.com/fitforge/coachkit/logging"
	"github.com/fitforge/coachkit/model"
	"github.com/fitforge/coachkit/store"
)

// Version of the coachkit module.
const Version = "0.1.0"

// Options configures a CoachKit instance.
type Options struct {
	// Config carries loop and model tuning. Defaults to config.Default().
	Config config.Config

	// Stores (default to in-memory implementations if not provided).
	Sessions store.SessionStore
	Configs  store.ConfigStore
	Workouts store.WorkoutStore
	Memories store.MemoryStore

	// Dispatcher for detached background jobs. Defaults to a GoDispatcher
	// wired with the memory-extraction handler.
	Dispatcher background.Dispatcher

	// ContextualUpdates enables overlapped status-line generation in
	// streaming replies.
	ContextualUpdates bool

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// CoachKit is the high-level façade aggregating the model, the stores and
// the two coaching agents.
type CoachKit struct {
	opts    Options
	creator *creator.Creator
	coach   *conversation.Coach
}

// New creates a CoachKit backed by the given model. Any unset store is
// initialized with an in-memory implementation.
func New(llm model.Model, optFns ...func(o *Options)) *CoachKit {
	opts := Options{
		Config:   config.Default(),
		Sessions: store.NewInMemorySessionStore(),
		Configs:  store.NewInMemoryConfigStore(),
		Workouts: store.NewInMemoryWorkoutStore(),
		Memories: store.NewInMemoryMemoryStore(),
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = background.NewGoDispatcher(
			map[string]background.Handler{
				conversation.MemoryExtractionJob: conversation.NewMemoryExtractionHandler(opts.Memories),
			},
			func(o *background.GoDispatcherOptions) { o.Logger = opts.Logger },
		)
	}

	cr := creator.New(llm, opts.Sessions, opts.Configs, func(o *creator.Options) {
		o.Agent = opts.Config.Agent
		o.Logger = opts.Logger
	})

	co := conversation.New(llm, opts.Workouts, opts.Memories, func(o *conversation.Options) {
		o.Agent = opts.Config.Agent
		o.Dispatcher = opts.Dispatcher
		o.ContextualUpdates = opts.ContextualUpdates
		o.Logger = opts.Logger
	})

	return &CoachKit{opts: opts, creator: cr, coach: co}
}

// CreateCoach runs the coach creation workflow for a finished creator
// session. An incomplete workflow is reported in the Outcome, not as an
// error.
func (k *CoachKit) CreateCoach(ctx context.Context, sessionID string) (*creator.Outcome, error) {
	return k.creator.Run(ctx, sessionID)
}

// Respond answers one user message through the conversational coach.
func (k *CoachKit) Respond(ctx context.Context, userID, sessionID, message string) (*conversation.Reply, error) {
	return k.coach.Respond(ctx, userID, sessionID, message)
}

// RespondStream answers one user message, yielding text chunks in arrival
// order followed by one terminal summary event.
func (k *CoachKit) RespondStream(ctx context.Context, userID, sessionID, message string) <-chan agent.StreamEvent {
	return k.coach.RespondStream(ctx, userID, sessionID, message)
}

// Creator exposes the underlying creation agent.
func (k *CoachKit) Creator() *creator.Creator { return k.creator }

// Coach exposes the underlying conversational agent.
func (k *CoachKit) Coach() *conversation.Coach { return k.coach }

// Sessions returns the configured session store.
func (k *CoachKit) Sessions() store.SessionStore { return k.opts.Sessions }

// Configs returns the configured coach config store.
func (k *CoachKit) Configs() store.ConfigStore { return k.opts.Configs }

// Workouts returns the configured workout store.
func (k *CoachKit) Workouts() store.WorkoutStore { return k.opts.Workouts }

// Memories returns the configured memory store.
func (k *CoachKit) Memories() store.MemoryStore { return k.opts.Memories }
