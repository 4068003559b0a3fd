// Package background provides a detached-task dispatcher: fire-and-forget
// named jobs with JSON payloads. Job failures are logged but never observed
// by the caller; nothing in the core waits on completion.
package background

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fitforge/coachkit/logging"
)

// Job is one unit of detached work: a name routing it to a handler plus an
// opaque JSON payload.
type Job struct {
	Name    string
	Payload json.RawMessage
}

// Handler executes one job. Returned errors are logged by the dispatcher
// and go nowhere else.
type Handler func(ctx context.Context, job Job) error

// Dispatcher fires a background job without waiting for it. Dispatch must
// return promptly; the job runs after the calling request has completed.
type Dispatcher interface {
	Dispatch(job Job)
}

// GoDispatcher runs each job in its own goroutine against a registered
// handler. Jobs run detached from the dispatching request's context so a
// finished request does not cancel its side work; each job gets its own
// timeout instead.
type GoDispatcher struct {
	handlers map[string]Handler
	timeout  time.Duration
	logger   logging.Logger
}

// GoDispatcherOptions configures a GoDispatcher.
type GoDispatcherOptions struct {
	// JobTimeout bounds each job's execution. Defaults to 30s.
	JobTimeout time.Duration
	// Logger receives job lifecycle events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// NewGoDispatcher constructs a dispatcher with the given handler table.
func NewGoDispatcher(handlers map[string]Handler, optFns ...func(o *GoDispatcherOptions)) *GoDispatcher {
	opts := GoDispatcherOptions{
		JobTimeout: 30 * time.Second,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	reg := make(map[string]Handler, len(handlers))
	for name, h := range handlers {
		reg[name] = h
	}
	return &GoDispatcher{handlers: reg, timeout: opts.JobTimeout, logger: opts.Logger}
}

// Dispatch spawns the job and returns immediately. Unknown job names and
// handler errors are logged, never surfaced.
func (d *GoDispatcher) Dispatch(job Job) {
	handler, ok := d.handlers[job.Name]
	if !ok {
		d.logger.Warn("background.job.unknown", "job", job.Name)
		return
	}
	d.logger.Debug("background.job.dispatched", "job", job.Name)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		start := time.Now()
		if err := handler(ctx, job); err != nil {
			d.logger.Error("background.job.failed", "job", job.Name, "duration_ms", time.Since(start).Milliseconds(), "error", err.Error())
			return
		}
		d.logger.Debug("background.job.done", "job", job.Name, "duration_ms", time.Since(start).Milliseconds())
	}()
}

// NoOpDispatcher discards every job. Useful default when no background
// handlers are configured.
type NoOpDispatcher struct{}

// Dispatch implements Dispatcher and does nothing.
func (NoOpDispatcher) Dispatch(Job) {}
