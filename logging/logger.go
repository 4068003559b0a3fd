// Package logging provides a small abstraction over slog so the rest of
// coachkit can depend on a minimal interface (Logger) while letting users
// plug any structured logger. It also offers a richer CoachLogger with
// contextual helpers (user, session, run) and domain specific helpers for
// tool and model call timing.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger defines the minimal logging interface used throughout coachkit.
// Users can provide their own implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// LoggerConfig configures construction of a CoachLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
	UserID    string
	SessionID string
	RunID     string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout}
}

// CoachLogger wraps slog.Logger adding contextual cloning helpers and domain
// convenience methods. Cheap to copy via With* methods.
type CoachLogger struct {
	logger    *slog.Logger
	level     LogLevel
	component string
	userID    string
	sessionID string
	runID     string
}

// NewLogger builds a CoachLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *CoachLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &CoachLogger{
		logger:    slog.New(handler),
		level:     cfg.Level,
		component: cfg.Component,
		userID:    cfg.UserID,
		sessionID: cfg.SessionID,
		runID:     cfg.RunID,
	}
}

// NewSlogLogger creates a new CoachLogger with the specified level and format.
func NewSlogLogger(level LogLevel, format string, addSource bool) *CoachLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *CoachLogger) clone() *CoachLogger {
	nl := *l
	return &nl
}

// WithComponent sets the logical component (agent, tool, store, etc.).
func (l *CoachLogger) WithComponent(c string) *CoachLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithRun attaches user, session and run identifiers.
func (l *CoachLogger) WithRun(userID, sessionID, runID string) *CoachLogger {
	nl := l.clone()
	nl.userID = userID
	nl.sessionID = sessionID
	nl.runID = runID
	return nl
}

func (l *CoachLogger) attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 4)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.userID != "" {
		attrs = append(attrs, slog.String("user_id", l.userID))
	}
	if l.sessionID != "" {
		attrs = append(attrs, slog.String("session_id", l.sessionID))
	}
	if l.runID != "" {
		attrs = append(attrs, slog.String("run_id", l.runID))
	}
	return attrs
}

func (l *CoachLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	l.logger.LogAttrs(context.Background(), level, msg, append(l.attrs(), argsToAttrs(args)...)...)
}

func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}

// Debug logs at debug level.
func (l *CoachLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *CoachLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *CoachLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *CoachLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// LogToolCall records execution details for a tool invocation.
func (l *CoachLogger) LogToolCall(tool string, dur time.Duration, success bool, err error) {
	args := []any{"tool_name", tool, "duration_ms", dur.Milliseconds(), "success", success}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	if success {
		l.Info("Tool execution completed", args...)
		return
	}
	l.Error("Tool execution failed", args...)
}

// LogModelCall records model call latency, stop reason, token usage and success.
func (l *CoachLogger) LogModelCall(model, stopReason string, tokens int, dur time.Duration, err error) {
	args := []any{"model", model, "stop_reason", stopReason, "token_count", tokens, "duration_ms", dur.Milliseconds()}
	if err != nil {
		l.Error("Model call failed", append(args, "error", err.Error())...)
		return
	}
	l.Info("Model call completed", args...)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
