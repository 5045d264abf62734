package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
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

// ParseLevel converts a configuration string (debug, info, warn, error) into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger defines the minimal logging interface for reviewmesh.
// Arguments are slog style alternating key/value pairs.
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

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}

// ReviewLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods. It should be cheap to copy via With* methods.
type ReviewLogger struct {
	logger    *slog.Logger
	level     LogLevel
	context   map[string]any
	component string
	reviewID  string
	agentID   string
}

// LoggerConfig configures construction of a ReviewLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr, CustomAttrs: map[string]any{}}
}

// NewLogger builds a ReviewLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *ReviewLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	ctx := make(map[string]any, len(cfg.CustomAttrs))
	for k, v := range cfg.CustomAttrs {
		ctx[k] = v
	}
	return &ReviewLogger{logger: slog.New(handler), level: cfg.Level, context: ctx, component: cfg.Component}
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

func (l *ReviewLogger) clone() *ReviewLogger {
	nl := *l
	nl.context = make(map[string]any, len(l.context))
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithComponent sets the logical component (queue, pipeline, cache, etc.).
func (l *ReviewLogger) WithComponent(c string) *ReviewLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithReview attaches a review identifier.
func (l *ReviewLogger) WithReview(id string) *ReviewLogger {
	nl := l.clone()
	nl.reviewID = id
	return nl
}

// WithAgent attaches an agent identifier.
func (l *ReviewLogger) WithAgent(id string) *ReviewLogger {
	nl := l.clone()
	nl.agentID = id
	return nl
}

func (l *ReviewLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.context)+3)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.reviewID != "" {
		attrs = append(attrs, slog.String("review_id", l.reviewID))
	}
	if l.agentID != "" {
		attrs = append(attrs, slog.String("agent_id", l.agentID))
	}
	for k, v := range l.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *ReviewLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(l.buildAttrs()...)
	r.Add(args...)
	_ = l.logger.Handler().Handle(context.Background(), r)
}

// Debug logs at debug level.
func (l *ReviewLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *ReviewLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *ReviewLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *ReviewLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// LogGeneration records latency and outcome of a generation call covering n prompts.
func LogGeneration(l Logger, model string, prompts int, dur time.Duration, err error) {
	args := []any{"model", model, "prompt_count", prompts, "duration", dur, "success", err == nil}
	if err != nil {
		l.Error("Generation failed", append(args, "error", err.Error())...)
		return
	}
	l.Debug("Generation completed", args...)
}

// LogAgentRun records one agent execution within a review. l is expected to
// be scoped with ForAgent.
func LogAgentRun(l Logger, findings int, dur time.Duration, fallback bool) {
	l.Debug("Agent run completed", "finding_count", findings, "duration", dur, "rules_fallback", fallback)
}

// ForReview scopes l to a review. A *ReviewLogger gets WithReview; other
// loggers get review_id prepended to every call.
func ForReview(l Logger, id string) Logger {
	return scope(l, id, (*ReviewLogger).WithReview, "review_id")
}

// ForAgent scopes l to an agent the same way ForReview does.
func ForAgent(l Logger, id string) Logger {
	return scope(l, id, (*ReviewLogger).WithAgent, "agent_id")
}

func scope(l Logger, id string, with func(*ReviewLogger, string) *ReviewLogger, key string) Logger {
	switch v := l.(type) {
	case nil, NoOpLogger:
		return OrNoOp(l)
	case *ReviewLogger:
		return with(v, id)
	default:
		return scopedLogger{Logger: l, args: []any{key, id}}
	}
}

// scopedLogger prepends fixed args to every call.
type scopedLogger struct {
	Logger
	args []any
}

func (s scopedLogger) with(args []any) []any {
	return append(s.args[:len(s.args):len(s.args)], args...)
}

func (s scopedLogger) Debug(msg string, args ...any) { s.Logger.Debug(msg, s.with(args)...) }
func (s scopedLogger) Info(msg string, args ...any)  { s.Logger.Info(msg, s.with(args)...) }
func (s scopedLogger) Warn(msg string, args ...any)  { s.Logger.Warn(msg, s.with(args)...) }
func (s scopedLogger) Error(msg string, args ...any) { s.Logger.Error(msg, s.with(args)...) }

// LogJob records the terminal outcome of a review job.
func LogJob(l Logger, reviewID string, dur time.Duration, err error) {
	if err != nil {
		l.Error("Review job failed", "review_id", reviewID, "duration", dur, "error", err.Error())
		return
	}
	l.Info("Review job completed", "review_id", reviewID, "duration", dur)
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

// NewSlogLogger creates a new ReviewLogger from level, format and source settings.
func NewSlogLogger(level LogLevel, format string, addSource bool) *ReviewLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}
