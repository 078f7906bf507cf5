package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Level is a thin enum for user friendly level configuration decoupled from slog.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" to a Level.
// Unknown values yield LevelInfo and false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger defines the minimal logging interface. Args are slog-style
// alternating keys and values.
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

// Config configures construction of a ChatLogger.
type Config struct {
	Level     Level
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultConfig returns a baseline JSON info level configuration on stderr.
func DefaultConfig() *Config {
	return &Config{Level: LevelInfo, Format: "json", Output: os.Stderr}
}

// ChatLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods. It is cheap to copy via With* methods.
type ChatLogger struct {
	logger     *slog.Logger
	component  string
	sessionKey string
	requestID  string
	attrs      []any
}

// NewLogger builds a ChatLogger from a config (or defaults if nil).
func NewLogger(cfg *Config) *ChatLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level.slog(), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return &ChatLogger{logger: slog.New(handler), component: cfg.Component}
}

func (l *ChatLogger) clone() *ChatLogger {
	nl := *l
	nl.attrs = append([]any(nil), l.attrs...)
	return &nl
}

// With adds key/value pairs attached to every log entry.
func (l *ChatLogger) With(args ...any) *ChatLogger {
	nl := l.clone()
	nl.attrs = append(nl.attrs, args...)
	return nl
}

// WithComponent sets the logical component (orchestrator, tool, plugin, ...).
func (l *ChatLogger) WithComponent(c string) *ChatLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithSession attaches the chat session key and the request id.
func (l *ChatLogger) WithSession(sessionKey, requestID string) *ChatLogger {
	nl := l.clone()
	nl.sessionKey = sessionKey
	nl.requestID = requestID
	return nl
}

func (l *ChatLogger) args(extra []any) []any {
	out := make([]any, 0, len(l.attrs)+len(extra)+6)
	if l.component != "" {
		out = append(out, "component", l.component)
	}
	if l.sessionKey != "" {
		out = append(out, "session_key", l.sessionKey)
	}
	if l.requestID != "" {
		out = append(out, "request_id", l.requestID)
	}
	out = append(out, l.attrs...)
	return append(out, extra...)
}

func (l *ChatLogger) log(level slog.Level, msg string, args []any) {
	l.logger.Log(context.Background(), level, msg, l.args(args)...)
}

// Debug logs at debug level.
func (l *ChatLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }

// Info logs at info level.
func (l *ChatLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args) }

// Warn logs at warn level.
func (l *ChatLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args) }

// Error logs at error level.
func (l *ChatLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

// LogVendorCall records vendor call latency, token usage and outcome.
func (l *ChatLogger) LogVendorCall(model string, tokens int64, dur time.Duration, err error) {
	LogVendorCall(l, model, tokens, dur, err)
}

// LogToolCall records execution details for a tool invocation.
func (l *ChatLogger) LogToolCall(tool string, dur time.Duration, err error) {
	LogToolCall(l, tool, dur, err)
}

// LogVendorCall writes a "vendor.call.completed" or "vendor.call.failed"
// entry to any Logger.
func LogVendorCall(l Logger, model string, tokens int64, dur time.Duration, err error) {
	if err != nil {
		l.Error("vendor.call.failed", "model", model, "duration", dur, "error", err.Error())
		return
	}
	l.Info("vendor.call.completed", "model", model, "token_count", tokens, "duration", dur)
}

// LogToolCall writes a "tool.call.completed" or "tool.call.failed" entry to
// any Logger.
func LogToolCall(l Logger, tool string, dur time.Duration, err error) {
	if err != nil {
		l.Error("tool.call.failed", "tool_name", tool, "duration", dur, "error", err.Error())
		return
	}
	l.Info("tool.call.completed", "tool_name", tool, "duration", dur)
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

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}

// With returns a Logger that adds args to every entry. ChatLoggers keep
// their own attribute handling; other loggers are wrapped.
func With(l Logger, args ...any) Logger {
	switch t := OrNoOp(l).(type) {
	case NoOpLogger:
		return t
	case *ChatLogger:
		return t.With(args...)
	default:
		return &prefixed{next: t, args: args}
	}
}

type prefixed struct {
	next Logger
	args []any
}

func (p *prefixed) merge(args []any) []any {
	return append(append(make([]any, 0, len(p.args)+len(args)), p.args...), args...)
}

func (p *prefixed) Debug(msg string, args ...any) { p.next.Debug(msg, p.merge(args)...) }
func (p *prefixed) Info(msg string, args ...any)  { p.next.Info(msg, p.merge(args)...) }
func (p *prefixed) Warn(msg string, args ...any)  { p.next.Warn(msg, p.merge(args)...) }
func (p *prefixed) Error(msg string, args ...any) { p.next.Error(msg, p.merge(args)...) }
