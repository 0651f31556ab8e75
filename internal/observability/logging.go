// Package observability provides the logging, metrics, and tracing plumbing
// shared by every component.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogConfig configures structured logging.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error".
	Level string

	// Format is "json" or "text". JSON for production, text for development.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer

	// AddSource includes file and line in records.
	AddSource bool
}

// ContextKey is the type for correlation keys carried in contexts.
type ContextKey string

const (
	// SessionIDKey correlates records with a conversation session.
	SessionIDKey ContextKey = "session_id"

	// MessageIDKey correlates records with the input message of a turn.
	MessageIDKey ContextKey = "message_id"

	// ToolCallIDKey correlates records with one tool invocation.
	ToolCallIDKey ContextKey = "tool_call_id"
)

// NewLogger builds a slog.Logger from config. Unknown levels fall back to
// info, unknown formats to text.
func NewLogger(config LogConfig) *slog.Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	var level slog.Level
	switch strings.ToLower(config.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(config.Output, opts)
	} else {
		handler = slog.NewTextHandler(config.Output, opts)
	}
	return slog.New(handler)
}

// Setup builds a logger from config and installs it as the process default.
func Setup(config LogConfig) *slog.Logger {
	logger := NewLogger(config)
	slog.SetDefault(logger)
	return logger
}

// WithSessionID stores the session id for correlation.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// SessionID retrieves the session id from ctx, or "".
func SessionID(ctx context.Context) string {
	if v, ok := ctx.Value(SessionIDKey).(string); ok {
		return v
	}
	return ""
}

// WithMessageID stores the turn's input message id.
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

// MessageID retrieves the message id from ctx, or "".
func MessageID(ctx context.Context) string {
	if v, ok := ctx.Value(MessageIDKey).(string); ok {
		return v
	}
	return ""
}

// WithToolCallID stores the current tool call id.
func WithToolCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, ToolCallIDKey, callID)
}

// ToolCallID retrieves the tool call id from ctx, or "".
func ToolCallID(ctx context.Context) string {
	if v, ok := ctx.Value(ToolCallIDKey).(string); ok {
		return v
	}
	return ""
}
