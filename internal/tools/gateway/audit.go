package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/steward-ai/steward/pkg/models"
)

// AuditStore persists tool call logs. The durable implementation lives in
// internal/storage.
type AuditStore interface {
	InsertToolCall(ctx context.Context, entry models.ToolCallLog) error
}

// AuditLogger writes ToolCallLog entries through a single worker goroutine
// so the gateway never blocks on persistence. A full queue drops the entry
// with a warning; a store failure is logged and never reaches the caller.
type AuditLogger struct {
	store     AuditStore
	logger    *slog.Logger
	ch        chan models.ToolCallLog
	done      chan struct{}
	closeOnce sync.Once
}

// AuditOption configures an AuditLogger.
type AuditOption func(*auditConfig)

type auditConfig struct {
	queueSize int
	logger    *slog.Logger
}

// WithQueueSize sets the pending-entry buffer (default 128).
func WithQueueSize(n int) AuditOption {
	return func(c *auditConfig) { c.queueSize = n }
}

// WithAuditLogger sets the logger used for drops and store failures.
func WithAuditLogger(l *slog.Logger) AuditOption {
	return func(c *auditConfig) { c.logger = l }
}

// NewAuditLogger starts the worker. Close flushes pending entries.
func NewAuditLogger(store AuditStore, opts ...AuditOption) *AuditLogger {
	cfg := auditConfig{queueSize: 128, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	l := &AuditLogger{
		store:  store,
		logger: cfg.logger.With("component", "audit"),
		ch:     make(chan models.ToolCallLog, cfg.queueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Log enqueues an entry without blocking.
func (l *AuditLogger) Log(entry models.ToolCallLog) {
	select {
	case l.ch <- entry:
	default:
		l.logger.Warn("audit queue full, dropping entry",
			"tool", entry.Tool, "call_id", entry.CallID)
	}
}

// Close stops accepting entries, flushes the queue, and waits for the
// worker to exit.
func (l *AuditLogger) Close() {
	l.closeOnce.Do(func() { close(l.ch) })
	<-l.done
}

func (l *AuditLogger) run() {
	defer close(l.done)
	for entry := range l.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.store.InsertToolCall(ctx, entry); err != nil {
			l.logger.Warn("tool call log failed",
				"tool", entry.Tool, "call_id", entry.CallID, "error", err)
		}
		cancel()
	}
}
