package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/steward-ai/steward/pkg/models"
)

// Memory is the in-process Store used by tests and the no-persistence mode.
type Memory struct {
	mu       sync.RWMutex
	messages map[string][]models.Message
	now      func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		messages: make(map[string][]models.Message),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddMessage appends a message to the session, creating it if needed.
func (m *Memory) AddMessage(ctx context.Context, sessionID string, role models.Role, content string, ts int64) (models.Message, error) {
	if err := validate(sessionID, role); err != nil {
		return models.Message{}, err
	}
	if ts <= 0 {
		ts = m.now().Unix()
	}
	msg := models.Message{
		MessageID: models.NewMessageID(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		TS:        ts,
	}
	m.mu.Lock()
	m.messages[sessionID] = append(m.messages[sessionID], msg)
	m.mu.Unlock()
	return msg, nil
}

// ListMessages returns a copy of the session's history in insertion order.
func (m *Memory) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[sessionID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
