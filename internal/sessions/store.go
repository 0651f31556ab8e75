// Package sessions persists conversation history keyed by session. Sessions
// are created lazily on first message and never deleted by the core.
package sessions

import (
	"context"
	"fmt"

	"github.com/steward-ai/steward/pkg/models"
)

// Store is the conversation-history contract. Implementations must be safe
// for concurrent callers on the same session; readers see all writes that
// completed before the read began.
type Store interface {
	// AddMessage appends a message. A ts of zero means "now".
	AddMessage(ctx context.Context, sessionID string, role models.Role, content string, ts int64) (models.Message, error)

	// ListMessages returns the session's messages in insertion order.
	ListMessages(ctx context.Context, sessionID string) ([]models.Message, error)
}

func validate(sessionID string, role models.Role) error {
	if sessionID == "" {
		return fmt.Errorf("session id is empty")
	}
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	return nil
}
