package models

import (
	"strings"

	"github.com/google/uuid"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether the role is one the store accepts. System messages
// are never persisted; the system prompt is re-prepended on every model call.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is one entry in a session's conversation history. Content holds
// UTF-8 text; for tool messages it is a JSON-encoded object. Ordering within
// a session is strictly by insertion; TS is informational.
type Message struct {
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	TS        int64  `json:"ts"`
}

// NewMessageID returns a fresh message identifier.
func NewMessageID() string {
	return "msg_" + hexID()
}

func hexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
