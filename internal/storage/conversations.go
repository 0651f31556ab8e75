package storage

import (
	"context"
	"fmt"

	"github.com/steward-ai/steward/pkg/models"
)

// AddMessage appends a message to the session's history. It assigns the
// message id, and a ts of zero means "now". Implements sessions.Store.
func (s *Store) AddMessage(ctx context.Context, sessionID string, role models.Role, content string, ts int64) (models.Message, error) {
	if sessionID == "" {
		return models.Message{}, fmt.Errorf("session id is empty")
	}
	if !role.Valid() {
		return models.Message{}, fmt.Errorf("invalid role %q", role)
	}
	if ts == 0 {
		ts = s.now().Unix()
	}
	msg := models.Message{
		MessageID: models.NewMessageID(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		TS:        ts,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (message_id, session_id, role, content, ts)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.MessageID, msg.SessionID, string(msg.Role), msg.Content, msg.TS,
	)
	if err != nil {
		return models.Message{}, fmt.Errorf("add message: %w", err)
	}
	return msg, nil
}

// ListMessages returns the session's messages in insertion order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is empty")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, session_id, role, content, ts
		 FROM conversations WHERE session_id = ? ORDER BY ts, rowid`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var role string
		if err := rows.Scan(&msg.MessageID, &msg.SessionID, &role, &msg.Content, &msg.TS); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = models.Role(role)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}
