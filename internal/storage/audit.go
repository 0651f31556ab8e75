package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steward-ai/steward/pkg/models"
)

// InsertToolCall persists one audit log entry. Implements the gateway's
// AuditStore.
func (s *Store) InsertToolCall(ctx context.Context, entry models.ToolCallLog) error {
	if entry.CallID == "" || entry.Tool == "" {
		return fmt.Errorf("call id and tool are required")
	}
	args, err := marshalPayload(entry.Args)
	if err != nil {
		return fmt.Errorf("marshal tool call args: %w", err)
	}
	result, err := marshalPayload(entry.Result)
	if err != nil {
		return fmt.Errorf("marshal tool call result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tool_calls (call_id, session_id, tool, args_json, result_json, ok, elapsed_ms, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CallID, entry.SessionID, entry.Tool, args, result,
		boolToInt(entry.OK), entry.ElapsedMs, entry.TS,
	)
	if err != nil {
		return fmt.Errorf("insert tool call: %w", err)
	}
	return nil
}

// RecentToolCalls returns the newest entries, most recent first.
func (s *Store) RecentToolCalls(ctx context.Context, limit int) ([]models.ToolCallLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT call_id, session_id, tool, args_json, result_json, ok, elapsed_ms, ts
		 FROM tool_calls ORDER BY ts DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent tool calls: %w", err)
	}
	defer rows.Close()

	var entries []models.ToolCallLog
	for rows.Next() {
		var entry models.ToolCallLog
		var args, result sql.NullString
		var ok int
		if err := rows.Scan(&entry.CallID, &entry.SessionID, &entry.Tool, &args, &result, &ok, &entry.ElapsedMs, &entry.TS); err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		entry.OK = ok != 0
		if args.Valid && args.String != "" {
			if err := json.Unmarshal([]byte(args.String), &entry.Args); err != nil {
				return nil, fmt.Errorf("unmarshal tool call args: %w", err)
			}
		}
		if result.Valid && result.String != "" {
			if err := json.Unmarshal([]byte(result.String), &entry.Result); err != nil {
				return nil, fmt.Errorf("unmarshal tool call result: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent tool calls: %w", err)
	}
	return entries, nil
}

// PruneToolCalls deletes entries older than the cutoff and reports how many
// rows were removed.
func (s *Store) PruneToolCalls(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tool_calls WHERE ts < ?`, olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune tool calls: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune tool calls rows affected: %w", err)
	}
	return rows, nil
}
