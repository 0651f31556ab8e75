package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steward-ai/steward/pkg/models"
)

const taskColumns = "id, title, schedule, payload_json, enabled, last_run, next_run"

// CreateTask inserts a new task. The caller assigns the id.
func (s *Store) CreateTask(ctx context.Context, task models.Task) error {
	if task.ID == "" || task.Title == "" {
		return fmt.Errorf("task id and title are required")
	}
	payload, err := marshalPayload(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Schedule, payload,
		boolToInt(task.Enabled), epochOrNil(task.LastRun), epochOrNil(task.NextRun),
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask returns the task with the given id, or ErrNotFound.
func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	if id == "" {
		return models.Task{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return models.Task{}, ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// ListTasks returns every task.
func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// DueTasks returns enabled tasks whose next run is at or before now.
func (s *Store) DueTasks(ctx context.Context, now time.Time) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE enabled = 1 AND next_run IS NOT NULL AND next_run <= ?`,
		now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("due tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// UpdateTaskRun records a firing: last_run is set and next_run replaced
// (nil clears it).
func (s *Store) UpdateTaskRun(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET last_run = ?, next_run = ? WHERE id = ?`,
		lastRun.Unix(), epochOrNil(nextRun), id,
	)
	if err != nil {
		return fmt.Errorf("update task run: %w", err)
	}
	return requireRow(res, "update task run")
}

// DisableTask turns a task off without deleting it.
func (s *Store) DisableTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET enabled = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("disable task: %w", err)
	}
	return requireRow(res, "disable task")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (models.Task, error) {
	var task models.Task
	var payload sql.NullString
	var enabled int
	var lastRun, nextRun sql.NullInt64
	if err := row.Scan(&task.ID, &task.Title, &task.Schedule, &payload, &enabled, &lastRun, &nextRun); err != nil {
		return models.Task{}, err
	}
	task.Enabled = enabled != 0
	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &task.Payload); err != nil {
			return models.Task{}, fmt.Errorf("unmarshal task payload: %w", err)
		}
	}
	task.LastRun = timeOrNil(lastRun)
	task.NextRun = timeOrNil(nextRun)
	return task, nil
}

func collectTasks(rows *sql.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

func marshalPayload(payload map[string]any) (any, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func epochOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
