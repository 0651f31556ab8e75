// Package taskops provides the tasks.create, tasks.search, and tasks.run
// tools over the task repository. tasks.run is a manual trigger that
// publishes the reminder immediately without advancing the schedule.
package taskops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/steward-ai/steward/internal/bus"
	"github.com/steward-ai/steward/internal/scheduler"
	"github.com/steward-ai/steward/internal/tools"
	"github.com/steward-ai/steward/pkg/models"
)

// Store is the slice of the storage layer the task tools need.
type Store interface {
	CreateTask(ctx context.Context, task models.Task) error
	GetTask(ctx context.Context, id string) (models.Task, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
	UpdateTaskRun(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) error
}

// Tools wires the task tools to their dependencies.
type Tools struct {
	store     Store
	bus       bus.Bus
	sessionID string
	now       func() time.Time
}

// Option configures Tools.
type Option func(*Tools)

// WithNow overrides the clock for tests.
func WithNow(now func() time.Time) Option {
	return func(t *Tools) {
		if now != nil {
			t.now = now
		}
	}
}

// New builds the task tools. Manual runs publish reminders under sessionID,
// the same session the scheduler uses.
func New(store Store, b bus.Bus, sessionID string, opts ...Option) *Tools {
	t := &Tools{store: store, bus: b, sessionID: sessionID, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type createArgs struct {
	Title    string `json:"title" jsonschema:"description=Task title"`
	Schedule string `json:"schedule" jsonschema:"description=RRULE string or ISO-8601 datetime"`
	Message  string `json:"message,omitempty" jsonschema:"description=Reminder text; title is used when empty"`
}

type searchArgs struct {
	Query           string `json:"query,omitempty" jsonschema:"description=Substring to match against titles"`
	IncludeDisabled bool   `json:"include_disabled,omitempty" jsonschema:"description=Include disabled tasks"`
}

type runArgs struct {
	ID string `json:"id" jsonschema:"description=Task id to run now"`
}

// Register adds the three task tools.
func (t *Tools) Register(reg *tools.Registry) error {
	if err := reg.Register(models.ToolSpec{
		Name:        "tasks.create",
		Description: "Create a scheduled task",
		ArgsSchema:  tools.MustSchema(createArgs{}),
		Risk:        models.RiskConfirm,
		TimeoutMs:   2000,
		Caps:        []string{"tasks"},
	}, t.create); err != nil {
		return err
	}
	if err := reg.Register(models.ToolSpec{
		Name:        "tasks.search",
		Description: "Search scheduled tasks",
		ArgsSchema:  tools.MustSchema(searchArgs{}),
		Risk:        models.RiskSafe,
		TimeoutMs:   2000,
		Caps:        []string{"tasks"},
	}, t.search); err != nil {
		return err
	}
	return reg.Register(models.ToolSpec{
		Name:        "tasks.run",
		Description: "Run a task by id right now",
		ArgsSchema:  tools.MustSchema(runArgs{}),
		Risk:        models.RiskSafe,
		TimeoutMs:   10000,
		Caps:        []string{"tasks"},
	}, t.run)
}

func (t *Tools) create(ctx context.Context, args map[string]any) (any, error) {
	title, _ := args["title"].(string)
	schedule, _ := args["schedule"].(string)
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("title is required")
	}

	now := t.now()
	next, err := scheduler.NextRun(schedule, now)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, fmt.Errorf("Schedule does not produce a future run")
	}

	task := models.Task{
		ID:       models.NewTaskID(),
		Title:    title,
		Schedule: schedule,
		Enabled:  true,
		NextRun:  next,
	}
	if message, _ := args["message"].(string); message != "" {
		task.Payload = map[string]any{"message": message}
	}
	if err := t.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return map[string]any{
		"id":       task.ID,
		"next_run": next.UTC().Format(time.RFC3339),
	}, nil
}

func (t *Tools) search(ctx context.Context, args map[string]any) (any, error) {
	tasks, err := t.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	query, _ := args["query"].(string)
	includeDisabled, _ := args["include_disabled"].(bool)
	needle := strings.ToLower(strings.TrimSpace(query))

	matches := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		if !task.Enabled && !includeDisabled {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(task.Title), needle) {
			continue
		}
		entry := map[string]any{
			"id":       task.ID,
			"title":    task.Title,
			"schedule": task.Schedule,
			"enabled":  task.Enabled,
		}
		if task.NextRun != nil {
			entry["next_run"] = task.NextRun.UTC().Format(time.RFC3339)
		}
		matches = append(matches, entry)
	}
	return matches, nil
}

func (t *Tools) run(ctx context.Context, args map[string]any) (any, error) {
	id, _ := args["id"].(string)
	task, err := t.store.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}

	now := t.now()
	out := bus.OutputText{
		SessionID: t.sessionID,
		MessageID: models.NewMessageID(),
		TS:        now.Unix(),
		Text:      "Task due: " + task.DueText(),
	}
	if err := t.bus.Publish(ctx, bus.TopicOutputText, out); err != nil {
		return nil, fmt.Errorf("publish reminder: %w", err)
	}
	// A manual run advances last_run but leaves the schedule in place.
	if err := t.store.UpdateTaskRun(ctx, task.ID, now, task.NextRun); err != nil {
		return nil, err
	}
	return map[string]any{"status": "ran", "task_id": task.ID}, nil
}
