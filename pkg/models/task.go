package models

import "time"

// Task is a scheduled reminder. Schedule is either an RRULE string
// ("RRULE:FREQ=...") or an ISO-8601 datetime for a one-shot run. A nil
// NextRun on a fired task disables it.
type Task struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Schedule string         `json:"schedule"`
	Payload  map[string]any `json:"payload,omitempty"`
	Enabled  bool           `json:"enabled"`
	LastRun  *time.Time     `json:"last_run,omitempty"`
	NextRun  *time.Time     `json:"next_run,omitempty"`
}

// DueText is the reminder text published when the task fires: the payload
// "message" value when present, the title otherwise.
func (t Task) DueText() string {
	if t.Payload != nil {
		if m, ok := t.Payload["message"].(string); ok && m != "" {
			return m
		}
	}
	return t.Title
}

// NewTaskID returns a fresh task identifier.
func NewTaskID() string {
	return "task_" + hexID()[:12]
}

// Note is a free-form saved note.
type Note struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	TS      int64  `json:"ts"`
}

// NewNoteID returns a fresh note identifier.
func NewNoteID() string {
	return "note_" + hexID()[:12]
}
