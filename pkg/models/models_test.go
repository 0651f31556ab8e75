package models

import (
	"strings"
	"testing"
)

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleTool} {
		if !r.Valid() {
			t.Errorf("Role(%q).Valid() = false, want true", r)
		}
	}
	if Role("system").Valid() {
		t.Error("Role(\"system\").Valid() = true, want false")
	}
}

func TestToolSpecClone(t *testing.T) {
	spec := ToolSpec{
		Name: "web.search",
		ArgsSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
			},
		},
		Risk: RiskSafe,
		Caps: []string{"net"},
	}
	got := spec.Clone()
	got.ArgsSchema["type"] = "array"
	got.ArgsSchema["properties"].(map[string]any)["query"] = nil
	got.Caps[0] = "fs"

	if spec.ArgsSchema["type"] != "object" {
		t.Error("Clone shares top-level schema map with original")
	}
	if spec.ArgsSchema["properties"].(map[string]any)["query"] == nil {
		t.Error("Clone shares nested schema map with original")
	}
	if spec.Caps[0] != "net" {
		t.Error("Clone shares caps slice with original")
	}
}

func TestHasCap(t *testing.T) {
	spec := ToolSpec{Caps: []string{"mcp"}}
	if !spec.HasCap("mcp") {
		t.Error("HasCap(mcp) = false, want true")
	}
	if spec.HasCap("fs") {
		t.Error("HasCap(fs) = true, want false")
	}
}

func TestTaskDueText(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want string
	}{
		{"payload message wins", Task{Title: "t", Payload: map[string]any{"message": "water plants"}}, "water plants"},
		{"falls back to title", Task{Title: "standup"}, "standup"},
		{"empty message falls back", Task{Title: "t2", Payload: map[string]any{"message": ""}}, "t2"},
		{"non-string message falls back", Task{Title: "t3", Payload: map[string]any{"message": 7}}, "t3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.DueText(); got != tt.want {
				t.Errorf("DueText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIDPrefixes(t *testing.T) {
	if id := NewMessageID(); !strings.HasPrefix(id, "msg_") || len(id) != len("msg_")+32 {
		t.Errorf("NewMessageID() = %q", id)
	}
	if id := NewCallID(); !strings.HasPrefix(id, "call_") || len(id) != len("call_")+32 {
		t.Errorf("NewCallID() = %q", id)
	}
	if id := NewTaskID(); !strings.HasPrefix(id, "task_") || len(id) != len("task_")+12 {
		t.Errorf("NewTaskID() = %q", id)
	}
	if NewCallID() == NewCallID() {
		t.Error("NewCallID returned duplicate IDs")
	}
}
