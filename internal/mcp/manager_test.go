package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/steward-ai/steward/pkg/models"
)

func TestToolNameNamespacing(t *testing.T) {
	if got := toolName("fs", "read_file"); got != "mcp.fs.read_file" {
		t.Errorf("toolName = %q", got)
	}
}

func TestAllowedFilter(t *testing.T) {
	open := ServerConfig{Name: "a"}
	if !allowed(open, "anything") {
		t.Error("empty allow list should expose all tools")
	}

	restricted := ServerConfig{Name: "b", AllowTools: []string{"read_file", "list_dir"}}
	if !allowed(restricted, "read_file") {
		t.Error("listed tool rejected")
	}
	if allowed(restricted, "delete_file") {
		t.Error("unlisted tool exposed")
	}
}

func TestRiskOverrides(t *testing.T) {
	server := ServerConfig{
		Name: "a",
		RiskOverrides: map[string]string{
			"write": "confirm",
			"wipe":  "dangerous",
			"odd":   "unknown-level",
		},
	}
	cases := []struct {
		tool string
		want models.RiskLevel
	}{
		{"read", models.RiskSafe},
		{"write", models.RiskConfirm},
		{"wipe", models.RiskDangerous},
		{"odd", models.RiskSafe},
	}
	for _, tc := range cases {
		if got := riskFor(server, tc.tool); got != tc.want {
			t.Errorf("riskFor(%s) = %s, want %s", tc.tool, got, tc.want)
		}
	}
}

func TestContentTextConcatenation(t *testing.T) {
	content := []mcp.Content{
		mcp.TextContent{Type: "text", Text: "first"},
		mcp.TextContent{Type: "text", Text: "  "},
		mcp.TextContent{Type: "text", Text: "second"},
	}
	if got := contentText(content); got != "first\nsecond" {
		t.Errorf("contentText = %q", got)
	}
	if got := contentText(nil); got != "" {
		t.Errorf("contentText(nil) = %q", got)
	}
}

func TestSchemaToMap(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"path": map[string]any{"type": "string"},
		},
		Required: []string{"path"},
	}
	out := schemaToMap(schema)
	if out["type"] != "object" {
		t.Errorf("type = %v", out["type"])
	}
	props, ok := out["properties"].(map[string]any)
	if !ok || props["path"] == nil {
		t.Errorf("properties = %v", out["properties"])
	}
}

func TestCallToolUnknownName(t *testing.T) {
	m := NewManager(Config{})
	if _, err := m.CallTool(context.Background(), "mcp.ghost.tool", nil); err == nil {
		t.Error("unknown tool call succeeded")
	}
}
