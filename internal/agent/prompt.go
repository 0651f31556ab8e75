package agent

import (
	"os"
	"path/filepath"
	"strings"
)

// Prompts holds the static prompt text prepended to every model call.
// Neither part is persisted; the system message is rebuilt each turn.
type Prompts struct {
	System           string
	ToolInstructions string
}

// LoadPrompts reads system.md and tool_instructions.md from dir. Missing
// files yield empty strings; prompts are optional.
func LoadPrompts(dir string) Prompts {
	return Prompts{
		System:           readPrompt(filepath.Join(dir, "system.md")),
		ToolInstructions: readPrompt(filepath.Join(dir, "tool_instructions.md")),
	}
}

func readPrompt(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SystemMessage joins the non-empty parts.
func (p Prompts) SystemMessage() string {
	parts := make([]string, 0, 2)
	if p.System != "" {
		parts = append(parts, p.System)
	}
	if p.ToolInstructions != "" {
		parts = append(parts, p.ToolInstructions)
	}
	return strings.Join(parts, "\n\n")
}
