package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/steward-ai/steward/internal/tools"
	"github.com/steward-ai/steward/pkg/models"
)

// defaultMaxReadBytes caps fs.read output so a large file cannot blow up
// the model prompt.
const defaultMaxReadBytes = 64 * 1024

type readArgs struct {
	Path     string `json:"path" jsonschema:"description=Workspace-relative file path"`
	MaxBytes int    `json:"max_bytes,omitempty" jsonschema:"description=Truncate content after this many bytes"`
}

type writeArgs struct {
	Path    string `json:"path" jsonschema:"description=Workspace-relative file path"`
	Content string `json:"content" jsonschema:"description=Text to write"`
	Append  bool   `json:"append,omitempty" jsonschema:"description=Append instead of overwrite"`
}

// Register adds fs.read and fs.write against the workspace resolver.
func Register(reg *tools.Registry, resolver Resolver) error {
	if err := reg.Register(models.ToolSpec{
		Name:        "fs.read",
		Description: "Read a text file from the workspace",
		ArgsSchema:  tools.MustSchema(readArgs{}),
		Risk:        models.RiskSafe,
		TimeoutMs:   2000,
		Caps:        []string{"fs_read"},
	}, readHandler(resolver)); err != nil {
		return err
	}
	return reg.Register(models.ToolSpec{
		Name:        "fs.write",
		Description: "Write a text file to the workspace",
		ArgsSchema:  tools.MustSchema(writeArgs{}),
		Risk:        models.RiskConfirm,
		TimeoutMs:   2000,
		Caps:        []string{"fs_write"},
	}, writeHandler(resolver))
}

func readHandler(resolver Resolver) tools.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		path, _ := args["path"].(string)
		target, err := resolver.Resolve(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(target)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		limit := defaultMaxReadBytes
		if v, ok := args["max_bytes"].(float64); ok && int(v) > 0 {
			limit = int(v)
		}
		truncated := false
		if len(data) > limit {
			data = data[:limit]
			truncated = true
		}
		return map[string]any{
			"path":      path,
			"content":   string(data),
			"truncated": truncated,
		}, nil
	}
}

func writeHandler(resolver Resolver) tools.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		path, _ := args["path"].(string)
		content, _ := args["content"].(string)
		target, err := resolver.Resolve(path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("create parent dirs: %w", err)
		}
		if doAppend, _ := args["append"].(bool); doAppend {
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()
			n, err := f.WriteString(content)
			if err != nil {
				return nil, fmt.Errorf("append %s: %w", path, err)
			}
			return map[string]any{"path": path, "bytes_written": n}, nil
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		return map[string]any{"path": path, "bytes_written": len(content)}, nil
	}
}
