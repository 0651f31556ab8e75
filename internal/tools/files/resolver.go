// Package files provides the fs.read and fs.write tools, sandboxed to a
// workspace root.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver resolves user paths against the workspace root. Symlinks are
// resolved before the containment check so a link inside the workspace
// cannot point file operations outside it.
type Resolver struct {
	Root string
}

// Resolve returns an absolute path inside the workspace, or an error when
// the path escapes it. The target itself may not exist yet; its closest
// existing ancestor is the one checked for symlink escapes.
func (r Resolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(rootAbs); err == nil {
		rootAbs = resolved
	}

	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	resolved, err := resolveExisting(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	rel, err := filepath.Rel(rootAbs, resolved)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes workspace")
	}
	return resolved, nil
}

// resolveExisting resolves symlinks in the longest existing prefix of path
// and rejoins the remainder.
func resolveExisting(path string) (string, error) {
	suffix := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return filepath.Join(current, suffix), nil
		}
		suffix = filepath.Join(filepath.Base(current), suffix)
		current = parent
	}
}
