package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveInsideWorkspace(t *testing.T) {
	root := t.TempDir()
	r := Resolver{Root: root}

	got, err := r.Resolve("notes/todo.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.HasPrefix(got, root) {
		t.Errorf("resolved path %q outside root %q", got, root)
	}
}

func TestResolveEscapeRejected(t *testing.T) {
	r := Resolver{Root: t.TempDir()}
	cases := []string{
		"../secret.txt",
		"../../etc/passwd",
		"a/../../escape",
	}
	for _, path := range cases {
		if _, err := r.Resolve(path); err == nil {
			t.Errorf("Resolve(%q) succeeded, want escape error", path)
		} else if !strings.Contains(err.Error(), "escapes workspace") {
			t.Errorf("Resolve(%q) error = %v, want escapes workspace", path, err)
		}
	}
}

func TestResolveAbsoluteOutsideRejected(t *testing.T) {
	r := Resolver{Root: t.TempDir()}
	outside := filepath.Join(os.TempDir(), "outside.txt")
	if _, err := r.Resolve(outside); err == nil {
		t.Error("absolute path outside workspace accepted")
	}
}

func TestResolveEmptyPath(t *testing.T) {
	r := Resolver{Root: t.TempDir()}
	if _, err := r.Resolve("  "); err == nil {
		t.Error("empty path accepted")
	}
}

func TestResolveSymlinkEscapeRejected(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}

	r := Resolver{Root: root}
	if _, err := r.Resolve("link/leak.txt"); err == nil {
		t.Error("symlink pointing outside workspace accepted")
	}
}

func TestResolveWorkspaceRootItself(t *testing.T) {
	root := t.TempDir()
	r := Resolver{Root: root}
	if _, err := r.Resolve("."); err != nil {
		t.Errorf("Resolve(.): %v", err)
	}
}
