package mcp

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Servers) != 0 {
		t.Errorf("servers = %d, want 0", len(cfg.Servers))
	}
}

func TestLoadConfigJSON5(t *testing.T) {
	path := writeConfig(t, `{
		// local filesystem server
		servers: [
			{
				name: "fs",
				command: "mcp-fs",
				args: ["--root", "/tmp"],
				allow_tools: ["read_file"],
				risk_overrides: {read_file: "confirm"},
			},
		],
	}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Servers) != 1 {
		t.Fatalf("servers = %d, want 1", len(cfg.Servers))
	}
	server := cfg.Servers[0]
	if server.Transport != TransportStdio {
		t.Errorf("transport = %q, want stdio (inferred from command)", server.Transport)
	}
	if server.RiskOverrides["read_file"] != "confirm" {
		t.Errorf("risk overrides = %+v", server.RiskOverrides)
	}
}

func TestLoadConfigTransportInference(t *testing.T) {
	path := writeConfig(t, `{"servers":[{"name":"remote","url":"https://tools.example.com/sse"}]}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Servers[0].Transport != TransportSSE {
		t.Errorf("transport = %q, want sse (inferred from url)", cfg.Servers[0].Transport)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing name", `{"servers":[{"command":"x"}]}`},
		{"stdio without command", `{"servers":[{"name":"a","transport":"stdio"}]}`},
		{"sse without url", `{"servers":[{"name":"a","transport":"sse"}]}`},
		{"http without url", `{"servers":[{"name":"a","transport":"http"}]}`},
		{"unknown transport", `{"servers":[{"name":"a","transport":"grpc","url":"u"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.content)); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}
