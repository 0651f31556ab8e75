// Package mcp connects to remote tool servers over the Model Context
// Protocol and surfaces their tools in the registry under the
// mcp.<server>.<tool> namespace.
package mcp

import (
	"fmt"
	"os"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// Transports the client speaks.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// ServerConfig describes one remote tool server.
type ServerConfig struct {
	Name      string            `json:"name"`
	Transport string            `json:"transport"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	URL       string            `json:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`

	// AllowTools filters the exposed tools when non-empty.
	AllowTools []string `json:"allow_tools,omitempty"`

	// RiskOverrides sets per-tool risk; tools default to safe.
	RiskOverrides map[string]string `json:"risk_overrides,omitempty"`

	// Disabled skips the server without removing its config.
	Disabled bool `json:"disabled,omitempty"`
}

// Config is the servers document.
type Config struct {
	Servers []ServerConfig `json:"servers"`
}

// LoadConfig reads the MCP servers document. JSON5 is accepted (comments,
// trailing commas). A missing file means no servers.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read mcp config: %w", err)
	}

	var cfg Config
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse mcp config: %w", err)
	}

	for i := range cfg.Servers {
		server := &cfg.Servers[i]
		if server.Name == "" {
			return Config{}, fmt.Errorf("mcp config: server %d has no name", i)
		}
		server.Transport = normalizeTransport(*server)
		if err := validateServer(*server); err != nil {
			return Config{}, fmt.Errorf("mcp config: server %s: %w", server.Name, err)
		}
	}
	return cfg, nil
}

// normalizeTransport infers the transport when omitted: a command implies
// stdio, a bare url implies sse.
func normalizeTransport(server ServerConfig) string {
	transport := strings.ToLower(strings.TrimSpace(server.Transport))
	if transport != "" {
		return transport
	}
	if server.Command != "" {
		return TransportStdio
	}
	if server.URL != "" {
		return TransportSSE
	}
	return TransportStdio
}

func validateServer(server ServerConfig) error {
	switch server.Transport {
	case TransportStdio:
		if server.Command == "" {
			return fmt.Errorf("stdio transport requires command")
		}
	case TransportSSE, TransportHTTP:
		if server.URL == "" {
			return fmt.Errorf("%s transport requires url", server.Transport)
		}
	default:
		return fmt.Errorf("unsupported transport %q", server.Transport)
	}
	return nil
}
