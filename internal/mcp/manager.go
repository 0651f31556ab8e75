package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/steward-ai/steward/internal/tools"
	"github.com/steward-ai/steward/pkg/models"
)

const (
	protocolVersion = "2024-11-05"
	clientName      = "steward"

	// toolTimeoutMs is the gateway deadline for every MCP-backed tool.
	toolTimeoutMs = 15000

	connectTimeout = 30 * time.Second
)

// Manager owns the connections to configured MCP servers. A server that
// fails to connect is logged and skipped; its tools stay unavailable for
// the rest of the process (no auto-reconnect).
type Manager struct {
	config  Config
	logger  *slog.Logger
	version string

	mu    sync.Mutex
	conns []*serverConn
	tools map[string]toolRef
}

type serverConn struct {
	name   string
	client *client.Client
}

type toolRef struct {
	conn       *serverConn
	serverTool string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the manager's logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClientVersion sets the version reported in the handshake.
func WithClientVersion(version string) ManagerOption {
	return func(m *Manager) { m.version = version }
}

// NewManager builds a manager for the configured servers. Nothing connects
// until ConnectAll.
func NewManager(config Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		config:  config,
		logger:  slog.Default().With("component", "mcp"),
		version: "dev",
		tools:   make(map[string]toolRef),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConnectAll connects every enabled server, lists its tools, and registers
// the allowed ones as mcp.<server>.<tool>. At most one connection is made
// per server name; duplicates are skipped.
func (m *Manager) ConnectAll(ctx context.Context, reg *tools.Registry) {
	seen := make(map[string]bool)
	for _, server := range m.config.Servers {
		if server.Disabled {
			continue
		}
		if seen[server.Name] {
			m.logger.Warn("duplicate mcp server name, skipping", "server", server.Name)
			continue
		}
		seen[server.Name] = true
		if err := m.connectServer(ctx, server, reg); err != nil {
			m.logger.Warn("mcp server connect failed, skipping",
				"server", server.Name, "transport", server.Transport, "error", err)
		}
	}
}

func (m *Manager) connectServer(ctx context.Context, server ServerConfig, reg *tools.Registry) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	c, err := buildClient(server)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("start: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = protocolVersion
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: m.version}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	listResp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("list tools: %w", err)
	}

	conn := &serverConn{name: server.Name, client: c}
	registered := 0
	for _, remote := range listResp.Tools {
		if !allowed(server, remote.Name) {
			continue
		}
		name := toolName(server.Name, remote.Name)
		description := remote.Description
		if description == "" {
			description = "MCP tool"
		}
		spec := models.ToolSpec{
			Name:        name,
			Description: description,
			ArgsSchema:  schemaToMap(remote.InputSchema),
			Risk:        riskFor(server, remote.Name),
			TimeoutMs:   toolTimeoutMs,
			Caps:        []string{"mcp"},
		}
		if err := reg.Register(spec, m.handlerFor(name)); err != nil {
			m.logger.Warn("mcp tool registration failed",
				"server", server.Name, "tool", name, "error", err)
			continue
		}
		m.mu.Lock()
		m.tools[name] = toolRef{conn: conn, serverTool: remote.Name}
		m.mu.Unlock()
		registered++
	}

	m.mu.Lock()
	m.conns = append(m.conns, conn)
	m.mu.Unlock()

	m.logger.Info("mcp server connected",
		"server", server.Name, "transport", server.Transport, "tools", registered)
	return nil
}

func buildClient(server ServerConfig) (*client.Client, error) {
	switch server.Transport {
	case TransportStdio:
		env := make([]string, 0, len(server.Env))
		for k, v := range server.Env {
			env = append(env, k+"="+v)
		}
		return client.NewStdioMCPClient(server.Command, env, server.Args...)
	case TransportSSE:
		var opts []transport.ClientOption
		if len(server.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(server.Headers))
		}
		return client.NewSSEMCPClient(server.URL, opts...)
	case TransportHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(server.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(server.Headers))
		}
		return client.NewStreamableHttpClient(server.URL, opts...)
	default:
		return nil, fmt.Errorf("unsupported transport %q", server.Transport)
	}
}

func (m *Manager) handlerFor(name string) tools.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		return m.CallTool(ctx, name, args)
	}
}

// CallTool routes a namespaced tool call to the owning server and returns
// the concatenated text content. A result flagged IsError becomes a handler
// error.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	m.mu.Lock()
	ref, ok := m.tools[name]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown mcp tool %s", name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = ref.serverTool
	req.Params.Arguments = args

	resp, err := ref.conn.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("mcp call %s: %w", name, err)
	}
	text := contentText(resp.Content)
	if resp.IsError {
		if text == "" {
			text = "unknown error"
		}
		return "", fmt.Errorf("mcp tool %s: %s", name, text)
	}
	return text, nil
}

// Close shuts down every connection in LIFO order.
func (m *Manager) Close() {
	m.mu.Lock()
	conns := m.conns
	m.conns = nil
	m.tools = make(map[string]toolRef)
	m.mu.Unlock()

	for i := len(conns) - 1; i >= 0; i-- {
		if err := conns[i].client.Close(); err != nil {
			m.logger.Warn("mcp server close failed", "server", conns[i].name, "error", err)
		}
	}
}

func toolName(server, tool string) string {
	return "mcp." + server + "." + tool
}

func allowed(server ServerConfig, tool string) bool {
	if len(server.AllowTools) == 0 {
		return true
	}
	for _, name := range server.AllowTools {
		if name == tool {
			return true
		}
	}
	return false
}

func riskFor(server ServerConfig, tool string) models.RiskLevel {
	switch strings.ToLower(strings.TrimSpace(server.RiskOverrides[tool])) {
	case "confirm":
		return models.RiskConfirm
	case "dangerous":
		return models.RiskDangerous
	default:
		return models.RiskSafe
	}
}

// schemaToMap converts the wire schema to the registry's plain-map form.
func schemaToMap(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// contentText concatenates the text blocks of a tool result.
func contentText(content []mcp.Content) string {
	var parts []string
	for _, block := range content {
		if text, ok := block.(mcp.TextContent); ok {
			trimmed := strings.TrimSpace(text.Text)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
	}
	return strings.Join(parts, "\n")
}
