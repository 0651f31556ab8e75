// Package llm provides a provider-neutral chat client. A single Chat call
// carries the working prompt and the tool specs; the response is the
// assistant text plus any tool calls the model requested.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/steward-ai/steward/pkg/models"
)

// Message roles on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// defaultTemperature keeps tool-driving responses deterministic-ish.
const defaultTemperature = 0.2

const defaultTimeout = 30 * time.Second

// ChatMessage is one prompt entry. ToolCalls is set on assistant messages
// that requested tools; ToolCallID links a tool-role result back to its
// request.
type ChatMessage struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolCall is a model-requested tool invocation. ID is the provider's call
// id and may be empty; Args is the parsed argument object.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Response is one chat turn's result. An empty Content with no ToolCalls
// means the model had nothing to say.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Client is a chat-completion backend.
type Client interface {
	// Chat sends the prompt and returns the assistant's reply. Tool specs
	// are advertised to the model when non-empty.
	Chat(ctx context.Context, messages []ChatMessage, tools []models.ToolSpec) (Response, error)

	// Name identifies the provider for logging and metrics.
	Name() string
}

// Options configures a Client.
type Options struct {
	Provider string // "openrouter" (default), "openai", "anthropic"
	Model    string
	APIKey   string
	BaseURL  string        // optional endpoint override
	Timeout  time.Duration // per-request timeout, default 30s
}

// New builds a client for the configured provider.
func New(opts Options) (Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "openrouter"
	}
	switch provider {
	case "openrouter":
		return newOpenAICompatible("openrouter", openRouterBaseURL, "openrouter/auto", opts)
	case "openai":
		return newOpenAICompatible("openai", "", "gpt-4o-mini", opts)
	case "anthropic":
		return newAnthropic(opts)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}

// ParseArgs decodes a tool call's argument string. Anything that is not a
// JSON object comes back as an empty object so a malformed model reply
// cannot break dispatch.
func ParseArgs(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}

// schemaOrEmpty substitutes an empty object schema for tools registered
// without one; both wire formats require a parameters object.
func schemaOrEmpty(schema map[string]any) map[string]any {
	if schema == nil {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	return schema
}
