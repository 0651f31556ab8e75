package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/steward-ai/steward/pkg/models"
)

const anthropicMaxTokens = 4096

type anthropicClient struct {
	client anthropic.Client
	model  string
}

func newAnthropic(opts Options) (*anthropicClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	model := opts.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	options := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
	}
	if strings.TrimSpace(opts.BaseURL) != "" {
		options = append(options, option.WithBaseURL(opts.BaseURL))
	}

	return &anthropicClient{
		client: anthropic.NewClient(options...),
		model:  model,
	}, nil
}

func (c *anthropicClient) Name() string {
	return "anthropic"
}

func (c *anthropicClient) Chat(ctx context.Context, messages []ChatMessage, tools []models.ToolSpec) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(defaultTemperature),
	}

	system, converted := toAnthropicMessages(messages)
	params.Messages = converted
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		anthropicTools, err := toAnthropicTools(tools)
		if err != nil {
			return Response{}, err
		}
		params.Tools = anthropicTools
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic: message create: %w", err)
	}
	return parseAnthropicResponse(resp), nil
}

// toAnthropicMessages splits out system prompts (Anthropic carries them
// outside the messages array) and maps tool results onto user-role tool
// result blocks.
func toAnthropicMessages(messages []ChatMessage) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var out []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Type: "text", Text: msg.Content})
		case RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				content = append(content, anthropic.NewToolUseBlock(call.ID, call.Args, call.Name))
			}
			if len(content) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(content...))
		case RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)))
		default:
			if msg.Content == "" {
				continue
			}
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return system, out
}

func toAnthropicTools(specs []models.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	var out []anthropic.ToolUnionParam
	for _, spec := range specs {
		raw, err := json.Marshal(schemaOrEmpty(spec.ArgsSchema))
		if err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", spec.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", spec.Name, err)
		}

		toolParam := anthropic.ToolUnionParamOfTool(schema, spec.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", spec.Name)
		}
		toolParam.OfTool.Description = anthropic.String(spec.Description)
		out = append(out, toolParam)
	}
	return out, nil
}

func parseAnthropicResponse(msg *anthropic.Message) Response {
	if msg == nil {
		return Response{}
	}
	var content strings.Builder
	var calls []ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.AsText().Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			if toolUse.Name == "" {
				continue
			}
			calls = append(calls, ToolCall{
				ID:   toolUse.ID,
				Name: toolUse.Name,
				Args: ParseArgs(string(toolUse.Input)),
			})
		}
	}
	return Response{
		Content:   strings.TrimSpace(content.String()),
		ToolCalls: calls,
	}
}
