package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/steward-ai/steward/pkg/models"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// openAICompatible speaks the OpenAI chat-completions dialect. It backs both
// the openai and openrouter providers; only the base URL and default model
// differ.
type openAICompatible struct {
	client *openai.Client
	name   string
	model  string
}

func newOpenAICompatible(name, defaultBaseURL, defaultModel string, opts Options) (*openAICompatible, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", name)
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}

	config := openai.DefaultConfig(opts.APIKey)
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &openAICompatible{
		client: openai.NewClientWithConfig(config),
		name:   name,
		model:  model,
	}, nil
}

func (c *openAICompatible) Name() string {
	return c.name
}

func (c *openAICompatible) Chat(ctx context.Context, messages []ChatMessage, tools []models.ToolSpec) (Response, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: defaultTemperature,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
		req.ToolChoice = "auto"
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("%s: chat completion: %w", c.name, err)
	}
	return parseChatResponse(resp), nil
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		m := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		if msg.Role == RoleTool {
			m.ToolCallID = msg.ToolCallID
		}
		if len(msg.ToolCalls) > 0 {
			m.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
			for i, call := range msg.ToolCalls {
				args, err := json.Marshal(call.Args)
				if err != nil {
					args = []byte("{}")
				}
				m.ToolCalls[i] = openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				}
			}
		}
		out = append(out, m)
	}
	return out
}

func toOpenAITools(specs []models.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, len(specs))
	for i, spec := range specs {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  schemaOrEmpty(spec.ArgsSchema),
			},
		}
	}
	return out
}

// parseChatResponse tolerates malformed replies: no choices yields an empty
// response, and tool calls without a name are dropped.
func parseChatResponse(resp openai.ChatCompletionResponse) Response {
	if len(resp.Choices) == 0 {
		return Response{}
	}
	msg := resp.Choices[0].Message
	out := Response{Content: strings.TrimSpace(msg.Content)}
	for _, call := range msg.ToolCalls {
		if call.Function.Name == "" {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:   call.ID,
			Name: call.Function.Name,
			Args: ParseArgs(call.Function.Arguments),
		})
	}
	return out
}
