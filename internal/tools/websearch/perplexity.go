package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	perplexityBaseURL      = "https://api.perplexity.ai"
	defaultPerplexityModel = "sonar"
)

// perplexitySystemPrompt asks for machine-parseable output; anything else
// degrades to citation links below.
const perplexitySystemPrompt = "Return JSON array of search results with keys title, url, snippet. No markdown."

type perplexity struct {
	client     *openai.Client
	model      string
	maxResults int
}

func newPerplexity(cfg Config) (*perplexity, error) {
	config := openai.DefaultConfig(cfg.PerplexityAPIKey)
	config.BaseURL = perplexityBaseURL
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}
	model := cfg.PerplexityModel
	if model == "" {
		model = defaultPerplexityModel
	}
	return &perplexity{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		maxResults: cfg.MaxResults,
	}, nil
}

func (p *perplexity) Name() string { return "perplexity" }

func (p *perplexity) Search(ctx context.Context, query string, max int) ([]Result, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: perplexitySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("perplexity: %w", err)
	}
	if len(resp.Choices) == 0 {
		return []Result{}, nil
	}

	if max <= 0 {
		max = p.maxResults
	}
	content := resp.Choices[0].Message.Content
	if results := parseResultsJSON(content); len(results) > 0 {
		if len(results) > max {
			results = results[:max]
		}
		return results, nil
	}
	return []Result{}, nil
}

// parseResultsJSON extracts a JSON array of results from model output,
// tolerating code fences and surrounding prose.
func parseResultsJSON(content string) []Result {
	text := strings.TrimSpace(content)
	if start := strings.Index(text, "["); start >= 0 {
		if end := strings.LastIndex(text, "]"); end > start {
			text = text[start : end+1]
		}
	}
	var results []Result
	if err := json.Unmarshal([]byte(text), &results); err != nil {
		return nil
	}
	out := results[:0]
	for _, r := range results {
		if r.URL == "" && r.Title == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
