// Package websearch provides the web.search tool over pluggable search
// providers. Brave and Perplexity need API keys; DuckDuckGo's Instant
// Answer API needs none and is the fallback.
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/steward-ai/steward/internal/tools"
	"github.com/steward-ai/steward/pkg/models"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher is the provider contract.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]Result, error)
	Name() string
}

// Config selects and configures a provider. Provider is one of "auto",
// "brave", "perplexity", "ddg"; "auto" picks the first provider with
// credentials, falling back to ddg.
type Config struct {
	Provider         string
	BraveAPIKey      string
	PerplexityAPIKey string
	PerplexityModel  string
	MaxResults       int
	HTTPClient       *http.Client
}

const defaultMaxResults = 5

// NewSearcher builds the configured provider. An explicit provider missing
// its key is an error naming the variable to set.
func NewSearcher(cfg Config) (Searcher, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "auto":
		if cfg.BraveAPIKey != "" {
			return newBrave(cfg), nil
		}
		if cfg.PerplexityAPIKey != "" {
			return newPerplexity(cfg)
		}
		return newDDG(cfg), nil
	case "brave":
		if cfg.BraveAPIKey == "" {
			return nil, fmt.Errorf("brave provider: BRAVE_SEARCH_API_KEY is not set")
		}
		return newBrave(cfg), nil
	case "perplexity", "pplx":
		if cfg.PerplexityAPIKey == "" {
			return nil, fmt.Errorf("perplexity provider: PERPLEXITY_API_KEY is not set")
		}
		return newPerplexity(cfg)
	case "ddg", "duckduckgo":
		return newDDG(cfg), nil
	default:
		return nil, fmt.Errorf("unknown web search provider %q", cfg.Provider)
	}
}

type searchArgs struct {
	Query      string `json:"query" jsonschema:"description=Search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum results to return"`
}

// Register adds the web.search tool backed by the given provider.
func Register(reg *tools.Registry, searcher Searcher) error {
	return reg.Register(models.ToolSpec{
		Name:        "web.search",
		Description: "Search the web for a query",
		ArgsSchema:  tools.MustSchema(searchArgs{}),
		Risk:        models.RiskSafe,
		TimeoutMs:   10000,
		Caps:        []string{"net"},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		query, _ := args["query"].(string)
		if strings.TrimSpace(query) == "" {
			return nil, fmt.Errorf("query is required")
		}
		max := defaultMaxResults
		if v, ok := args["max_results"].(float64); ok && int(v) > 0 {
			max = int(v)
		}
		results, err := searcher.Search(ctx, query, max)
		if err != nil {
			return nil, err
		}
		if results == nil {
			results = []Result{}
		}
		return results, nil
	})
}
