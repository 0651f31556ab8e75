package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const braveBaseURL = "https://api.search.brave.com"

type brave struct {
	apiKey     string
	baseURL    string
	maxResults int
	client     *http.Client
}

func newBrave(cfg Config) *brave {
	return &brave{
		apiKey:     cfg.BraveAPIKey,
		baseURL:    braveBaseURL,
		maxResults: cfg.MaxResults,
		client:     cfg.HTTPClient,
	}
}

func (b *brave) Name() string { return "brave" }

func (b *brave) Search(ctx context.Context, query string, max int) ([]Result, error) {
	endpoint := fmt.Sprintf("%s/res/v1/web/search?q=%s", b.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("brave: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("brave: read response: %w", err)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("brave: parse response: %w", err)
	}

	if max <= 0 {
		max = b.maxResults
	}
	results := make([]Result, 0, max)
	for _, item := range payload.Web.Results {
		if item.URL == "" {
			continue
		}
		title := item.Title
		if title == "" {
			title = item.URL
		}
		results = append(results, Result{Title: title, URL: item.URL, Snippet: item.Description})
		if len(results) >= max {
			break
		}
	}
	return results, nil
}
