package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	ddgBaseURL   = "https://api.duckduckgo.com"
	ddgUserAgent = "Mozilla/5.0 (compatible; StewardBot/1.0)"
)

// ddg queries DuckDuckGo's Instant Answer API. Keyless, so it is the last
// rung of the auto cascade.
type ddg struct {
	baseURL    string
	maxResults int
	client     *http.Client
}

func newDDG(cfg Config) *ddg {
	return &ddg{
		baseURL:    ddgBaseURL,
		maxResults: cfg.MaxResults,
		client:     cfg.HTTPClient,
	}
}

func (d *ddg) Name() string { return "ddg" }

type ddgTopic struct {
	FirstURL string     `json:"FirstURL"`
	Text     string     `json:"Text"`
	Topics   []ddgTopic `json:"Topics"`
}

func (d *ddg) Search(ctx context.Context, query string, max int) ([]Result, error) {
	endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		d.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ddg: build request: %w", err)
	}
	req.Header.Set("User-Agent", ddgUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ddg: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ddg: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ddg: read response: %w", err)
	}

	var payload struct {
		Heading       string     `json:"Heading"`
		AbstractText  string     `json:"AbstractText"`
		AbstractURL   string     `json:"AbstractURL"`
		RelatedTopics []ddgTopic `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("ddg: parse response: %w", err)
	}

	if max <= 0 {
		max = d.maxResults
	}
	var results []Result
	if payload.AbstractText != "" && payload.AbstractURL != "" {
		results = append(results, Result{
			Title:   payload.Heading,
			URL:     payload.AbstractURL,
			Snippet: payload.AbstractText,
		})
	}
	results = flattenTopics(results, payload.RelatedTopics, max)
	return results, nil
}

// flattenTopics walks RelatedTopics depth-first; category nodes nest their
// entries under Topics.
func flattenTopics(results []Result, topics []ddgTopic, max int) []Result {
	for _, topic := range topics {
		if len(results) >= max {
			break
		}
		if len(topic.Topics) > 0 {
			results = flattenTopics(results, topic.Topics, max)
			continue
		}
		if topic.FirstURL == "" || topic.Text == "" {
			continue
		}
		title := topic.Text
		if len(title) > 100 {
			title = title[:100]
		}
		results = append(results, Result{
			Title:   title,
			URL:     topic.FirstURL,
			Snippet: topic.Text,
		})
	}
	return results
}
