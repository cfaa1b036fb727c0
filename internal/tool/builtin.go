package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Builtin tool names.
const (
	NameWebSearch    = "web_search"
	NameExtractURL   = "extract_data_from_url"
	NameStoreContext = "store_context"
)

// extractContentLimit caps how much page text the extract tool returns.
const extractContentLimit = 10_000

// BuiltinConfig configures the builtin tool set.
type BuiltinConfig struct {
	// BraveAPIKey enables the Brave Search backend for web_search.
	BraveAPIKey string
	// SerpAPIKey enables the SerpAPI backend when Brave is not configured.
	SerpAPIKey string
	// RatePerMinute is the sliding-window limit applied to each builtin.
	RatePerMinute int
	// CostsUSD maps builtin names to a fixed per-invocation cost.
	CostsUSD map[string]float64
	// HTTPClient overrides the default client (for tests).
	HTTPClient *http.Client
	// Context backs the store_context tool; nil disables it.
	Context *ContextStore
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// RegisterBuiltins registers the web_search, extract_data_from_url, and
// store_context tools on the registry.
func RegisterBuiltins(reg *Registry, cfg BuiltinConfig) {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	reg.Register(Spec{
		Name: NameWebSearch,
		Description: "Search the web for information on a given topic. " +
			"Returns top results with URLs, titles, and snippets.",
		InputSchema: map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query",
			},
			"num_results": map[string]interface{}{
				"type":        "integer",
				"description": "Number of results to return (1-20)",
			},
		},
		Required:      []string{"query"},
		RatePerMinute: cfg.RatePerMinute,
		CostUSD:       cfg.CostsUSD[NameWebSearch],
	}, webSearchHandler(client, cfg))

	reg.Register(Spec{
		Name: NameExtractURL,
		Description: "Extract and return the main content from a URL. " +
			"Useful for analyzing pages found via web_search.",
		InputSchema: map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The URL to extract data from",
			},
		},
		Required:      []string{"url"},
		RatePerMinute: cfg.RatePerMinute,
		CostUSD:       cfg.CostsUSD[NameExtractURL],
	}, extractURLHandler(client))

	if cfg.Context != nil {
		reg.Register(Spec{
			Name: NameStoreContext,
			Description: "Store information in shared context memory for later " +
				"use by this or other agents.",
			InputSchema: map[string]interface{}{
				"key": map[string]interface{}{
					"type":        "string",
					"description": "Unique identifier for this context item",
				},
				"value": map[string]interface{}{
					"type":        "string",
					"description": "The information to store",
				},
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Category (e.g., 'market_research', 'strategy')",
				},
			},
			Required:      []string{"key", "value"},
			RatePerMinute: cfg.RatePerMinute,
			CostUSD:       cfg.CostsUSD[NameStoreContext],
		}, storeContextHandler(cfg.Context))
	}
}

func webSearchHandler(client *http.Client, cfg BuiltinConfig) Handler {
	return func(ctx context.Context, args json.RawMessage) (interface{}, error) {
		var in struct {
			Query      string `json:"query"`
			NumResults int    `json:"num_results"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if in.Query == "" {
			return nil, fmt.Errorf("query is required")
		}
		if in.NumResults <= 0 || in.NumResults > 20 {
			in.NumResults = 10
		}

		switch {
		case cfg.BraveAPIKey != "":
			return searchBrave(ctx, client, cfg.BraveAPIKey, in.Query, in.NumResults)
		case cfg.SerpAPIKey != "":
			return searchSerpAPI(ctx, client, cfg.SerpAPIKey, in.Query, in.NumResults)
		default:
			return nil, fmt.Errorf("no search API key configured (set BRAVE_API_KEY or SERPAPI_KEY)")
		}
	}
}

func searchBrave(ctx context.Context, client *http.Client, key, query string, n int) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://api.search.brave.com/res/v1/web/search", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Subscription-Token", key)
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("count", fmt.Sprint(n))
	req.URL.RawQuery = q.Encode()

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave search: status %d", resp.StatusCode)
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
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("brave search: decode: %w", err)
	}

	results := make([]SearchResult, 0, n)
	for _, r := range payload.Web.Results {
		if len(results) == n {
			break
		}
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return map[string]interface{}{"query": query, "results": results, "source": "brave"}, nil
}

func searchSerpAPI(ctx context.Context, client *http.Client, key, query string, n int) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://serpapi.com/search", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("api_key", key)
	q.Set("num", fmt.Sprint(n))
	req.URL.RawQuery = q.Encode()

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi search: status %d", resp.StatusCode)
	}

	var payload struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("serpapi search: decode: %w", err)
	}

	results := make([]SearchResult, 0, n)
	for _, r := range payload.OrganicResults {
		if len(results) == n {
			break
		}
		results = append(results, SearchResult{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return map[string]interface{}{"query": query, "results": results, "source": "serpapi"}, nil
}

func extractURLHandler(client *http.Client) Handler {
	return func(ctx context.Context, args json.RawMessage) (interface{}, error) {
		var in struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if in.URL == "" {
			return nil, fmt.Errorf("url is required")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid url: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", in.URL, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, extractContentLimit))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", in.URL, err)
		}
		return map[string]interface{}{
			"url":         in.URL,
			"status_code": resp.StatusCode,
			"content":     string(body),
		}, nil
	}
}

func storeContextHandler(store *ContextStore) Handler {
	return func(ctx context.Context, args json.RawMessage) (interface{}, error) {
		var in struct {
			Key      string `json:"key"`
			Value    string `json:"value"`
			Category string `json:"category"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if in.Key == "" || in.Value == "" {
			return nil, fmt.Errorf("key and value are required")
		}

		if err := store.Put(in.Key, in.Value, in.Category); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"key":      in.Key,
			"category": in.Category,
			"stored":   true,
		}, nil
	}
}
