// Package websearch implements the default WebSearchCapability: a
// pluggable SerpAPI/Google Custom Search client with a TLS-enforced HTTP
// transport and a TTL-evicting result cache, grounded on the teacher's
// internal/tools.WebSearchTool and internal/security.CreateDefaultHTTPClient.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/cache"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/logging"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/security"
)

// Provider selects the search backend.
type Provider string

const (
	ProviderSerpAPI Provider = "serpapi"
	ProviderGoogle  Provider = "google"
)

// Result is one hit returned by Search, matching spec.md §6's web-search
// capability shape.
type Result struct {
	URL     string
	Title   string
	Snippet string
	Content string // best-effort text extraction; snippet-only in this implementation
}

// Searcher is the capability EvidenceRetriever depends on.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Client is the default Searcher implementation.
type Client struct {
	http     *http.Client
	provider Provider
	apiKey   string
	googleCX string

	cache    *cache.LRUCache[string, []Result]
	redactor *security.SecretRedactor
}

// Config configures Client construction.
type Config struct {
	Provider   Provider
	APIKey     string
	GoogleCX   string
	CacheTTL   time.Duration // default 7 days, per spec.md §6 cache_ttl_days
	CacheSize  int           // default 256
}

// New builds a Client. A secure, TLS 1.2+ HTTP client is used regardless
// of provider, matching the teacher's posture.
func New(cfg Config) *Client {
	httpClient, err := security.CreateDefaultHTTPClient()
	if err != nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	if cfg.Provider == "" {
		cfg.Provider = ProviderSerpAPI
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 7 * 24 * time.Hour
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}

	return &Client{
		http:     httpClient,
		provider: cfg.Provider,
		apiKey:   cfg.APIKey,
		googleCX: cfg.GoogleCX,
		cache:    cache.NewLRUCache[string, []Result](cfg.CacheSize, cfg.CacheTTL),
		redactor: security.NewSecretRedactor(),
	}
}

// Search implements Searcher, honoring the TTL cache keyed by
// (provider, query, max_results) spec.md §4.3/§6 requires.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	key := fmt.Sprintf("%s:%d:%s", c.provider, maxResults, query)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	var results []Result
	var err error
	switch c.provider {
	case ProviderGoogle:
		results, err = c.searchGoogle(ctx, query, maxResults)
	default:
		results, err = c.searchSerpAPI(ctx, query, maxResults)
	}
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, results)
	return results, nil
}

func (c *Client) searchSerpAPI(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("websearch: serpapi api key not configured")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("engine", "google")
	params.Set("num", fmt.Sprintf("%d", maxResults))
	reqURL := fmt.Sprintf("https://serpapi.com/search?%s", params.Encode())
	params.Set("api_key", c.apiKey)
	fullURL := fmt.Sprintf("https://serpapi.com/search?%s", params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websearch: build request for %s: %w", reqURL, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: request to %s failed: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		redacted := c.redactor.Redact(string(body))
		logging.Warn("websearch: serpapi non-200 response", "status", resp.StatusCode, "body", redacted)
		return nil, fmt.Errorf("websearch: serpapi error %d: %s", resp.StatusCode, redacted)
	}

	var data struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("websearch: decode serpapi response: %w", err)
	}
	if data.Error != "" {
		return nil, fmt.Errorf("websearch: serpapi error: %s", data.Error)
	}

	results := make([]Result, 0, len(data.OrganicResults))
	for _, r := range data.OrganicResults {
		results = append(results, Result{URL: r.Link, Title: r.Title, Snippet: r.Snippet, Content: r.Snippet})
	}
	return results, nil
}

func (c *Client) searchGoogle(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if c.googleCX == "" {
		return nil, fmt.Errorf("websearch: google custom search engine id not configured")
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("websearch: google api key not configured")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("cx", c.googleCX)
	params.Set("num", fmt.Sprintf("%d", maxResults))
	reqURL := fmt.Sprintf("https://www.googleapis.com/customsearch/v1?%s", params.Encode())
	params.Set("key", c.apiKey)
	fullURL := fmt.Sprintf("https://www.googleapis.com/customsearch/v1?%s", params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websearch: build request for %s: %w", reqURL, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: request to %s failed: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		redacted := c.redactor.Redact(string(body))
		logging.Warn("websearch: google non-200 response", "status", resp.StatusCode, "body", redacted)
		return nil, fmt.Errorf("websearch: google error %d: %s", resp.StatusCode, redacted)
	}

	var data struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("websearch: decode google response: %w", err)
	}
	if data.Error.Message != "" {
		return nil, fmt.Errorf("websearch: google error: %s", data.Error.Message)
	}

	results := make([]Result, 0, len(data.Items))
	for _, r := range data.Items {
		results = append(results, Result{URL: r.Link, Title: r.Title, Snippet: r.Snippet, Content: r.Snippet})
	}
	return results, nil
}
