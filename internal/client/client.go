// Package client issues single HTTP calls against the upstream catalog API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/oemdirect/catalog-scraper/internal/catalog"
)

// Config controls client behavior. Headers carries the opaque security
// tokens the upstream expects; FallbackSession is used until SetSession
// installs a fresher cookie.
type Config struct {
	BaseURL         string
	UserAgent       string
	Timeout         time.Duration
	Headers         map[string]string
	FallbackSession string
	RateLimitRPS    float64
	RateBurst       int
}

// Client implements the catalog fetch interfaces using a Colly collector.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       *rate.Limiter
	logger        *zap.Logger

	mu      sync.RWMutex
	session string
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Limit(cfg.RateLimitRPS)
	if cfg.RateLimitRPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	// Error-status bodies carry API diagnostics; hand them to OnResponse
	// instead of colly's error path.
	c.ParseHTTPErrorResponse = true

	return &Client{
		cfg:           cfg,
		baseCollector: c,
		limiter:       rate.NewLimiter(limit, burst),
		logger:        logger,
	}
}

// SetSession installs the cookie header acquired by the session provider.
// An empty token keeps the configured fallback.
func (c *Client) SetSession(token string) {
	if token == "" {
		return
	}
	c.mu.Lock()
	c.session = token
	c.mu.Unlock()
}

func (c *Client) sessionCookie() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session != "" {
		return c.session
	}
	return c.cfg.FallbackSession
}

type searchResponse struct {
	Items      []catalog.RawItem `json:"items"`
	TotalCount *int              `json:"totalCount"`
}

type countsResponse struct {
	TotalCount int `json:"totalCount"`
}

// FetchPage retrieves one search page for a category.
func (c *Client) FetchPage(ctx context.Context, category string, skip, take int) (catalog.Page, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("skip", strconv.Itoa(skip))
	params.Set("take", strconv.Itoa(take))
	return c.fetchPage(ctx, "fetch page", c.cfg.BaseURL+"/api/catalog/search?"+params.Encode())
}

// FetchPageURL retrieves one search page from a literal, fully substituted URL.
func (c *Client) FetchPageURL(ctx context.Context, rawURL string) (catalog.Page, error) {
	return c.fetchPage(ctx, "fetch page url", rawURL)
}

func (c *Client) fetchPage(ctx context.Context, op, rawURL string) (catalog.Page, error) {
	body, status, err := c.get(ctx, op, rawURL)
	if err != nil {
		return catalog.Page{}, err
	}
	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return catalog.Page{}, catalog.NewTransportError(op, status, body, fmt.Errorf("decode response: %w", err))
	}
	return catalog.Page{Items: decoded.Items, TotalCount: decoded.TotalCount}, nil
}

// FetchDetail retrieves the detail payload for one item.
func (c *Client) FetchDetail(ctx context.Context, itemID string) (catalog.DetailPayload, error) {
	const op = "fetch detail"
	rawURL := c.cfg.BaseURL + "/api/catalog/items/" + url.PathEscape(itemID)
	body, status, err := c.get(ctx, op, rawURL)
	if err != nil {
		return nil, err
	}
	var decoded catalog.DetailPayload
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, catalog.NewTransportError(op, status, body, fmt.Errorf("decode response: %w", err))
	}
	return decoded, nil
}

// FetchCounts probes the authoritative item count for a category.
func (c *Client) FetchCounts(ctx context.Context, category string) (int, error) {
	const op = "fetch counts"
	params := url.Values{}
	params.Set("category", category)
	body, status, err := c.get(ctx, op, c.cfg.BaseURL+"/api/catalog/counts?"+params.Encode())
	if err != nil {
		return 0, err
	}
	var decoded countsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, catalog.NewTransportError(op, status, body, fmt.Errorf("decode response: %w", err))
	}
	return decoded.TotalCount, nil
}

// get executes a single GET and applies the response validation layer.
func (c *Client) get(ctx context.Context, op, rawURL string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, catalog.NewTransportError(op, 0, nil, fmt.Errorf("rate limit wait: %w", err))
	}

	var (
		status      int
		contentType string
		body        []byte
		fetchErr    error
	)

	collector := c.baseCollector.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.SetRequestTimeout(c.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		c.applyProfile(r)
	})
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		contentType = r.Headers.Get("Content-Type")
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	if err := c.runCollector(ctx, collector, rawURL); err != nil {
		return nil, status, catalog.NewTransportError(op, status, nil, err)
	}
	if fetchErr != nil {
		return nil, status, catalog.NewTransportError(op, status, nil, fetchErr)
	}
	if err := validateBody(op, status, contentType, body); err != nil {
		return nil, status, err
	}
	return body, status, nil
}

func (c *Client) runCollector(ctx context.Context, collector *colly.Collector, rawURL string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit failed: %w", err)
		}
		return nil
	}
}

// applyProfile attaches the fixed versioned header/cookie set. The cookie
// value itself is deliberately kept out of all logs and errors.
func (c *Client) applyProfile(r *colly.Request) {
	r.Headers.Set("Accept", "application/json, text/plain, */*")
	r.Headers.Set("X-Requested-With", "XMLHttpRequest")
	for key, value := range c.cfg.Headers {
		r.Headers.Set(key, value)
	}
	if cookie := c.sessionCookie(); cookie != "" {
		r.Headers.Set("Cookie", cookie)
	}
}

// validateBody is the second validation layer: any status below 500 counts
// as a transport-level success, but HTML disguised as JSON and empty 400
// bodies indicate an expired upstream credential.
func validateBody(op string, status int, contentType string, body []byte) error {
	if looksLikeHTML(contentType, body) {
		terr := catalog.NewTransportError(op, status, body, nil)
		terr.AuthExpired = true
		return terr
	}
	if status == http.StatusBadRequest && len(strings.TrimSpace(string(body))) == 0 {
		terr := catalog.NewTransportError(op, status, nil, nil)
		terr.AuthExpired = true
		return terr
	}
	if status >= http.StatusBadRequest {
		return catalog.NewTransportError(op, status, body, nil)
	}
	return nil
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "<!DOCTYPE") || strings.HasPrefix(trimmed, "<html") || strings.HasPrefix(trimmed, "<HTML")
}
