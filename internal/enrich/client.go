package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
	"github.com/fyrsmithlabs/dealscout/internal/config"
	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond
	defaultRateLimit   = 5
	defaultBurst       = 1

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 4 << 20
)

// ErrNotFound is returned when the upstream API has no record for an ID.
var ErrNotFound = errors.New("entity not found")

var (
	_ dispatch.Enricher = (*Client)(nil)
	_ dispatch.Searcher = (*Client)(nil)
)

// Client calls the upstream data API.
type Client struct {
	baseURL     string
	apiKey      config.Secret
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	logger      *zap.Logger
	metrics     *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBaseBackoff sets the first retry delay. Later delays double.
func WithBaseBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseBackoff = d
		}
	}
}

// NewClient creates a client from the enrichment config section.
func NewClient(cfg config.EnrichmentConfig, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("enrichment base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid enrichment base URL %q", cfg.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported enrichment URL scheme %q", u.Scheme)
	}

	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	c := &Client{
		baseURL:     base,
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(limit), burst),
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
		logger:      zap.NewNop(),
		metrics:     NewMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchPerson loads a person profile.
func (c *Client) FetchPerson(ctx context.Context, id string) (*candidate.Person, error) {
	if strings.TrimSpace(id) == "" {
		return nil, candidate.ErrEmptyID
	}
	var p candidate.Person
	if err := c.do(ctx, "person", http.MethodGet, "/v1/people/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, fmt.Errorf("fetch person %s: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	return &p, nil
}

// FetchCompany loads a company profile.
func (c *Client) FetchCompany(ctx context.Context, id string) (*candidate.Company, error) {
	if strings.TrimSpace(id) == "" {
		return nil, candidate.ErrEmptyID
	}
	var co candidate.Company
	if err := c.do(ctx, "company", http.MethodGet, "/v1/companies/"+url.PathEscape(id), nil, &co); err != nil {
		return nil, fmt.Errorf("fetch company %s: %w", id, err)
	}
	if co.ID == "" {
		co.ID = id
	}
	return &co, nil
}

// FetchFunding loads a company's funding summary.
func (c *Client) FetchFunding(ctx context.Context, companyID string) (*candidate.Funding, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, candidate.ErrEmptyID
	}
	var f candidate.Funding
	path := "/v1/companies/" + url.PathEscape(companyID) + "/funding"
	if err := c.do(ctx, "funding", http.MethodGet, path, nil, &f); err != nil {
		return nil, fmt.Errorf("fetch funding %s: %w", companyID, err)
	}
	if f.CompanyID == "" {
		f.CompanyID = companyID
	}
	return &f, nil
}

type searchResponse struct {
	Results []candidate.Candidate `json:"results"`
}

// Search runs a parsed query against the upstream index.
func (c *Client) Search(ctx context.Context, q dispatch.SearchQuery) ([]candidate.Candidate, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}
	var resp searchResponse
	if err := c.do(ctx, "search", http.MethodPost, "/v1/search", body, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if resp.Results == nil {
		return []candidate.Candidate{}, nil
	}
	return resp.Results, nil
}

// retryableError marks failures worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// do issues one logical request, retrying transient failures.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body []byte, out interface{}) error {
	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying upstream request",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			c.metrics.RetriesTotal.WithLabelValues(endpoint).Inc()
			select {
			case <-ctx.Done():
				c.observe(endpoint, "canceled", start)
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			c.observe(endpoint, "canceled", start)
			return fmt.Errorf("rate limiter: %w", err)
		}

		lastErr = c.attempt(ctx, method, path, body, out)
		if lastErr == nil {
			c.observe(endpoint, "success", start)
			return nil
		}
		if !isRetryableError(lastErr) {
			break
		}
	}

	switch {
	case errors.Is(lastErr, ErrNotFound):
		c.observe(endpoint, "not_found", start)
	default:
		c.observe(endpoint, "error", start)
		c.logger.Warn("upstream request failed",
			zap.String("endpoint", endpoint),
			zap.Error(lastErr))
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey.IsSet() {
		req.Header.Set("Authorization", "Bearer "+c.apiKey.Value())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &retryableError{fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &retryableError{fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &retryableError{fmt.Errorf("API error (%d): %s", resp.StatusCode, truncate(data))}
	default:
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, truncate(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) observe(endpoint, result string, start time.Time) {
	c.metrics.RequestsTotal.WithLabelValues(endpoint, result).Inc()
	c.metrics.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func truncate(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
