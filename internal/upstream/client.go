// Package upstream is the single point of contact with the provider
// API (§4.1). It exposes typed reads, paginates transparently, retries
// transient failures with jittered backoff, and caps outbound call
// rate with a token bucket.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/carolinespringscc/cricket-agent/internal/apperr"
	"github.com/carolinespringscc/cricket-agent/internal/cache"
	"github.com/carolinespringscc/cricket-agent/internal/core"
	"github.com/carolinespringscc/cricket-agent/internal/middleware"
)

// Client is a typed, rate-aware HTTP client for the provider (§4.1).
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	orgID      string
	limiter    *rate.Limiter
	maxRetries int
	cache      *cache.Client // optional; nil disables response caching
	cacheTTL   time.Duration
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }
func WithMaxRetries(n int) Option           { return func(c *Client) { c.maxRetries = n } }

// WithResponseCache attaches a cache.Client so GET responses are
// cached by URL (§4.1, §5's Upstream TTL) and 4xx/5xx responses are
// negative-cached to avoid hammering a struggling or misconfigured
// grade/fixture during a full refresh. ttl bounds positive entries;
// a non-positive ttl falls back to two minutes.
func WithResponseCache(c *cache.Client, ttl time.Duration) Option {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return func(cl *Client) { cl.cache = c; cl.cacheTTL = ttl }
}

// New builds a Client. requestsPerSecond bounds the token bucket (§5);
// apiKey and orgID are sent as headers on every call (§4.1).
func New(baseURL, apiKey, orgID string, requestsPerSecond float64, opts ...Option) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		orgID:      orgID,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs a single request with retry-with-backoff on transient
// failures (HTTP 429/5xx) and a token-bucket wait before every attempt
// (§4.1, §5). GET responses are served from and written back to the
// optional response cache; a cached negative response short-circuits
// the call entirely rather than re-hitting a struggling endpoint.
func (c *Client) do(ctx context.Context, method, path string, out any) error {
	cacheKey := ""
	if c.cache != nil && method == http.MethodGet {
		cacheKey = c.cache.UpstreamKey(method, c.baseURL, path)
		if neg, ok := c.cache.GetNegativeCache(ctx, cacheKey); ok {
			middleware.RecordCacheHit("upstream_negative")
			return apperr.NewUpstreamError(neg.Status, neg.Message)
		}
		if entry, ok := c.cache.GetHTTPCache(ctx, cacheKey); ok {
			if out == nil {
				return nil
			}
			return json.Unmarshal(entry.Body, out)
		}
	}

	var body []byte
	var lastResp *http.Response
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("X-Org-Id", c.orgID)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err // network errors are retried
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return apperr.NewUpstreamError(resp.StatusCode, string(b))
		}
		if resp.StatusCode >= 400 {
			if cacheKey != "" {
				_ = c.cache.CacheNegativeResponse(ctx, cacheKey, resp.StatusCode, string(b), resp.Header.Get("Retry-After"))
			}
			return backoff.Permanent(apperr.NewUpstreamError(resp.StatusCode, string(b)))
		}

		lastResp = resp
		body = b
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries))
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return err
	}

	if cacheKey != "" && lastResp != nil {
		_ = c.cache.CacheHTTPResponse(ctx, cacheKey, lastResp, body, c.cacheTTL)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// page is the raw pagination envelope the provider returns.
type page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// PageIterator walks a paginated provider endpoint one page at a time,
// honoring context cancellation between pages (§4.1, §9 redesign).
type PageIterator[T any] struct {
	client *Client
	path   string
	cursor string
	done   bool
}

func newPageIterator[T any](c *Client, path string) *PageIterator[T] {
	return &PageIterator[T]{client: c, path: path}
}

// Next fetches the next page. It returns (nil, false, nil) once
// exhausted.
func (it *PageIterator[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.done {
		return nil, false, nil
	}
	path := it.path
	if it.cursor != "" {
		sep := "?"
		if strings.ContainsRune(path, '?') {
			sep = "&"
		}
		path = fmt.Sprintf("%s%scursor=%s", path, sep, it.cursor)
	}

	var p page[T]
	if err := it.client.do(ctx, http.MethodGet, path, &p); err != nil {
		return nil, false, err
	}

	if p.NextCursor == "" {
		it.done = true
	}
	it.cursor = p.NextCursor
	return p.Items, true, nil
}

// All drains the iterator, stopping early if ctx is cancelled.
func (it *PageIterator[T]) All(ctx context.Context) ([]T, error) {
	var all []T
	for {
		items, more, err := it.Next(ctx)
		if err != nil {
			return all, err
		}
		all = append(all, items...)
		if !more {
			return all, nil
		}
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}
	}
}

func (c *Client) ListSeasons(ctx context.Context, orgID string) ([]string, error) {
	it := newPageIterator[string](c, fmt.Sprintf("/orgs/%s/seasons", orgID))
	return it.All(ctx)
}

func (c *Client) ListGrades(ctx context.Context, season core.SeasonID) ([]string, error) {
	it := newPageIterator[string](c, fmt.Sprintf("/seasons/%s/grades", season))
	return it.All(ctx)
}

func (c *Client) ListTeams(ctx context.Context, grade core.GradeID) ([]core.Team, error) {
	it := newPageIterator[core.Team](c, fmt.Sprintf("/grades/%s/teams", grade))
	return it.All(ctx)
}

func (c *Client) ListFixtures(ctx context.Context, team core.TeamID, season core.SeasonID) ([]core.Fixture, error) {
	it := newPageIterator[core.Fixture](c, fmt.Sprintf("/teams/%s/fixtures?season=%s", team, season))
	return it.All(ctx)
}

func (c *Client) FetchLadder(ctx context.Context, grade core.GradeID) (*core.Ladder, error) {
	var l core.Ladder
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/grades/%s/ladder", grade), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) FetchGameSummary(ctx context.Context, fixture core.FixtureID) (*core.Scorecard, error) {
	var s core.Scorecard
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/fixtures/%s/summary", fixture), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) FetchRoster(ctx context.Context, team core.TeamID) (*core.Roster, error) {
	var r core.Roster
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/teams/%s/roster", team), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

var _ core.UpstreamClient = (*Client)(nil)
