package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/logging"
)

const (
	perPage        = 100
	requestTimeout = 30 * time.Second
)

// Default retry settings
const (
	defaultMaxRetries     = 5
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 2 * time.Minute
)

// ErrRateLimited indicates the backend still returned 429 after all retries
var ErrRateLimited = errors.New("rate limited")

// ErrUnauthorized indicates the API key was rejected
var ErrUnauthorized = errors.New("unauthorized: check LIFT_BACKEND_API_KEY")

// RateLimitInfo is the backend's last reported request budget
type RateLimitInfo struct {
	Limit         int
	Remaining     int
	Reset         time.Time
	IsRateLimited bool
}

// RecommendedWait returns how long to pause before the next request
func (info RateLimitInfo) RecommendedWait(now time.Time) time.Duration {
	if info.Limit == 0 || info.Remaining > 0 || info.Reset.IsZero() {
		return 0
	}
	return max(0, info.Reset.Sub(now))
}

// FetchResult reports one fetched page
type FetchResult struct {
	Kind         string
	Page         int
	Count        int
	TotalFetched int
	RateLimit    RateLimitInfo
}

// ProgressCallback is called after each page is fetched
type ProgressCallback func(result FetchResult)

// RetryConfig holds retry/backoff settings
type RetryConfig struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: defaultMaxRetries,
		MinWait:    defaultInitialBackoff,
		MaxWait:    defaultMaxBackoff,
	}
}

// Client reads workout and cardio rows from the hosted backend with
// automatic retry and backoff. Requests carry the API key as a bearer token.
type Client struct {
	httpClient *retryablehttp.Client
	baseURL    string
	rateMu     sync.RWMutex
	rateLimit  RateLimitInfo
}

// NewClient creates a client for baseURL authenticating with apiKey
func NewClient(baseURL, apiKey string, cfg RetryConfig) *Client {
	log := logging.Logger

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = cfg.MinWait
	client.RetryWaitMax = cfg.MaxWait
	client.Logger = &logging.LeveledLogger{}
	// hand the final response back so exhausted 429s map to ErrRateLimited
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"})
	client.HTTPClient = oauth2.NewClient(context.Background(), src)
	client.HTTPClient.Timeout = requestTimeout

	// retry on 429 and 5xx, never on auth failures or missing resources
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return false, nil
		case resp.StatusCode == http.StatusNotFound:
			return false, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return true, nil
		case resp.StatusCode >= 500:
			return true, nil
		}
		return false, nil
	}

	client.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					wait := time.Duration(seconds) * time.Second
					log.Info().
						Dur("wait", wait).
						Int("attempt", attemptNum).
						Msg("rate limited, waiting for Retry-After header")
					return wait
				}
			}
		}

		wait := min * time.Duration(1<<uint(attemptNum))
		if wait > max {
			wait = max
		}
		log.Info().
			Dur("wait", wait).
			Int("attempt", attemptNum).
			Msg("backing off before retry")
		return wait
	}

	client.RequestLogHook = func(logger retryablehttp.Logger, req *http.Request, retry int) {
		if retry > 0 {
			log.Info().
				Str("url", req.URL.Path).
				Int("attempt", retry+1).
				Msg("retrying request")
		}
		if logging.IsTraceEnabled() {
			log.Debug().
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Str("headers", formatHeaders(req.Header)).
				Msg("request headers")
		}
	}

	client.ResponseLogHook = func(logger retryablehttp.Logger, resp *http.Response) {
		if logging.IsTraceEnabled() {
			log.Debug().
				Int("status", resp.StatusCode).
				Str("url", resp.Request.URL.Path).
				Str("headers", formatHeaders(resp.Header)).
				Msg("response headers")
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			log.Warn().
				Str("url", resp.Request.URL.Path).
				Str("remaining", resp.Header.Get("X-RateLimit-Remaining")).
				Msg("rate limited by backend")
		}
	}

	return &Client{
		httpClient: client,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// RateLimit returns the budget reported by the most recent response
func (c *Client) RateLimit() RateLimitInfo {
	c.rateMu.RLock()
	defer c.rateMu.RUnlock()
	return c.rateLimit
}

// WaitForRateLimit blocks until the reported budget resets or ctx is done
func (c *Client) WaitForRateLimit(ctx context.Context) error {
	wait := c.RateLimit().RecommendedWait(time.Now())
	if wait <= 0 {
		return nil
	}

	logging.Logger.Info().Dur("wait", wait).Msg("waiting for rate limit window to reset")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// FetchWorkoutsSince fetches a user's workouts created at or after since.
// A zero since fetches everything.
func (c *Client) FetchWorkoutsSince(ctx context.Context, userID string, since time.Time, progress ProgressCallback) ([]analytics.WorkoutRecord, error) {
	return fetchAll[analytics.WorkoutRecord](ctx, c, "workouts", userID, since, progress)
}

// FetchCardioSince fetches a user's cardio sessions at or after since
func (c *Client) FetchCardioSince(ctx context.Context, userID string, since time.Time, progress ProgressCallback) ([]analytics.CardioRecord, error) {
	return fetchAll[analytics.CardioRecord](ctx, c, "cardio", userID, since, progress)
}

func fetchAll[T any](ctx context.Context, c *Client, kind, userID string, since time.Time, progress ProgressCallback) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		if err := c.WaitForRateLimit(ctx); err != nil {
			return all, err
		}

		var rows []T
		rateLimit, err := c.getPage(ctx, kind, userID, since, page, &rows)
		if progress != nil {
			progress(FetchResult{
				Kind:         kind,
				Page:         page,
				Count:        len(rows),
				TotalFetched: len(all) + len(rows),
				RateLimit:    rateLimit,
			})
		}
		if err != nil {
			return all, err
		}
		all = append(all, rows...)
		if len(rows) < perPage {
			return all, nil
		}
	}
}

func (c *Client) getPage(ctx context.Context, kind, userID string, since time.Time, page int, into any) (RateLimitInfo, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, kind, q.Encode())

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return RateLimitInfo{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RateLimitInfo{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	rateLimit := c.updateRateLimit(resp)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return rateLimit, ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return rateLimit, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return rateLimit, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return rateLimit, fmt.Errorf("decoding %s page %d: %w", kind, page, err)
	}
	return rateLimit, nil
}

func (c *Client) updateRateLimit(resp *http.Response) RateLimitInfo {
	info := parseRateLimitHeaders(resp.Header)
	if resp.StatusCode == http.StatusTooManyRequests {
		info.IsRateLimited = true
	}
	c.rateMu.Lock()
	c.rateLimit = info
	c.rateMu.Unlock()
	return info
}

// parseRateLimitHeaders reads X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset (unix seconds). Missing headers leave fields zero.
func parseRateLimitHeaders(headers http.Header) RateLimitInfo {
	var info RateLimitInfo
	info.Limit, _ = strconv.Atoi(headers.Get("X-RateLimit-Limit"))
	info.Remaining, _ = strconv.Atoi(headers.Get("X-RateLimit-Remaining"))
	if reset, err := strconv.ParseInt(headers.Get("X-RateLimit-Reset"), 10, 64); err == nil && reset > 0 {
		info.Reset = time.Unix(reset, 0)
	}
	info.IsRateLimited = info.Limit > 0 && headers.Get("X-RateLimit-Remaining") != "" && info.Remaining <= 0
	return info
}

// formatHeaders formats HTTP headers for logging, redacting sensitive values
func formatHeaders(headers http.Header) string {
	if len(headers) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		value := strings.Join(headers[k], ", ")
		switch strings.ToLower(k) {
		case "authorization", "cookie", "set-cookie":
			value = "[REDACTED]"
		}
		fmt.Fprintf(&sb, "%s: %q", k, value)
	}
	sb.WriteString("}")
	return sb.String()
}
