package ga4

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mkoziy/ga4mirror/internal/metrics"
	"github.com/mkoziy/ga4mirror/internal/models"
	"github.com/mkoziy/ga4mirror/internal/ratelimit"
)

const (
	defaultAdminBaseURL = "https://analyticsadmin.googleapis.com/v1beta"
	defaultDataBaseURL  = "https://analyticsdata.googleapis.com/v1beta"

	// Scope is the OAuth scope needed for every call the client makes.
	Scope = "https://www.googleapis.com/auth/analytics.readonly"

	// MaxDimensionsPerReport is the Data API's dimension cap per runReport call.
	MaxDimensionsPerReport = 9

	apiAdmin = "admin"
	apiData  = "data"
)

// Config configures the client. Zero values fall back to defaults.
type Config struct {
	AdminBaseURL   string
	DataBaseURL    string
	PageSize       int
	ReportPageSize int
	RateLimits     ratelimit.Set
	Breaker        BreakerConfig
	RequestTimeout time.Duration
}

// Client talks to the Admin and Data APIs. It is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	adminBaseURL string
	dataBaseURL  string
	pageSize     int
	reportPage   int
	limiters     map[string]ratelimit.Limiter
	maxRetries   map[string]int
	breaker      *gobreaker.CircuitBreaker[[]byte]
	logger       zerolog.Logger
}

// NewClient creates a client. httpClient must attach credentials, e.g. one
// built by golang.org/x/oauth2/google; nil uses an unauthenticated client.
func NewClient(httpClient *http.Client, cfg Config, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.RequestTimeout > 0 {
		c := *httpClient
		c.Timeout = cfg.RequestTimeout
		httpClient = &c
	}
	if cfg.AdminBaseURL == "" {
		cfg.AdminBaseURL = defaultAdminBaseURL
	}
	if cfg.DataBaseURL == "" {
		cfg.DataBaseURL = defaultDataBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if cfg.ReportPageSize <= 0 {
		cfg.ReportPageSize = 10000
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = DefaultBreakerConfig()
	}

	logger = logger.With().Str("component", "ga4").Logger()

	limiters := make(map[string]ratelimit.Limiter, 2)
	retries := make(map[string]int, 2)
	for _, api := range []string{apiAdmin, apiData} {
		lc := cfg.RateLimits.For(api)
		limiters[api] = ratelimit.NewLimiter(lc)
		retries[api] = lc.MaxRetries
	}

	return &Client{
		httpClient:   httpClient,
		adminBaseURL: cfg.AdminBaseURL,
		dataBaseURL:  cfg.DataBaseURL,
		pageSize:     cfg.PageSize,
		reportPage:   cfg.ReportPageSize,
		limiters:     limiters,
		maxRetries:   retries,
		breaker:      newBreaker("ga4-api", cfg.Breaker, logger),
		logger:       logger,
	}
}

// call is one HTTP exchange with the provider.
type call struct {
	api      string
	endpoint string
	method   string
	url      string
	body     any
}

// do sends c, decoding the JSON answer into out. Requests wait on the API's
// limiter, run inside the circuit breaker, and are retried with backoff on
// 429, 5xx and transport errors.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	var payload []byte
	if cl.body != nil {
		var err error
		if payload, err = json.Marshal(cl.body); err != nil {
			return fmt.Errorf("%s: encode request: %w", cl.endpoint, err)
		}
	}

	limiter := c.limiters[cl.api]
	maxRetries := c.maxRetries[cl.api]

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			metrics.GatewayRetries.WithLabelValues(cl.endpoint).Inc()
			if err := sleep(ctx, limiter.RetryAfter(attempt)); err != nil {
				return &transportError{endpoint: cl.endpoint, err: err}
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return &transportError{endpoint: cl.endpoint, err: err}
		}

		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.roundTrip(ctx, cl, payload)
		})
		if err == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("%s: decode response: %w", cl.endpoint, err)
			}
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn().Err(err).Str("endpoint", cl.endpoint).Msg("request rejected by circuit breaker")
			return fmt.Errorf("%w: %s: %v", models.ErrRemoteUnavailable, cl.endpoint, err)
		}

		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests && se.RetryAfter > 0 {
			limiter.Pause(se.RetryAfter)
		}
		if !unhealthy(err) || ctx.Err() != nil || !ratelimit.ShouldRetry(attempt+1, maxRetries) {
			return err
		}
		c.logger.Debug().Err(err).Str("endpoint", cl.endpoint).Int("attempt", attempt+1).Msg("retrying request")
	}
}

func (c *Client) roundTrip(ctx context.Context, cl call, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, cl.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordGatewayRequest(cl.endpoint, "transport_error", time.Since(start))
		return nil, &transportError{endpoint: cl.endpoint, err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	metrics.RecordGatewayRequest(cl.endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, &transportError{endpoint: cl.endpoint, err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(cl.endpoint, resp, data)
	}
	return data, nil
}

func newStatusError(endpoint string, resp *http.Response, data []byte) *StatusError {
	se := &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}

	var envelope errorResponse
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		se.Message = envelope.Error.Message
		se.Status = envelope.Error.Status
	} else {
		se.Message = string(bytes.TrimSpace(data))
	}
	if d, ok := ratelimit.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
		se.RetryAfter = d
	}
	return se
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func pageQuery(pageSize int, pageToken string, extra url.Values) string {
	params := url.Values{}
	for k, v := range extra {
		params[k] = v
	}
	params.Set("pageSize", strconv.Itoa(pageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	return params.Encode()
}
