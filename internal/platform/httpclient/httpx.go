// Package httpclient wraps net/http with retries, backoff and an optional
// token bucket shared by every request of a client.
package httpclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/logx"
	"droidsweep/internal/platform/rate"
)

const defaultUserAgent = "droidsweep/1.0"

// MaxBodySize caps how much of a response body ReadBody keeps. Indicator
// feeds are a few MB at most.
const MaxBodySize = 64 << 20

// Config holds the client settings. Zero values take the defaults.
type Config struct {
	// Timeout bounds a single attempt, body included. Default 15s.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries int

	// RetryBackoff doubles on each retry up to MaxRetryBackoff.
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration

	UserAgent string

	// RateLimit in requests per second. 0 disables the limiter.
	RateLimit      float64
	RateLimitBurst int

	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
}

func DefaultConfig() Config {
	return Config{
		Timeout:         15 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    500 * time.Millisecond,
		MaxRetryBackoff: 10 * time.Second,
		UserAgent:       defaultUserAgent,
		RateLimitBurst:  1,
	}
}

// Client performs GET requests with retry on transport errors and on
// 429/502/503/504.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	logger  logx.Logger
	config  Config
}

func New(config Config, logger logx.Logger) *Client {
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = def.RetryBackoff
	}
	if config.MaxRetryBackoff <= 0 {
		config.MaxRetryBackoff = def.MaxRetryBackoff
	}
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
	}
	if config.RateLimitBurst <= 0 {
		config.RateLimitBurst = 1
	}
	if logger == nil {
		logger = logx.Discard()
	}

	c := &Client{
		http:   &http.Client{Timeout: config.Timeout, Transport: config.Transport},
		logger: logger.With("component", "httpclient"),
		config: config,
	}
	if config.RateLimit > 0 {
		c.limiter = rate.New(config.RateLimit, config.RateLimitBurst)
	}
	return c
}

// Get issues a GET request. The caller owns the returned body. A response is
// returned for any status that is not retried; use CheckStatus on it.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, classifyTransport(err, url)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errors.Classify(errors.ErrConfiguration, err, "invalid request url "+url)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		took := time.Since(start)

		if err != nil {
			lastErr = classifyTransport(err, url)
			c.logger.Warn("request failed", "url", url, "attempt", attempt+1, "error", err.Error())
			if ctx.Err() != nil || attempt == c.config.MaxRetries {
				break
			}
			if err := c.sleep(ctx, c.backoff(attempt, nil)); err != nil {
				return nil, classifyTransport(err, url)
			}
			continue
		}

		c.logger.Debug("response", "url", url, "status", resp.StatusCode, "ms", took.Milliseconds())
		c.observeQuota(resp)

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		lastErr = CheckStatus(resp)
		wait := c.backoff(attempt, resp)
		resp.Body.Close()
		if attempt == c.config.MaxRetries {
			break
		}
		c.logger.Warn("retryable status", "url", url, "status", resp.StatusCode, "attempt", attempt+1)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, classifyTransport(err, url)
		}
	}

	return nil, errors.Wrapf(lastErr, "GET %s failed after %d attempts", url, c.config.MaxRetries+1)
}

// Fetch GETs url and returns the body of a 2xx response.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	resp, err := c.Get(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	if err := CheckStatus(resp); err != nil {
		resp.Body.Close()
		return nil, errors.Wrapf(err, "GET %s", url)
	}
	return ReadBody(resp)
}

// FetchJSON is Fetch with an Accept header for JSON APIs.
func (c *Client) FetchJSON(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	h := map[string]string{"Accept": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return c.Fetch(ctx, url, h)
}

// SetRateLimit replaces the limiter. rps <= 0 disables it.
func (c *Client) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	if c.limiter == nil {
		c.limiter = rate.New(rps, burst)
		return
	}
	c.limiter.SetRate(rps)
	c.limiter.SetBurst(burst)
}

func (c *Client) String() string {
	return fmt.Sprintf("httpclient{timeout=%s retries=%d rate=%.1f/s}",
		c.config.Timeout, c.config.MaxRetries, c.config.RateLimit)
}

// observeQuota pauses the limiter when the server says the quota is spent
// (GitHub sends X-RateLimit-Remaining and X-RateLimit-Reset).
func (c *Client) observeQuota(resp *http.Response) {
	if c.limiter == nil || resp.Header.Get("X-RateLimit-Remaining") != "0" {
		return
	}
	reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return
	}
	until := time.Unix(reset, 0)
	c.limiter.PauseUntil(until)
	c.logger.Warn("API quota exhausted", "reset", until.UTC().Format(time.RFC3339))
}

// backoff honours Retry-After when present.
func (c *Client) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			d := time.Duration(secs) * time.Second
			if d > c.config.MaxRetryBackoff {
				d = c.config.MaxRetryBackoff
			}
			return d
		}
	}
	d := c.config.RetryBackoff << attempt
	if d <= 0 || d > c.config.MaxRetryBackoff {
		d = c.config.MaxRetryBackoff
	}
	return d
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func classifyTransport(err error, url string) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Classify(errors.ErrTimeout, err, "GET "+url)
	}
	var te interface{ Timeout() bool }
	if stderrors.As(err, &te) && te.Timeout() {
		return errors.Classify(errors.ErrTimeout, err, "GET "+url)
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	return errors.Classify(errors.ErrNetwork, err, "GET "+url)
}

// ReadBody reads at most MaxBodySize bytes and closes the body.
func ReadBody(resp *http.Response) ([]byte, error) {
	if resp == nil {
		return nil, errors.New("nil response")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, errors.Classify(errors.ErrNetwork, err, "reading response body")
	}
	if len(body) > MaxBodySize {
		return nil, errors.Classify(errors.ErrInvalidResponse, errors.ErrFormat,
			fmt.Sprintf("response body larger than %d bytes", MaxBodySize))
	}
	return body, nil
}

// CheckStatus maps a non-2xx status to one of the transport sentinels.
func CheckStatus(resp *http.Response) error {
	if resp == nil {
		return errors.New("nil response")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return errors.ErrRateLimit
	case http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return errors.ErrRateLimit
		}
		return errors.ErrUnauthorized
	case http.StatusUnauthorized:
		return errors.ErrUnauthorized
	case http.StatusNotFound:
		return errors.ErrNotFound
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return errors.ErrServiceUnavailable
	}
	if resp.StatusCode >= 500 {
		return errors.Classify(errors.ErrServiceUnavailable, errors.New("HTTP "+resp.Status), "server error")
	}
	return errors.Classify(errors.ErrNetwork, errors.ErrInvalidResponse, "HTTP "+resp.Status)
}
