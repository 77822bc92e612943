// Package gitlab - Handles all interaction with the GitLab REST API: an
// authenticated GET-only client with retry and backoff, page iteration and
// the project and vulnerability accessors built on top of it.
package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrMissingToken is returned by NewClient when no access token is given.
var ErrMissingToken = errors.New("gitlab: access token is required")

// retryStatuses are the responses worth another attempt.
var retryStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

const (
	// rateLimitFallback is the pause after a 429 without a numeric Retry-After.
	rateLimitFallback = 2 * time.Second
	maxLoggedBody     = 500
)

// StatusError is a non-200 response from the API.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s failed (%d): %s", e.URL, e.StatusCode, e.Body)
}

// Options configure a Client. Zero values fall back to the defaults.
type Options struct {
	BaseURL           string
	Token             string
	PerPage           int
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	MaxRetries        int
	BackoffFactor     time.Duration
	RequestsPerSecond float64
	MaxIdleConns      int
	Logger            *zap.Logger
}

// Client is an authenticated GET-only GitLab API client.
type Client struct {
	baseURL       string
	token         string
	perPage       int
	maxRetries    int
	backoffFactor time.Duration
	httpClient    *http.Client
	limiter       *rate.Limiter
	logger        *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client with a single pooled transport shared by every request.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, ErrMissingToken
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://gitlab.com/api/v4"
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 50
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	if opts.BackoffFactor == 0 {
		opts.BackoffFactor = 500 * time.Millisecond
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 50
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 90 * time.Second,
		}).DialContext,
		MaxIdleConns:          opts.MaxIdleConns,
		MaxIdleConnsPerHost:   opts.MaxIdleConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		token:         opts.Token,
		perPage:       opts.PerPage,
		maxRetries:    opts.MaxRetries,
		backoffFactor: opts.BackoffFactor,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.ConnectTimeout + opts.ReadTimeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  opts.Logger,
		now:     time.Now,
		sleep:   sleepContext,
	}, nil
}

// FetchPage GETs path with params and decodes the body as a JSON array.
// A non-nil error means the page produced no data; it has already been logged.
func (c *Client) FetchPage(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error) {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	body, err := c.retrying(ctx, u, c.get)
	if err != nil {
		c.logger.Error("Page fetch failed", zap.String("url", u), zap.Error(err))
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		c.logger.Error("JSON parse error", zap.String("url", u), zap.Error(err))
		return nil, fmt.Errorf("failed to parse response from %s: %w", u, err)
	}
	return items, nil
}

// getFunc is the single GET primitive that retrying decorates.
type getFunc func(ctx context.Context, u string) ([]byte, error)

// retrying runs get with exponential backoff. Errors wrapped with
// backoff.Permanent end the loop at once.
func (c *Client) retrying(ctx context.Context, u string, get getFunc) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.backoffFactor
	bo.MaxElapsedTime = 0 // bounded by the retry budget instead

	var body []byte
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		b, err := get(ctx, u)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetries)), ctx), func(err error, next time.Duration) {
		c.logger.Warn("Retrying request",
			zap.String("url", u),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", next),
			zap.Error(err))
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// get performs one attempt and classifies the failure as transient or permanent.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("GET", zap.String("url", u))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTransient(err) && ctx.Err() == nil {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTransient(err) && ctx.Err() == nil {
			c.logger.Warn("Connection dropped while reading body", zap.String("url", u), zap.Error(err))
			return nil, err
		}
		return nil, backoff.Permanent(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	statusErr := &StatusError{URL: u, StatusCode: resp.StatusCode, Body: truncate(string(body), maxLoggedBody)}
	if !retryStatuses[resp.StatusCode] {
		return nil, backoff.Permanent(statusErr)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		delay, ok := retryAfter(resp.Header.Get("Retry-After"))
		if ok {
			c.logger.Warn("Rate limited, sleeping", zap.String("url", u), zap.Duration("delay", delay))
		} else {
			c.logger.Warn("Rate limited without numeric Retry-After, backing off", zap.String("url", u), zap.Duration("delay", delay))
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, backoff.Permanent(err)
		}
	}
	return nil, statusErr
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(header string) (time.Duration, bool) {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return rateLimitFallback, false
	}
	return time.Duration(secs) * time.Second, true
}

// isTransient reports the network errors that are retried: connection resets,
// bodies cut short and timeouts.
func isTransient(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
