// Package telegram fetches public channel preview pages from t.me.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"github.com/blockedby/tchan/internal/logger"
	"github.com/blockedby/tchan/internal/parser"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "tchan/0.1"

// NetworkError is returned when a page could not be retrieved: transport
// failures, timeouts and non-2xx responses once retries are used up.
type NetworkError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same request may succeed.
func (e *NetworkError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ClientConfig configures the page fetcher.
type ClientConfig struct {
	UserAgent string
	Timeout   time.Duration
	// Retries is how many times a temporary failure is retried.
	Retries int
	// Backoff is the base delay of the exponential retry schedule.
	Backoff time.Duration
	// RateLimitRPS caps requests per second. Zero disables the limiter.
	RateLimitRPS float64
}

// Client fetches preview pages. It is safe for concurrent use and shares
// one connection pool between all callers.
type Client struct {
	http        *resty.Client
	rateLimiter *RateLimiter
	retries     uint64
	backoff     time.Duration
	log         *logger.Logger
}

// NewClient creates a page fetcher.
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if log == nil {
		log = logger.Get()
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html")

	return &Client{
		http:        client,
		rateLimiter: NewRateLimiter(cfg.RateLimitRPS, 1),
		retries:     uint64(cfg.Retries),
		backoff:     cfg.Backoff,
		log:         log,
	}
}

// Fetch downloads pageURL and parses it into a document tree.
func (c *Client) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var body []byte

	attempt := 0
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.http.R().SetContext(ctx).Get(pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Debug().Err(err).Str("url", pageURL).Int("attempt", attempt).Msg("fetch failed")
			return retry.RetryableError(&NetworkError{URL: pageURL, Err: err})
		}

		if !resp.IsSuccess() {
			netErr := &NetworkError{URL: pageURL, StatusCode: resp.StatusCode()}
			if !netErr.Temporary() {
				return netErr
			}
			if resp.StatusCode() == http.StatusTooManyRequests {
				c.rateLimiter.SetRetryAfter(retryAfter(resp.Header().Get("Retry-After")))
			}
			c.log.Debug().Str("url", pageURL).Int("status", resp.StatusCode()).Int("attempt", attempt).Msg("temporary fetch failure")
			return retry.RetryableError(netErr)
		}

		body = resp.Body()
		return nil
	})
	if err != nil {
		var netErr *NetworkError
		if errors.As(err, &netErr) {
			return nil, netErr
		}
		return nil, &NetworkError{URL: pageURL, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &parser.StructureError{Element: "document", Err: err}
	}
	return doc, nil
}

// retryAfter parses the delay-seconds form of a Retry-After header.
func retryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
