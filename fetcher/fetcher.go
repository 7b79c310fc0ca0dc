// Package fetcher retrieves online resolver records from the paginated
// directory API.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"publicresolvers/resolvers"
)

const (
	DefaultPerPage        = 1000
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 30 * time.Second
	DefaultRequestTimeout = 60 * time.Second
	DefaultPageDelay      = time.Second

	sortKey = "country_id"
)

// ErrTransport matches every *TransportError.
var ErrTransport = errors.New("transport error")

// TransportError is returned when a page could not be fetched within the
// retry budget.
type TransportError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch page %d: giving up after %d attempts: %v", e.Page, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return "unexpected status " + e.Status
}

// Options configures a Client. PerPage, MaxRetries and RequestTimeout fall
// back to the package defaults when zero; delays do so only when negative.
type Options struct {
	Endpoint       string
	PerPage        int
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	PageDelay      time.Duration
	HTTPClient     *http.Client
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client fetches every online resolver from the directory API, one page at a time.
type Client struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
	sleep  SleepFunc
}

// New constructs a Client. A nil logger discards output.
func New(opts Options, logger *slog.Logger) *Client {
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.PageDelay < 0 {
		opts.PageDelay = DefaultPageDelay
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{opts: opts, http: httpClient, logger: logger, sleep: sleepContext}
}

// WithSleep replaces the delay function used between retries and pages.
func (c *Client) WithSleep(fn SleepFunc) *Client {
	if fn != nil {
		c.sleep = fn
	}
	return c
}

type pageBody struct {
	Data []json.RawMessage `json:"data"`
}

// FetchAll walks the API from page 1 and returns the online resolvers in API
// order. A page holding fewer items than the page size is the last one; when
// the total is an exact multiple of the page size this costs one extra,
// empty request.
func (c *Client) FetchAll(ctx context.Context) ([]resolvers.Resolver, error) {
	var all []resolvers.Resolver
	for page := 1; ; page++ {
		c.logger.Info("fetching page", "page", page)
		body, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}

		for i, item := range body.Data {
			raw, ok := resolvers.DecodeRecord(item)
			if !ok {
				c.logger.Warn("skipping malformed record", "page", page, "index", i)
				continue
			}
			if !raw.IsOnline() {
				continue
			}
			res := resolvers.Normalize(raw)
			if strings.TrimSpace(res.IP) == "" {
				c.logger.Warn("skipping record without address", "page", page, "index", i)
				continue
			}
			all = append(all, res)
		}
		c.logger.Info("page fetched", "page", page, "servers", len(body.Data))

		if len(body.Data) < c.opts.PerPage {
			break
		}
		if err := c.sleep(ctx, c.opts.PageDelay); err != nil {
			return nil, err
		}
	}
	c.logger.Info("fetch complete", "online_servers", len(all))
	return all, nil
}

// fetchPage requests a single page, retrying transient failures with a fixed
// delay between attempts.
func (c *Client) fetchPage(ctx context.Context, page int) (*pageBody, error) {
	reqURL, err := c.pageURL(page)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		body, err := c.getPage(ctx, reqURL)
		if err == nil {
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
		c.logger.Warn("page request failed", "page", page, "attempt", attempt, "error", err)
		if attempt < c.opts.MaxRetries {
			if err := c.sleep(ctx, c.opts.RetryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, &TransportError{Page: page, Attempts: c.opts.MaxRetries, Err: lastErr}
}

func (c *Client) getPage(ctx context.Context, reqURL string) (*pageBody, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	var body pageBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &body, nil
}

func (c *Client) pageURL(page int) (string, error) {
	u, err := url.Parse(c.opts.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("dns_server_is_online", "true")
	q.Set("per_page", strconv.Itoa(c.opts.PerPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("sort_by", sortKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
