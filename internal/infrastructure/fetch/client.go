package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"TdnetDownloader/internal/domain"
	"TdnetDownloader/internal/ports"
)

// Options configures the shared headers and per-request timeout.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Referer   string
}

// StatusError reports a non-success, non-404 HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// Client is a single-attempt HTTP fetcher. It never retries.
type Client struct {
	http *resty.Client
}

var _ ports.Fetcher = (*Client)(nil)

// NewClient builds a resty client carrying the browser-like headers the
// listing service expects.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	rc := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(0)
	if opts.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Referer != "" {
		rc.SetHeader("Referer", opts.Referer)
	}

	return &Client{http: rc}
}

// Fetch GETs url and returns the body. 404 wraps domain.ErrNotFound.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}

	if res.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("GET %s: %w", url, domain.ErrNotFound)
	}
	if !res.IsSuccess() {
		return nil, &StatusError{URL: url, StatusCode: res.StatusCode(), Status: res.Status()}
	}

	return res.Body(), nil
}
