package weibo

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resty.dev/v3"
	crawlerrors "weibocrawl/pkg/errors"
	"weibocrawl/pkg/logger"
)

// ClientConfig configures the upstream HTTP client
type ClientConfig struct {
	// Timeout bounds a whole request, including reading the body
	Timeout time.Duration

	ResponseMiddlewares []resty.ResponseMiddleware

	// Transport replaces the default transport, tests use it to fake failures
	Transport http.RoundTripper

	Logger logger.Logger
}

// Response is the raw outcome of a completed request
type Response struct {
	Status int
	Body   []byte
}

// Client performs single GET requests against the JSON API. It never
// retries; callers decide what a failed request means.
type Client struct {
	client *resty.Client
	logger logger.Logger
}

// NewClient creates a new upstream API client
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	client := resty.New()
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.Transport != nil {
		client.SetTransport(cfg.Transport)
	}
	// Cookies come from the session on every request; the server must not
	// be able to change them mid-run.
	client.SetCookieJar(nil)
	for _, mw := range cfg.ResponseMiddlewares {
		client.AddResponseMiddleware(mw)
	}

	return &Client{client: client, logger: log}
}

// Close releases idle connections
func (c *Client) Close() error {
	return c.client.Close()
}

// Fetch performs one GET with the given headers and cookies. Any completed
// exchange is returned regardless of status; only transport failures and
// cancellation produce an error.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, cookies []*http.Cookie) (*Response, error) {
	start := time.Now()
	res, err := c.client.R().
		WithContext(ctx).
		SetHeaders(headers).
		SetCookies(cookies).
		Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, crawlerrors.TransientAPI("fetch", "", 0, 0, fmt.Errorf("GET %s: %w", url, err))
	}

	logger.LogRequest(c.logger, http.MethodGet, url, res.StatusCode(), res.Duration())

	return &Response{Status: res.StatusCode(), Body: res.Bytes()}, nil
}
