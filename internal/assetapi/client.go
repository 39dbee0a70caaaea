package assetapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures a Client
type Options struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RPS       float64
	Retries   int
	UserAgent string
	Breaker   BreakerSettings
	Logger    *zap.Logger
}

// Response is a fully read API response
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client talks to the brand-data API
type Client struct {
	base    *url.URL
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *breaker
	logger  *zap.Logger
	token   string
	opts    Options
}

// New creates a client for the API rooted at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse asset api url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("asset api url %q: scheme must be http or https", opts.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("asset api url %q: missing host", opts.BaseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("assetapi")

	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "BrandHub-Sandbox/1.0"
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = max(opts.Retries, 0)
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = retryLogger{logger.Sugar()}
	// Hand the last response back untouched so a 5xx surfaces as StatusError.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	httpClient := retryClient.StandardClient()
	httpClient.Timeout = opts.Timeout

	restyClient := resty.NewWithClient(httpClient).
		SetBaseURL(base.String()).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json")

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), max(int(opts.RPS), 1))
	}

	settings := opts.Breaker
	userHook := settings.OnStateChange
	settings.OnStateChange = func(from, to BreakerState) {
		logger.Warn("circuit breaker state changed",
			zap.Stringer("from", from),
			zap.Stringer("to", to))
		if userHook != nil {
			userHook(from, to)
		}
	}

	return &Client{
		base:    base,
		resty:   restyClient,
		limiter: limiter,
		breaker: newBreaker(settings),
		logger:  logger,
		token:   opts.Token,
		opts:    opts,
	}, nil
}

// ForGuests returns a client for guest-initiated traffic against the same
// API. It carries no token and has its own limiter and breaker, so guest
// failures never trip the circuit used by the server itself.
func (c *Client) ForGuests() (*Client, error) {
	opts := c.opts
	opts.Token = ""
	opts.Retries = 0
	opts.Breaker.OnStateChange = nil
	if opts.Logger != nil {
		opts.Logger = opts.Logger.Named("guest")
	}
	return New(opts)
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Origin returns scheme://host[:port] of the API.
func (c *Client) Origin() string {
	return c.base.Scheme + "://" + c.base.Host
}

// BreakerState exposes the circuit breaker state for health reporting.
func (c *Client) BreakerState() BreakerState {
	return c.breaker.State()
}

// GetJSON issues GET path?query relative to the base URL and decodes a 2xx
// JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if resp.Status < 200 || resp.Status > 299 {
		return &StatusError{Method: http.MethodGet, URL: path, Status: resp.Status, Body: truncate(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(resp.Body, out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

// Do issues a request against an absolute URL. Non-2xx responses are
// returned as-is; only transport failures produce an error.
func (c *Client) Do(ctx context.Context, method, rawURL string, header http.Header) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("asset api: %q is not an absolute url", rawURL)
	}
	return c.do(ctx, method, u.String(), nil, header)
}

func (c *Client) do(ctx context.Context, method, target string, query url.Values, header http.Header) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	if err := c.breaker.allow(); err != nil {
		return nil, err
	}

	req := c.resty.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	// The token is only ever sent to the API's own origin.
	if c.token != "" && c.ownOrigin(target) {
		req.SetAuthToken(c.token)
	}

	start := time.Now()
	resp, err := req.Execute(method, target)
	if err != nil {
		// A caller giving up is not evidence that the API is down.
		if errors.Is(err, context.Canceled) {
			c.breaker.release()
		} else {
			c.breaker.record(false)
		}
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("url", target),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("asset api: %s %s: %w", method, target, err)
	}

	c.breaker.record(resp.StatusCode() < 500)
	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("duration", time.Since(start)))

	return &Response{
		Status: resp.StatusCode(),
		Header: resp.Header(),
		Body:   resp.Body(),
	}, nil
}

// ownOrigin reports whether target is relative to the base URL or points
// at the API's origin.
func (c *Client) ownOrigin(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if !u.IsAbs() {
		return u.Host == ""
	}
	return strings.EqualFold(u.Scheme, c.base.Scheme) && strings.EqualFold(u.Host, c.base.Host)
}

// retryLogger adapts zap to retryablehttp.LeveledLogger.
type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }

var _ retryablehttp.LeveledLogger = retryLogger{}
