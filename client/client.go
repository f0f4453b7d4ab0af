// Package client is the fasthttp transport used by the request cache.
package client

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/saiset-co/estate-client/metrics"
	"github.com/saiset-co/estate-client/types"
	"github.com/saiset-co/estate-client/utils"
)

const (
	HeaderRequestID = "X-Request-ID"
	defaultTimeout  = 30 * time.Second
)

// Doer is satisfied by *fasthttp.Client and *fasthttp.HostClient.
type Doer interface {
	DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error
}

type HTTPClient struct {
	logger         types.Logger
	metrics        types.MetricsManager
	session        types.SessionStore
	doer           Doer
	baseURL        string
	requestTimeout time.Duration
	limiter        *rate.Limiter
	circuitBreaker *CircuitBreaker
}

var _ types.Requester = (*HTTPClient)(nil)

type Option func(*HTTPClient)

// WithDoer replaces the default fasthttp.Client, e.g. with one dialing an in-memory listener.
func WithDoer(doer Doer) Option {
	return func(c *HTTPClient) {
		c.doer = doer
	}
}

func WithMetrics(metrics types.MetricsManager) Option {
	return func(c *HTTPClient) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

func NewHTTPClient(logger types.Logger, config *types.ClientConfig, session types.SessionStore, opts ...Option) (*HTTPClient, error) {
	if config == nil {
		return nil, types.ErrClientNotInitialized
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		return nil, types.ErrClientBaseURLEmpty
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &HTTPClient{
		logger:  logger,
		metrics: metrics.NewNoopMetrics(),
		session: session,
		doer: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		baseURL:        baseURL,
		requestTimeout: timeout,
		circuitBreaker: NewCircuitBreaker(config.CircuitBreaker, logger, baseURL),
	}

	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) BreakerState() string {
	return c.circuitBreaker.State()
}

// Get issues GET baseURL+path[?query]. A non-2xx status returns a *types.StatusError
// together with the status code; the body is only returned for 2xx.
func (c *HTTPClient) Get(ctx context.Context, path string, query string, opts *types.CallOptions) ([]byte, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, types.Errorf(types.ErrRateLimited, "%v", err)
		}
	}

	timeout := c.requestTimeout
	if opts != nil && opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	uri := c.baseURL + path
	if query != "" {
		uri += "?" + query
	}

	headers := c.buildHeaders(opts)

	start := time.Now()
	var body []byte
	var statusCode int

	err := c.circuitBreaker.Execute(func() error {
		var err error
		body, statusCode, err = c.do(ctx, uri, headers, timeout)
		if err != nil {
			return err
		}
		if statusCode < 200 || statusCode > 299 {
			return &types.StatusError{StatusCode: statusCode, Path: path}
		}
		return nil
	})

	c.recordMetrics(statusCode, err, time.Since(start))

	if err != nil {
		c.logger.Debug("Request failed",
			zap.String("uri", uri),
			zap.Int("status_code", statusCode),
			zap.String("request_id", headers[HeaderRequestID]),
			zap.Error(err))
		return nil, statusCode, err
	}

	c.logger.Debug("Request completed",
		zap.String("uri", uri),
		zap.Int("status_code", statusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))

	return body, statusCode, nil
}

func (c *HTTPClient) buildHeaders(opts *types.CallOptions) map[string]string {
	headers := map[string]string{
		"Content-Type":    "application/json",
		"Accept":          "application/json",
		"Accept-Encoding": "gzip, br",
		HeaderRequestID:   uuid.NewString(),
	}

	if c.session != nil {
		if token, ok := c.session.Token(); ok {
			headers["Authorization"] = "Bearer " + token
		}
	}

	if opts != nil {
		for key, value := range opts.Headers {
			headers[key] = value
		}
	}

	return headers
}

type response struct {
	body       []byte
	statusCode int
	err        error
}

// do runs the exchange on its own goroutine so ctx can abandon the wait. The
// request and response objects are owned by that goroutine.
func (c *HTTPClient) do(ctx context.Context, uri string, headers map[string]string, timeout time.Duration) ([]byte, int, error) {
	done := make(chan response, 1)

	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(uri)
		req.Header.SetMethod(fasthttp.MethodGet)
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		if err := c.doer.DoTimeout(req, resp, timeout); err != nil {
			done <- response{err: types.Errorf(types.ErrRequestFailed, "%s: %v", uri, err)}
			return
		}

		statusCode := resp.StatusCode()
		if statusCode < 200 || statusCode > 299 {
			done <- response{statusCode: statusCode}
			return
		}

		body, err := decodeBody(resp)
		if err != nil {
			done <- response{statusCode: statusCode, err: types.Errorf(types.ErrDecodeFailed, "%s: %v", uri, err)}
			return
		}

		done <- response{body: body, statusCode: statusCode}
	}()

	select {
	case res := <-done:
		return res.body, res.statusCode, res.err
	case <-ctx.Done():
		return nil, 0, types.Errorf(types.ErrRequestFailed, "%s: %v", uri, ctx.Err())
	}
}

// decodeBody returns a copy of the response body with any content encoding removed.
func decodeBody(resp *fasthttp.Response) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(utils.BytesToString(resp.Header.ContentEncoding())))

	switch encoding {
	case "", "identity":
		return append([]byte(nil), resp.Body()...), nil
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(resp.Body())))
	case "gzip":
		return resp.BodyGunzip()
	case "deflate":
		return resp.BodyInflate()
	default:
		return nil, types.Errorf(types.ErrNotSupported, "content encoding %q", encoding)
	}
}

func (c *HTTPClient) recordMetrics(statusCode int, err error, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode/100) + "xx"
	}
	if types.IsError(err, types.ErrCircuitBreakerOpen) {
		status = "breaker_open"
	}

	c.metrics.Counter("http_client_requests_total", map[string]string{
		"status": status,
	}).Inc()

	c.metrics.Histogram("http_client_request_duration_seconds",
		[]float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		nil,
	).Observe(duration.Seconds())
}
