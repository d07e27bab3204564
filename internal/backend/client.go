// Package backend is the HTTP client for the external DeepTrack services.
// Every console feature other than the wizard state lives behind it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"deeptrack/internal/platform/metrics"
	"deeptrack/pkg/platform/circuit"
	"deeptrack/pkg/requestcontext"
)

const (
	// APIKeyHeader carries the organization credential.
	APIKeyHeader = "x-api-key"

	maxErrorBody = 4 << 10
	maxBody      = 8 << 20
)

// Client performs JSON requests against one base URL.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *circuit.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithBreaker trips on retryable failures and short-circuits calls while open.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
		tracer:  otel.Tracer("deeptrack/internal/backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request describes one backend call.
type Request struct {
	// Operation names the call in logs, spans and metrics, e.g. "apikeys.list".
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Body      any
	APIKey    string
}

// Do sends req and decodes a 2xx JSON response into out (which may be nil).
// Failures are returned as *Error.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	op := req.Operation
	if c.breaker != nil && !c.breaker.Allow() {
		return newError(ErrorOutage, op, 0, "circuit open", nil)
	}

	ctx, span := c.tracer.Start(ctx, "backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	start := time.Now()
	status, err := c.do(ctx, req, out)
	c.metrics.ObserveBackendRequest(op, status, start)
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(GetCategory(err)))
		c.record(ctx, op, err)
		c.logger.WarnContext(ctx, "backend request failed",
			"operation", op,
			"status", status,
			"category", string(GetCategory(err)),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return err
	}
	c.record(ctx, op, nil)
	return nil
}

func (c *Client) record(ctx context.Context, op string, err error) {
	if c.breaker == nil {
		return
	}
	if IsRetryable(err) {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.metrics.SetBreakerOpen(c.breaker.Name(), true)
			c.logger.ErrorContext(ctx, "backend circuit opened", "breaker", c.breaker.Name(), "operation", op)
		}
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.metrics.SetBreakerOpen(c.breaker.Name(), false)
		c.logger.InfoContext(ctx, "backend circuit closed", "breaker", c.breaker.Name())
	}
}

func (c *Client) do(ctx context.Context, req Request, out any) (int, error) {
	op := req.Operation
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return 0, newError(ErrorInternal, op, 0, "build request", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, classifyTransport(ctx, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, newError(categoryForStatus(resp.StatusCode), op, resp.StatusCode, errorMessage(body), nil)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return resp.StatusCode, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, classifyTransport(ctx, op, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return resp.StatusCode, newError(ErrorBadData, op, resp.StatusCode, "empty response body", nil)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, newError(ErrorBadData, op, resp.StatusCode, "decode response", err)
	}
	return resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(payload)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.APIKey != "" {
		httpReq.Header.Set(APIKeyHeader, req.APIKey)
	}
	if id := requestcontext.RequestID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}
	return httpReq, nil
}

func classifyTransport(ctx context.Context, op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(ErrorTimeout, op, 0, "deadline exceeded", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(ErrorTimeout, op, 0, "network timeout", err)
	}
	if errors.Is(err, context.Canceled) {
		return newError(ErrorInternal, op, 0, "request cancelled", err)
	}
	return newError(ErrorOutage, op, 0, "transport failure", err)
}

// errorMessage extracts a human description from an error body. The backend
// uses message, error or error_description depending on the route.
func errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var fields struct {
		Message          string `json:"message"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(body, &fields) == nil {
		for _, s := range []string{fields.Message, fields.ErrorDescription, fields.Error} {
			if s != "" {
				return s
			}
		}
		return ""
	}
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
