package verification

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"deeptrack/internal/backend"
	dErrors "deeptrack/pkg/domain-errors"
)

// DefaultTimeout bounds a single verification call.
const DefaultTimeout = 10 * time.Second

type Backend interface {
	Do(ctx context.Context, req backend.Request, out any) error
}

// Client sends exactly one request per Verify call and never retries.
type Client struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(b Backend, opts ...Option) *Client {
	c := &Client{backend: b, timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify submits the images with the organization credential.
//
// Errors carry one of: timeout (deadline hit), verification_rejected (the
// service answered with a non-success status), unavailable (no answer).
func (c *Client) Verify(ctx context.Context, apiKey string, images Images) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result Result
	err := c.backend.Do(ctx, backend.Request{
		Operation: "kyc.verify",
		Method:    http.MethodPost,
		Path:      "/v1/kyc/deeptrackai-id",
		Body:      images,
		APIKey:    apiKey,
	}, &result)
	if err == nil {
		return &result, nil
	}

	if errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, err
	}
	switch backend.GetCategory(err) {
	case backend.ErrorTimeout:
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "Verification timed out. Please try again.")
	case backend.ErrorOutage:
		if backend.StatusOf(err) != 0 {
			return nil, dErrors.Wrap(err, dErrors.CodeRejected, rejectedMessage(err))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "Verification service is unavailable. Please try again.")
	case backend.ErrorInternal:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "verification request failed")
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeRejected, rejectedMessage(err))
	}
}

func rejectedMessage(err error) string {
	var be *backend.Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return "Verification failed"
}
