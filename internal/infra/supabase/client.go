// Package supabase is the PostgREST-backed store of record: one table per
// entity kind plus the stores and profiles directory.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/observability"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to the Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	bulkhead       *resilience.Bulkhead
	cfg            resilience.Config
	metrics        *observability.Metrics
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		bulkhead:       resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:            cfg,
		metrics:        metrics,
		logger:         logger,
	}
}

// StatusError is a non-2xx PostgREST response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// read runs an idempotent call behind the breaker, retrying per cfg.
func (c *Client) read(ctx context.Context, op string, fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.bulkhead.Do(ctx, func() error {
			return resilience.RetryWithBackoff(ctx, c.cfg, fn)
		})
	})
	return c.classify(op, err)
}

// write runs a mutating call behind the breaker. Writes are never retried.
func (c *Client) write(ctx context.Context, op string, fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.bulkhead.Do(ctx, fn)
	})
	return c.classify(op, err)
}

// classify passes domain answers through and wraps everything else.
func (c *Client) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	err = resilience.Cause(err)

	var (
		nf  *domain.ErrNotFound
		cf  *domain.ErrConflict
		dup *domain.ErrDuplicate
	)
	switch {
	case errors.As(err, &nf), errors.As(err, &cf), errors.As(err, &dup):
		return err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &domain.ErrCircuitOpen{Service: "supabase"}
	}

	if c.metrics != nil {
		c.metrics.IncrExternalError("supabase")
	}
	return &domain.ErrPersistence{Operation: op, Err: err}
}
