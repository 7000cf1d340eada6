package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	domsvc "AgriCast/internal/domain/service"
	xhttp "AgriCast/pkg/http"

	"github.com/sony/gobreaker"
)

// HTTPServiceBase is the shared transport of every remote predictor: one
// JSON client and one circuit breaker per model endpoint.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
	breaker *gobreaker.CircuitBreaker
}

// BreakerSettings configures when a remote model endpoint is considered down.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
	OnChange    func(name string, from, to string)
}

// NewHTTPServiceBase builds a client for baseURL guarded by a named breaker.
func NewHTTPServiceBase(name, baseURL string, timeout time.Duration, bs BreakerSettings) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if bs.MaxFailures == 0 {
		bs.MaxFailures = 5
	}
	st := gobreaker.Settings{
		Name:    name,
		Timeout: bs.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= bs.MaxFailures
		},
		// a rejected payload says nothing about the health of the endpoint
		IsSuccessful: func(err error) bool {
			var se *xhttp.StatusError
			if errors.As(err, &se) {
				return !se.Temporary()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if bs.OnChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			bs.OnChange(name, from.String(), to.String())
		}
	}
	return &HTTPServiceBase{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithUserAgent("agricast-"+name)),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// PostJSON posts payload to path under baseURL and decodes the JSON reply into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("model http client not initialized")
	}
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.client.PostJSON(ctx, b.baseURL+path, payload, dest)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("post %s: %w: %w", path, domsvc.ErrModelUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// State reports the breaker state ("closed", "half-open", "open").
func (b *HTTPServiceBase) State() string {
	return b.breaker.State().String()
}
