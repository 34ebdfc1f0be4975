package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// errUpstreamFailure makes the breaker count provider-side error responses as failures.
var errUpstreamFailure = errors.New("upstream failure response")

// BreakerConfig configures WithBreaker.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

type breakerAdapter struct {
	inner Adapter
	cb    *gobreaker.CircuitBreaker[Response]
}

// WithBreaker wraps an adapter with a circuit breaker. Transport errors and
// transient error responses count as failures; declines do not. While the
// circuit is open Submit answers provider_unavailable without calling the provider.
func WithBreaker(a Adapter, cfg BreakerConfig) Adapter {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	st := gobreaker.Settings{
		Name:        a.Name(),
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("provider_breaker_state_changed",
				"adapter", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &breakerAdapter{inner: a, cb: gobreaker.NewCircuitBreaker[Response](st)}
}

func (b *breakerAdapter) Name() string { return b.inner.Name() }

func (b *breakerAdapter) Unwrap() Adapter { return b.inner }

func (b *breakerAdapter) Submit(ctx context.Context, sub Submission) (Response, error) {
	resp, err := b.cb.Execute(func() (Response, error) {
		r, err := b.inner.Submit(ctx, sub)
		if err != nil {
			return r, err
		}
		if !r.Success && r.ErrorCode.IsTransient() {
			return r, errUpstreamFailure
		}
		return r, nil
	})
	switch {
	case errors.Is(err, errUpstreamFailure):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return Response{
			ErrorCode:    model.CodeProviderUnavailable,
			ErrorMessage: "payment provider temporarily unavailable",
		}, nil
	}
	return resp, err
}

// State reports the breaker state name.
func (b *breakerAdapter) State() string {
	return b.cb.State().String()
}

func (b *breakerAdapter) Cancel(ctx context.Context, sub Submission) error {
	if c, ok := b.inner.(Canceler); ok {
		return c.Cancel(ctx, sub)
	}
	return nil
}
