package provider

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// OutcomeDistribution defines the probability of each response type.
type OutcomeDistribution struct {
	ApprovalRate float64
	ErrorRate    float64
	DeclineRate  float64
	FraudRate    float64
}

// MockConfig holds configuration for creating a simulated adapter.
type MockConfig struct {
	AdapterName     string
	DefaultOutcomes OutcomeDistribution
	// DeclineCode is reported for ordinary declines.
	DeclineCode model.FailureCode
	// CardOutcomes forces an outcome for specific card numbers.
	CardOutcomes map[string]model.FailureCode
	MinLatency   time.Duration
	MaxLatency   time.Duration
}

// MockAdapter simulates a payment provider with configurable behavior.
// Like a real gateway it honors idempotency keys: concurrent submissions with
// one key share a single charge, and a key that was already charged replays
// the original answer.
type MockAdapter struct {
	config   MockConfig
	rng      *rand.Rand
	mu       sync.Mutex
	degraded bool
	cancels  int
	charges  singleflight.Group
	charged  map[string]Response
}

// NewMockAdapter creates a simulated adapter from the given config.
func NewMockAdapter(cfg MockConfig) *MockAdapter {
	if cfg.DeclineCode == "" {
		cfg.DeclineCode = model.CodeDeclined
	}
	return &MockAdapter{
		config:  cfg,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		charged: make(map[string]Response),
	}
}

func (p *MockAdapter) Name() string {
	return p.config.AdapterName
}

// SetDegraded toggles degraded mode (80% provider errors) for simulation.
func (p *MockAdapter) SetDegraded(degraded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.degraded = degraded
}

// IsDegraded returns the current degraded state.
func (p *MockAdapter) IsDegraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded
}

// Cancellations returns how many cancel requests the adapter received.
func (p *MockAdapter) Cancellations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancels
}

func (p *MockAdapter) Submit(ctx context.Context, sub Submission) (Response, error) {
	key := sub.IdempotencyKey()

	p.mu.Lock()
	prev, ok := p.charged[key]
	p.mu.Unlock()
	if ok {
		slog.Info("provider_charge_replayed", "adapter", p.config.AdapterName, "idempotency_key", key)
		return prev, nil
	}

	v, err, _ := p.charges.Do(key, func() (interface{}, error) {
		return p.charge(ctx, sub)
	})
	if err != nil {
		return Response{}, err
	}
	return v.(Response), nil
}

func (p *MockAdapter) charge(ctx context.Context, sub Submission) (Response, error) {
	p.mu.Lock()
	degraded := p.degraded
	p.mu.Unlock()

	latency := p.simulateLatency()
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	code := p.determineOutcome(sub, degraded)
	if code == "" {
		resp := Response{Success: true, TransactionID: "txn_" + uuid.NewString()}
		p.mu.Lock()
		p.charged[sub.IdempotencyKey()] = resp
		p.mu.Unlock()
		return resp, nil
	}
	return Response{ErrorCode: code, ErrorMessage: responseMessage(code)}, nil
}

// Cancel records a best-effort cancellation. The simulated charge still completes.
func (p *MockAdapter) Cancel(_ context.Context, sub Submission) error {
	p.mu.Lock()
	p.cancels++
	p.mu.Unlock()
	slog.Info("provider_cancel_requested", "adapter", p.config.AdapterName, "order_id", sub.OrderID)
	return nil
}

func (p *MockAdapter) determineOutcome(sub Submission, degraded bool) model.FailureCode {
	if card, ok := sub.Instrument.(*model.CardInstrument); ok && p.config.CardOutcomes != nil {
		if code, forced := p.config.CardOutcomes[card.Digits()]; forced {
			return code
		}
	}

	p.mu.Lock()
	roll := p.rng.Float64()
	p.mu.Unlock()

	if degraded {
		if roll < 0.80 {
			return model.CodeProviderError
		}
		return ""
	}

	dist := p.config.DefaultOutcomes
	if roll < dist.ApprovalRate {
		return ""
	}
	roll -= dist.ApprovalRate
	if roll < dist.ErrorRate {
		return model.CodeProviderError
	}
	roll -= dist.ErrorRate
	if roll < dist.DeclineRate {
		return p.config.DeclineCode
	}
	roll -= dist.DeclineRate
	if roll < dist.FraudRate {
		return model.CodeFraudBlocked
	}
	return model.CodeProviderError
}

func (p *MockAdapter) simulateLatency() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	min := p.config.MinLatency
	max := p.config.MaxLatency
	if max <= min {
		return min
	}
	return min + time.Duration(p.rng.Int63n(int64(max-min)))
}

func responseMessage(code model.FailureCode) string {
	switch code {
	case model.CodeDeclined:
		return "payment declined"
	case model.CodeInvalidInstrument:
		return "payment details rejected by the provider"
	case model.CodeInsufficientFunds:
		return "insufficient funds"
	case model.CodeFraudBlocked:
		return "payment blocked by fraud screening"
	case model.CodeProviderError:
		return "provider internal error"
	case model.CodeProviderUnavailable:
		return "provider unavailable"
	case model.CodeTimeout:
		return "request timed out"
	case model.CodeRateLimited:
		return "rate limit exceeded"
	default:
		return "unknown response"
	}
}
