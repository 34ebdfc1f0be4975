package provider

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

func pixSubmission() Submission {
	return Submission{
		SessionID:    "sess-1",
		OrderID:      "ord-1",
		Method:       model.MethodPix,
		Amount:       decimal.RequireFromString("95.00"),
		Installments: 1,
		Intent:       1,
		Attempt:      1,
		Instrument:   model.PixInstrument{},
	}
}

func TestRegistry_For(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		method string
		name   string
	}{
		{model.MethodCreditCard, "CardMax"},
		{model.MethodPix, "PixPay"},
		{model.MethodBoleto, "BoletoNet"},
		{model.MethodWallet, "WalletPay"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			a, err := r.For(tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.name, a.Name())
		})
	}

	_, err := r.For("crypto")
	assert.ErrorIs(t, err, ErrNoAdapter)
}

func TestRegistry_LookupThroughBreaker(t *testing.T) {
	r := NewRegistry()
	inner := NewPixAdapter()
	r.Register(model.MethodPix, WithBreaker(inner, BreakerConfig{ConsecutiveFailures: 3, OpenTimeout: time.Second}))

	a, ok := r.Lookup("PixPay")
	require.True(t, ok)

	_, isWrapper := a.(Unwrapper)
	assert.True(t, isWrapper, "first match is the decorator")

	_, ok = r.Lookup("Nope")
	assert.False(t, ok)
}

func TestSubmission_IdempotencyKey(t *testing.T) {
	sub := pixSubmission()
	sub.Attempt = 2
	assert.Equal(t, "sess-1:1", sub.IdempotencyKey(), "retries of one intent share the key")

	sub.Intent = 2
	assert.Equal(t, "sess-1:2", sub.IdempotencyKey())
}

func TestMockAdapter_SubmitReturnsTransactionID(t *testing.T) {
	p := NewMockAdapter(MockConfig{
		AdapterName:     "Always",
		DefaultOutcomes: OutcomeDistribution{ApprovalRate: 1.0},
		MinLatency:      time.Millisecond,
		MaxLatency:      2 * time.Millisecond,
	})

	resp, err := p.Submit(context.Background(), pixSubmission())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.TransactionID, "txn_"))
	assert.Empty(t, resp.ErrorCode)
}

func TestMockAdapter_OutcomeDistribution(t *testing.T) {
	p := NewMockAdapter(MockConfig{
		AdapterName:     "Dist",
		DefaultOutcomes: OutcomeDistribution{ApprovalRate: 0.70, ErrorRate: 0.20, DeclineRate: 0.10},
	})

	counts := map[model.FailureCode]int{}
	total := 1000
	for i := 0; i < total; i++ {
		sub := pixSubmission()
		sub.Intent = i + 1
		resp, err := p.Submit(context.Background(), sub)
		require.NoError(t, err)
		counts[resp.ErrorCode]++
	}

	approvalRate := float64(counts[""]) / float64(total)
	assert.InDelta(t, 0.70, approvalRate, 0.10,
		"approval rate should be ~70%%, got %.2f%%", approvalRate*100)

	errorRate := float64(counts[model.CodeProviderError]) / float64(total)
	assert.InDelta(t, 0.20, errorRate, 0.10,
		"error rate should be ~20%%, got %.2f%%", errorRate*100)
}

func TestMockAdapter_ForcedCardOutcomes(t *testing.T) {
	p := NewCardAdapter()
	p.config.MinLatency, p.config.MaxLatency = 0, 0

	tests := []struct {
		number string
		code   model.FailureCode
	}{
		{TestCardDeclined, model.CodeDeclined},
		{TestCardInsufficientFunds, model.CodeInsufficientFunds},
		{TestCardFraud, model.CodeFraudBlocked},
		{TestCardInvalid, model.CodeInvalidInstrument},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			sub := pixSubmission()
			sub.Method = model.MethodCreditCard
			sub.Instrument = &model.CardInstrument{Number: tt.number}
			resp, err := p.Submit(context.Background(), sub)
			require.NoError(t, err)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.ErrorCode)
			assert.NotEmpty(t, resp.ErrorMessage)
		})
	}
}

func TestMockAdapter_DegradedMode(t *testing.T) {
	p := NewMockAdapter(MockConfig{
		AdapterName:     "Deg",
		DefaultOutcomes: OutcomeDistribution{ApprovalRate: 1.0},
	})

	p.SetDegraded(true)
	assert.True(t, p.IsDegraded())

	errorCount := 0
	total := 200
	for i := 0; i < total; i++ {
		sub := pixSubmission()
		sub.Intent = i + 1
		resp, err := p.Submit(context.Background(), sub)
		require.NoError(t, err)
		if resp.ErrorCode == model.CodeProviderError {
			errorCount++
		}
	}

	errorRate := float64(errorCount) / float64(total)
	assert.InDelta(t, 0.80, errorRate, 0.10,
		"degraded mode should produce ~80%% errors, got %.2f%%", errorRate*100)

	p.SetDegraded(false)
	assert.False(t, p.IsDegraded())
}

func TestMockAdapter_ContextCancellation(t *testing.T) {
	p := NewMockAdapter(MockConfig{
		AdapterName:     "Slow",
		DefaultOutcomes: OutcomeDistribution{ApprovalRate: 1.0},
		MinLatency:      5 * time.Second,
		MaxLatency:      5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Submit(ctx, pixSubmission())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMockAdapter_Cancel(t *testing.T) {
	p := NewPixAdapter()
	require.NoError(t, p.Cancel(context.Background(), pixSubmission()))
	assert.Equal(t, 1, p.Cancellations())
}

func TestMockAdapter_ConcurrentAccess(t *testing.T) {
	p := NewMockAdapter(MockConfig{AdapterName: "Conc", DefaultOutcomes: OutcomeDistribution{ApprovalRate: 0.5, ErrorRate: 0.5}})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(intent int) {
			defer wg.Done()
			sub := pixSubmission()
			sub.Intent = intent
			_, err := p.Submit(context.Background(), sub)
			assert.NoError(t, err)
		}(i + 1)
	}
	wg.Wait()
}

func TestMockAdapter_SameKeyChargesOnce(t *testing.T) {
	p := NewMockAdapter(MockConfig{
		AdapterName:     "Idem",
		DefaultOutcomes: OutcomeDistribution{ApprovalRate: 1.0},
		MinLatency:      30 * time.Millisecond,
		MaxLatency:      30 * time.Millisecond,
	})

	var wg sync.WaitGroup
	txns := make(chan string, 2)
	for attempt := 1; attempt <= 2; attempt++ {
		wg.Add(1)
		go func(attempt int) {
			defer wg.Done()
			sub := pixSubmission()
			sub.Attempt = attempt
			resp, err := p.Submit(context.Background(), sub)
			if assert.NoError(t, err) {
				txns <- resp.TransactionID
			}
		}(attempt)
	}
	wg.Wait()
	close(txns)

	first := <-txns
	assert.NotEmpty(t, first)
	assert.Equal(t, first, <-txns, "concurrent attempts of one intent share a charge")

	replay, err := p.Submit(context.Background(), pixSubmission())
	require.NoError(t, err)
	assert.Equal(t, first, replay.TransactionID, "a charged key replays its answer")

	other := pixSubmission()
	other.Intent = 2
	fresh, err := p.Submit(context.Background(), other)
	require.NoError(t, err)
	assert.NotEqual(t, first, fresh.TransactionID)
}

func TestMockAdapter_FailuresAreNotReplayed(t *testing.T) {
	p := NewMockAdapter(MockConfig{AdapterName: "Flaky", DefaultOutcomes: OutcomeDistribution{ErrorRate: 1.0}})

	resp, err := p.Submit(context.Background(), pixSubmission())
	require.NoError(t, err)
	assert.Equal(t, model.CodeProviderError, resp.ErrorCode)

	p.config.DefaultOutcomes = OutcomeDistribution{ApprovalRate: 1.0}
	resp, err = p.Submit(context.Background(), pixSubmission())
	require.NoError(t, err)
	assert.True(t, resp.Success, "a retry under the same key can still succeed")
}

func TestResponseMessage(t *testing.T) {
	tests := []struct {
		code    model.FailureCode
		message string
	}{
		{model.CodeDeclined, "payment declined"},
		{model.CodeInsufficientFunds, "insufficient funds"},
		{model.CodeFraudBlocked, "payment blocked by fraud screening"},
		{model.CodeProviderError, "provider internal error"},
		{model.CodeTimeout, "request timed out"},
		{model.FailureCode("unknown"), "unknown response"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.message, responseMessage(tt.code))
		})
	}
}

// scriptedAdapter returns queued results in order.
type scriptedAdapter struct {
	mu      sync.Mutex
	calls   int
	results []scripted
}

type scripted struct {
	resp Response
	err  error
}

func (s *scriptedAdapter) Name() string { return "Scripted" }

func (s *scriptedAdapter) Submit(context.Context, Submission) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.results[s.calls%len(s.results)]
	s.calls++
	return r.resp, r.err
}

func (s *scriptedAdapter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &scriptedAdapter{results: []scripted{{err: errors.New("connection reset")}}}
	a := WithBreaker(inner, BreakerConfig{ConsecutiveFailures: 3, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := a.Submit(context.Background(), pixSubmission())
		assert.Error(t, err)
	}

	resp, err := a.Submit(context.Background(), pixSubmission())
	require.NoError(t, err)
	assert.Equal(t, model.CodeProviderUnavailable, resp.ErrorCode)
	assert.Equal(t, 3, inner.Calls(), "open circuit must not reach the provider")
	assert.Equal(t, "open", a.(*breakerAdapter).State())
}

func TestBreaker_TransientResponsesCountAsFailures(t *testing.T) {
	inner := &scriptedAdapter{results: []scripted{{resp: Response{ErrorCode: model.CodeProviderError, ErrorMessage: "boom"}}}}
	a := WithBreaker(inner, BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute})

	resp, err := a.Submit(context.Background(), pixSubmission())
	require.NoError(t, err)
	assert.Equal(t, model.CodeProviderError, resp.ErrorCode, "provider response passes through")

	_, _ = a.Submit(context.Background(), pixSubmission())
	resp, _ = a.Submit(context.Background(), pixSubmission())
	assert.Equal(t, model.CodeProviderUnavailable, resp.ErrorCode)
}

func TestBreaker_DeclinesDoNotTrip(t *testing.T) {
	inner := &scriptedAdapter{results: []scripted{{resp: Response{ErrorCode: model.CodeInsufficientFunds}}}}
	a := WithBreaker(inner, BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 5; i++ {
		resp, err := a.Submit(context.Background(), pixSubmission())
		require.NoError(t, err)
		assert.Equal(t, model.CodeInsufficientFunds, resp.ErrorCode)
	}
	assert.Equal(t, 5, inner.Calls())
}

func TestBreaker_ForwardsCancel(t *testing.T) {
	inner := NewPixAdapter()
	a := WithBreaker(inner, BreakerConfig{})

	c, ok := a.(Canceler)
	require.True(t, ok)
	require.NoError(t, c.Cancel(context.Background(), pixSubmission()))
	assert.Equal(t, 1, inner.Cancellations())
}
