package checkout

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/catalog"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/health"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/provider"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/retry"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/store"
)

type failingCatalog struct{}

func (failingCatalog) Catalog(context.Context) (*catalog.Catalog, error) {
	return nil, errors.New("catalog service down")
}

func newTestService(a provider.Adapter) *Service {
	return NewService(Options{
		Catalog:  catalog.NewLoader(catalog.Defaults()),
		Registry: testRegistry(a),
		Monitor:  health.NewMonitorWithConfig(50, time.Minute),
		Policy:   retry.Policy{MaxAttempts: 3},
	})
}

func TestService_NewSession(t *testing.T) {
	svc := newTestService(approving())

	sess, err := svc.NewSession(context.Background(), testOrder())
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID())
	assert.Equal(t, StateIdle, sess.State())

	got, err := svc.Session(sess.ID())
	require.NoError(t, err)
	assert.Same(t, sess, got)

	other, err := svc.NewSession(context.Background(), testOrder())
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID(), other.ID(), "sessions for the same order are independent")
}

func TestService_NewSessionRejectsInvalidOrder(t *testing.T) {
	svc := newTestService(approving())

	order := testOrder()
	order.Subtotal = decimal.RequireFromString("99.00")
	_, err := svc.NewSession(context.Background(), order)
	assert.Error(t, err)
}

func TestService_NewSessionCatalogFailure(t *testing.T) {
	svc := NewService(Options{Catalog: failingCatalog{}, Registry: provider.NewRegistry()})

	_, err := svc.NewSession(context.Background(), testOrder())
	assert.ErrorContains(t, err, "catalog service down")
}

func TestService_SessionNotFound(t *testing.T) {
	svc := newTestService(approving())

	_, err := svc.Session("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.Discard("nope"), ErrSessionNotFound)
}

func TestService_SuccessIsStoredAndMonitored(t *testing.T) {
	svc := newTestService(approving())
	sess, err := svc.NewSession(context.Background(), testOrder())
	require.NoError(t, err)

	require.NoError(t, sess.SelectMethod(model.MethodPix))
	require.NoError(t, sess.SubmitIntent(Intent{}))
	out, err := sess.Confirm(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := svc.Result(context.Background(), "ord-1")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	stored, err := svc.Result(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, out.Result.TransactionID, stored.TransactionID)

	h := svc.Monitor().GetHealth("Fake")
	assert.Equal(t, 1, h.SuccessCount)
}

func TestService_RetryableFailureIsNotStored(t *testing.T) {
	svc := newTestService(failing(model.CodeTimeout))
	sess, err := svc.NewSession(context.Background(), testOrder())
	require.NoError(t, err)

	require.NoError(t, sess.SelectMethod(model.MethodPix))
	require.NoError(t, sess.SubmitIntent(Intent{}))
	_, err = sess.Confirm(context.Background())
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return svc.Monitor().GetHealth("Fake").FailureCount == 1
	}, time.Second, 5*time.Millisecond)

	_, err = svc.Result(context.Background(), "ord-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_RecordResult(t *testing.T) {
	tests := []struct {
		name   string
		result model.PaymentResult
		stored bool
	}{
		{"success", model.PaymentResult{OrderID: "o", Outcome: model.OutcomeSuccess, TransactionID: "t"}, true},
		{"terminal failure", model.PaymentResult{OrderID: "o", Outcome: model.OutcomeFailure, FailureCode: model.CodeDeclined}, true},
		{"retryable failure", model.PaymentResult{OrderID: "o", Outcome: model.OutcomeFailure, FailureCode: model.CodeTimeout, Retryable: true}, false},
		{"cancelled", model.PaymentResult{OrderID: "o", Outcome: model.OutcomeCancelled}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(approving())
			svc.RecordResult("Fake", tt.result)

			_, err := svc.Result(context.Background(), "o")
			if tt.stored {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, store.ErrNotFound)
			}
		})
	}
}

func TestService_CancelledResultIsNotMonitored(t *testing.T) {
	svc := newTestService(approving())
	svc.RecordResult("", model.PaymentResult{OrderID: "o", Outcome: model.OutcomeCancelled})
	assert.Empty(t, svc.Monitor().GetAllHealth())
}

func TestService_DiscardCancelsOpenSession(t *testing.T) {
	svc := newTestService(approving())
	sess, err := svc.NewSession(context.Background(), testOrder())
	require.NoError(t, err)
	require.NoError(t, sess.SelectMethod(model.MethodPix))

	require.NoError(t, svc.Discard(sess.ID()))
	assert.Equal(t, StateCancelled, sess.State())

	_, err = svc.Session(sess.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_Methods(t *testing.T) {
	svc := newTestService(approving())

	methods, err := svc.Methods(context.Background())
	require.NoError(t, err)
	require.Len(t, methods, 4)
	assert.Equal(t, model.MethodCreditCard, methods[0].ID)
	assert.Equal(t, model.MethodWallet, methods[3].ID)
}

func TestService_Quote(t *testing.T) {
	svc := newTestService(approving())
	amount := decimal.RequireFromString("100.00")

	tests := []struct {
		method       string
		installments int
		total        string
	}{
		{model.MethodPix, 1, "95.00"},
		{model.MethodBoleto, 1, "102.99"},
		{model.MethodCreditCard, 3, "100.00"},
		{model.MethodWallet, 1, "100.00"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			q, err := svc.Quote(context.Background(), tt.method, amount, tt.installments)
			require.NoError(t, err)
			assert.Equal(t, tt.total, q.Display().StringFixed(2))
		})
	}

	_, err := svc.Quote(context.Background(), "crypto", amount, 1)
	assert.ErrorIs(t, err, catalog.ErrUnknownMethod)

	_, err = svc.Quote(context.Background(), model.MethodCreditCard, amount, 24)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestService_DiscardSucceededSessionKeepsResult(t *testing.T) {
	svc := newTestService(approving())
	sess, err := svc.NewSession(context.Background(), testOrder())
	require.NoError(t, err)
	require.NoError(t, sess.SelectMethod(model.MethodPix))
	require.NoError(t, sess.SubmitIntent(Intent{}))
	_, err = sess.Confirm(context.Background())
	require.NoError(t, err)

	logs := captureLogs(t)
	require.NoError(t, svc.Discard(sess.ID()))

	assert.Equal(t, StateSucceeded, sess.State())
	assert.Contains(t, logs.String(), `"msg":"session_discard_kept_result"`)
	assert.Contains(t, logs.String(), `"state":"succeeded"`)
}

func TestService_DiscardCancelledSessionIsQuiet(t *testing.T) {
	svc := newTestService(approving())
	sess, err := svc.NewSession(context.Background(), testOrder())
	require.NoError(t, err)
	_, err = sess.Cancel()
	require.NoError(t, err)

	logs := captureLogs(t)
	require.NoError(t, svc.Discard(sess.ID()))
	assert.NotContains(t, logs.String(), "session_discard_kept_result")
}
