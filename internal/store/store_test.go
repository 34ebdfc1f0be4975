package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

type resultStore interface {
	Save(ctx context.Context, r model.PaymentResult) error
	Get(ctx context.Context, orderID string) (model.PaymentResult, error)
}

func setupTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, ttl), mr
}

func backends(t *testing.T) map[string]resultStore {
	rs, _ := setupTestRedis(t, 0)
	return map[string]resultStore{
		"memory": NewMemory(),
		"redis":  rs,
	}
}

func result(orderID string, outcome model.Outcome, txn string) model.PaymentResult {
	return model.PaymentResult{
		SessionID:     "sess-" + orderID,
		OrderID:       orderID,
		Method:        model.MethodPix,
		Outcome:       outcome,
		Amount:        decimal.RequireFromString("95.00"),
		Installments:  1,
		TransactionID: txn,
		Attempt:       1,
		CompletedAt:   time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, result("ord-1", model.OutcomeSuccess, "txn_1")))

			got, err := s.Get(ctx, "ord-1")
			require.NoError(t, err)
			assert.Equal(t, model.OutcomeSuccess, got.Outcome)
			assert.Equal(t, "txn_1", got.TransactionID)
			assert.True(t, got.Amount.Equal(decimal.RequireFromString("95.00")))
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_SuccessIsNeverReplaced(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, result("ord-1", model.OutcomeSuccess, "txn_first")))
			require.NoError(t, s.Save(ctx, result("ord-1", model.OutcomeCancelled, "")))
			require.NoError(t, s.Save(ctx, result("ord-1", model.OutcomeSuccess, "txn_second")))

			got, err := s.Get(ctx, "ord-1")
			require.NoError(t, err)
			assert.Equal(t, "txn_first", got.TransactionID)
		})
	}
}

func TestStore_FailureReplacedBySuccess(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			failed := result("ord-1", model.OutcomeFailure, "")
			failed.FailureCode = model.CodeInsufficientFunds
			require.NoError(t, s.Save(ctx, failed))
			require.NoError(t, s.Save(ctx, result("ord-1", model.OutcomeSuccess, "txn_1")))

			got, err := s.Get(ctx, "ord-1")
			require.NoError(t, err)
			assert.Equal(t, model.OutcomeSuccess, got.Outcome)
		})
	}
}

func TestRedis_TTL(t *testing.T) {
	s, mr := setupTestRedis(t, time.Minute)
	require.NoError(t, s.Save(context.Background(), result("ord-1", model.OutcomeSuccess, "txn_1")))

	assert.Equal(t, time.Minute, mr.TTL(resultKey("ord-1")))

	mr.FastForward(2 * time.Minute)
	_, err := s.Get(context.Background(), "ord-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_StoresJSON(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	require.NoError(t, s.Save(context.Background(), result("ord-1", model.OutcomeSuccess, "txn_1")))

	raw, err := mr.Get(resultKey("ord-1"))
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "success", doc["outcome"])
	assert.Equal(t, "txn_1", doc["transaction_id"])
}

func TestRedis_InvalidJSON(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	require.NoError(t, mr.Set(resultKey("ord-1"), "{not json"))

	_, err := s.Get(context.Background(), "ord-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRedis_ConnectionError(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	mr.Close()

	err := s.Save(context.Background(), result("ord-1", model.OutcomeSuccess, "txn_1"))
	assert.Error(t, err)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	s := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Save(context.Background(), result("ord-1", model.OutcomeCancelled, ""))
			_, _ = s.Get(context.Background(), "ord-1")
		}()
	}
	wg.Wait()

	got, err := s.Get(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCancelled, got.Outcome)
}
