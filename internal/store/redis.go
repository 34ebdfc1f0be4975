package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

const maxWatchRetries = 3

var errKeepExisting = errors.New("existing result kept")

// Redis stores payment results as JSON documents with an optional TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed store. A zero ttl keeps results forever.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Save stores a payment result under its order id. The read-compare-write is
// done under WATCH so concurrent sessions for the same order cannot replace a success.
func (r *Redis) Save(ctx context.Context, res model.PaymentResult) error {
	key := resultKey(res.OrderID)
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result failed: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis get failed: %w", err)
		}
		if err == nil {
			var prev model.PaymentResult
			if jsonErr := json.Unmarshal(cur, &prev); jsonErr == nil && !replaces(prev, res) {
				return errKeepExisting
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err = r.client.Watch(ctx, txf, key)
		switch {
		case err == nil, errors.Is(err, errKeepExisting):
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return fmt.Errorf("redis set failed: %w", err)
		}
	}
	return fmt.Errorf("redis set failed after %d attempts: %w", maxWatchRetries, err)
}

// Get retrieves the payment result of an order.
func (r *Redis) Get(ctx context.Context, orderID string) (model.PaymentResult, error) {
	data, err := r.client.Get(ctx, resultKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.PaymentResult{}, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if err != nil {
		return model.PaymentResult{}, fmt.Errorf("redis get failed: %w", err)
	}

	var res model.PaymentResult
	if err := json.Unmarshal(data, &res); err != nil {
		return model.PaymentResult{}, fmt.Errorf("unmarshal result failed: %w", err)
	}
	return res, nil
}

func resultKey(orderID string) string {
	return fmt.Sprintf("payment:%s", orderID)
}
