package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// Memory provides thread-safe in-process storage for payment results.
type Memory struct {
	mu      sync.RWMutex
	results map[string]model.PaymentResult
}

// NewMemory creates a new empty store.
func NewMemory() *Memory {
	return &Memory{
		results: make(map[string]model.PaymentResult),
	}
}

// Save stores a payment result under its order id.
func (s *Memory) Save(_ context.Context, r model.PaymentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.results[r.OrderID]; ok && !replaces(prev, r) {
		return nil
	}
	s.results[r.OrderID] = r
	return nil
}

// Get retrieves the payment result of an order.
func (s *Memory) Get(_ context.Context, orderID string) (model.PaymentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[orderID]
	if !ok {
		return model.PaymentResult{}, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return r, nil
}
