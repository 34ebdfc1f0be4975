package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// ErrNoAdapter is returned when no adapter is registered for a method.
var ErrNoAdapter = errors.New("no provider adapter for method")

// Submission is a single charge request handed to an adapter. Intent numbers
// the validated intent within the session and stays the same across retries;
// Attempt counts every submission.
type Submission struct {
	SessionID    string
	OrderID      string
	Method       string
	Amount       decimal.Decimal
	Installments int
	Intent       int
	Attempt      int
	Instrument   model.Instrument
}

// IdempotencyKey identifies the charge to providers that deduplicate requests.
// Every attempt for one intent shares the key, so a retry after a timeout
// cannot become a second charge at a provider that honors it.
func (s Submission) IdempotencyKey() string {
	return fmt.Sprintf("%s:%d", s.SessionID, s.Intent)
}

// Response is the provider's answer. A transport failure is reported as an
// error from Submit instead.
type Response struct {
	Success       bool              `json:"success"`
	TransactionID string            `json:"transaction_id,omitempty"`
	ErrorCode     model.FailureCode `json:"error_code,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
}

// Adapter defines the interface for payment providers.
type Adapter interface {
	// Name returns the adapter's unique identifier.
	Name() string
	// Submit attempts to charge the submission.
	Submit(ctx context.Context, sub Submission) (Response, error)
}

// Canceler is implemented by adapters that accept best-effort cancellation of
// an in-flight submission.
type Canceler interface {
	Cancel(ctx context.Context, sub Submission) error
}

// Unwrapper is implemented by adapters that decorate another adapter.
type Unwrapper interface {
	Unwrap() Adapter
}

// Registry maps catalog method ids to adapters.
type Registry struct {
	mu       sync.RWMutex
	byMethod map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMethod: make(map[string]Adapter)}
}

// Register binds an adapter to a method id, replacing any previous binding.
func (r *Registry) Register(methodID string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMethod[methodID] = a
}

// For returns the adapter for the method.
func (r *Registry) For(methodID string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byMethod[methodID]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoAdapter, methodID)
	}
	return a, nil
}

// Binding pairs a method id with its adapter.
type Binding struct {
	Method  string
	Adapter Adapter
}

// Bindings returns the registered bindings ordered by method id.
func (r *Registry) Bindings() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Binding, 0, len(r.byMethod))
	for m, a := range r.byMethod {
		out = append(out, Binding{Method: m, Adapter: a})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}

// Adapters returns the registered adapters ordered by method id.
func (r *Registry) Adapters() []Adapter {
	bindings := r.Bindings()
	out := make([]Adapter, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, b.Adapter)
	}
	return out
}

// Lookup finds an adapter by name, looking through decorators.
func (r *Registry) Lookup(name string) (Adapter, bool) {
	for _, a := range r.Adapters() {
		for cur := a; cur != nil; {
			if cur.Name() == name {
				return cur, true
			}
			u, ok := cur.(Unwrapper)
			if !ok {
				break
			}
			cur = u.Unwrap()
		}
	}
	return nil, false
}
