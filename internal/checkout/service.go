package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/catalog"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/health"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/pricing"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/provider"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/retry"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/store"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/validation"
)

const storeTimeout = 2 * time.Second

// CatalogSource returns the current method catalog.
type CatalogSource interface {
	Catalog(ctx context.Context) (*catalog.Catalog, error)
}

// ResultStore persists settled payment results by order id.
type ResultStore interface {
	Save(ctx context.Context, r model.PaymentResult) error
	Get(ctx context.Context, orderID string) (model.PaymentResult, error)
}

// Options configures a Service. Catalog and Registry are required.
type Options struct {
	Catalog       CatalogSource
	Registry      *provider.Registry
	Monitor       *health.Monitor
	Store         ResultStore
	Validator     *validation.Validator
	Policy        retry.Policy
	SubmitTimeout time.Duration
	Observer      Observer
}

// Service owns the checkout sessions of a process and the collaborators they share.
type Service struct {
	catalog   CatalogSource
	registry  *provider.Registry
	monitor   *health.Monitor
	store     ResultStore
	validator *validation.Validator
	policy    retry.Policy
	timeout   time.Duration
	observer  Observer

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a Service. Monitor, Store and Validator default when nil.
func NewService(opts Options) *Service {
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.Monitor == nil {
		opts.Monitor = health.NewMonitor()
	}
	if opts.Validator == nil {
		opts.Validator = validation.New()
	}
	return &Service{
		catalog:   opts.Catalog,
		registry:  opts.Registry,
		monitor:   opts.Monitor,
		store:     opts.Store,
		validator: opts.Validator,
		policy:    opts.Policy,
		timeout:   opts.SubmitTimeout,
		observer:  opts.Observer,
		sessions:  make(map[string]*Session),
	}
}

// NewSession starts a checkout for the order. The catalog is resolved once
// here and stays fixed for the life of the session.
func (s *Service) NewSession(ctx context.Context, order model.Order) (*Session, error) {
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}
	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	sess := NewSession(uuid.NewString(), order, SessionConfig{
		Catalog:       cat,
		Adapters:      s.registry,
		Validator:     s.validator,
		Policy:        s.policy,
		SubmitTimeout: s.timeout,
		Observer:      s.observer,
		Recorder:      s,
	})

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	slog.Info("session_created",
		"session_id", sess.ID(),
		"order_id", order.ID,
		"amount", order.Amount().String(),
	)
	return sess, nil
}

// Session returns the session with the given id.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Discard forgets a session, cancelling it first. A late provider answer is
// still recorded. A session that already succeeded cannot be cancelled; it
// keeps its result and the refused cancel is logged.
func (s *Service) Discard(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if out, err := sess.Cancel(); err != nil {
		slog.Info("session_discard_kept_result",
			"session_id", id,
			"state", out.State,
			"error", err,
		)
	}
	slog.Info("session_discarded", "session_id", id)
	return nil
}

// Methods lists the catalog in display order.
func (s *Service) Methods(ctx context.Context) ([]model.PaymentMethod, error) {
	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return cat.List(), nil
}

// Quote prices an amount for a method without starting a session.
func (s *Service) Quote(ctx context.Context, methodID string, amount decimal.Decimal, installments int) (pricing.Total, error) {
	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return pricing.Total{}, err
	}
	m, err := cat.Get(methodID)
	if err != nil {
		return pricing.Total{}, err
	}
	if r := validation.ValidateInstallments(m, installments); !r.Valid() {
		return pricing.Total{}, &ValidationError{Errors: r.Errors}
	}
	return pricing.Compute(amount, m, installments)
}

// Result returns the last settled result stored for an order.
func (s *Service) Result(ctx context.Context, orderID string) (model.PaymentResult, error) {
	return s.store.Get(ctx, orderID)
}

// Monitor returns the provider health monitor.
func (s *Service) Monitor() *health.Monitor {
	return s.monitor
}

// Registry returns the provider registry.
func (s *Service) Registry() *provider.Registry {
	return s.registry
}

// RecordResult feeds provider answers to the health monitor and persists
// every result that ends a payment. Retryable failures are not stored.
func (s *Service) RecordResult(adapter string, r model.PaymentResult) {
	if adapter != "" {
		if r.Outcome == model.OutcomeSuccess {
			s.monitor.RecordSuccess(adapter)
		} else if r.Outcome == model.OutcomeFailure {
			s.monitor.RecordFailure(adapter, r.FailureCode)
		}
	}

	if r.Outcome == model.OutcomeFailure && r.Retryable {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.Save(ctx, r); err != nil {
		slog.Error("result_store_failed",
			"session_id", r.SessionID,
			"order_id", r.OrderID,
			"outcome", r.Outcome,
			"error", err,
		)
	}
}
