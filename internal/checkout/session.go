package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/pricing"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/provider"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/retry"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/validation"
)

const cancelTimeout = 5 * time.Second

var errSubmitTimeout = fmt.Errorf("provider did not answer in time: %w", context.DeadlineExceeded)

// MethodCatalog resolves payment methods by id.
type MethodCatalog interface {
	Get(id string) (model.PaymentMethod, error)
}

// AdapterResolver returns the provider adapter backing a method.
type AdapterResolver interface {
	For(methodID string) (provider.Adapter, error)
}

// Recorder receives every result a session settles, including late ones.
// adapter is empty for results no provider produced.
type Recorder interface {
	RecordResult(adapter string, result model.PaymentResult)
}

// SessionConfig holds the collaborators of a Session.
type SessionConfig struct {
	Catalog   MethodCatalog
	Adapters  AdapterResolver
	Validator *validation.Validator
	Policy    retry.Policy
	// SubmitTimeout turns a silent provider into a retryable timeout failure.
	// Zero waits for the provider indefinitely.
	SubmitTimeout time.Duration
	Observer      Observer
	Recorder      Recorder
}

// Intent is the instrument data submitted for the selected method.
type Intent struct {
	Instrument   model.Instrument
	Billing      *model.BillingAddress
	Installments int
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID                string               `json:"id"`
	OrderID           string               `json:"order_id"`
	State             State                `json:"state"`
	Terminal          bool                 `json:"terminal"`
	Method            *model.PaymentMethod `json:"method,omitempty"`
	Quote             *pricing.Total       `json:"quote,omitempty"`
	Total             *decimal.Decimal     `json:"total,omitempty"`
	InstallmentValues []decimal.Decimal    `json:"installment_values,omitempty"`
	Attempts          int                  `json:"attempts"`
	Result            *model.PaymentResult `json:"result,omitempty"`
}

type attempt struct {
	seq     int
	tries   int
	intent  int
	adapter provider.Adapter
	sub     provider.Submission
	timer   *time.Timer

	settled bool
	done    chan struct{}
	outcome Outcome
	err     error
}

// Session drives one checkout attempt through its states. At most one
// provider submission is in flight at any time. Every accepted intent gets a
// new number, and all attempts for it reach the provider under one
// idempotency key.
type Session struct {
	id    string
	order model.Order
	cfg   SessionConfig

	mu         sync.Mutex
	state      State
	method     *model.PaymentMethod
	instrument model.Instrument
	billing    *model.BillingAddress
	total      *pricing.Total
	result     *model.PaymentResult
	tries      int
	seq        int
	intent     int
	inflight   *attempt
}

// NewSession creates an idle session for the order.
func NewSession(id string, order model.Order, cfg SessionConfig) *Session {
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}
	return &Session{id: id, order: order, cfg: cfg, state: StateIdle}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the session's observable data.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:       s.id,
		OrderID:  s.order.ID,
		State:    s.state,
		Terminal: s.state.Terminal(),
		Attempts: s.tries,
		Result:   copyResult(s.result),
	}
	if s.method != nil {
		m := *s.method
		snap.Method = &m
	}
	if s.total != nil {
		t := *s.total
		display := t.Display()
		snap.Quote = &t
		snap.Total = &display
		snap.InstallmentValues = t.InstallmentValues()
	}
	return snap
}

// SelectMethod picks the payment method. Any instrument collected for a
// previous method is discarded.
func (s *Session) SelectMethod(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle, StateMethodSelected, StateValidated:
	default:
		return invalidTransition("select method", s.state)
	}

	m, err := s.cfg.Catalog.Get(id)
	if err != nil {
		return err
	}
	s.clearIntent()
	s.method = &m
	s.transition(StateMethodSelected, nil)
	return nil
}

// SubmitIntent validates the instrument for the selected method and prices the
// order. On success the session is Validated; otherwise it is MethodSelected
// and the returned *ValidationError lists the offending fields.
func (s *Session) SubmitIntent(in Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateMethodSelected && s.state != StateValidated {
		return invalidTransition("submit intent", s.state)
	}
	method := *s.method

	instrument := in.Instrument
	if instrument == nil {
		instrument = model.PlaceholderFor(method.ID)
	}
	installments := in.Installments
	if !method.SupportsInstallments || installments == 0 {
		installments = 1
	}

	res := s.cfg.Validator.Validate(method, instrument, in.Billing)
	res.Errors = append(res.Errors, validation.ValidateInstallments(method, installments).Errors...)
	if !res.Valid() {
		s.clearIntent()
		if s.state != StateMethodSelected {
			s.transition(StateMethodSelected, nil)
		}
		slog.Info("intent_rejected",
			"session_id", s.id,
			"method", method.ID,
			"field_errors", len(res.Errors),
		)
		return &ValidationError{Errors: res.Errors}
	}

	total, err := pricing.Compute(s.order.Amount(), method, installments)
	if err != nil {
		return err
	}

	if s.sameIntent(instrument, in.Billing, installments) {
		s.dropInstrument()
	} else {
		s.clearIntent()
		s.intent++
	}
	s.instrument = cloneInstrument(instrument)
	if in.Billing != nil {
		b := *in.Billing
		s.billing = &b
	}
	s.total = &total
	s.transition(StateValidated, nil)
	return nil
}

// Confirm submits the validated intent to the method's provider and waits for
// the result or for ctx to end. Calls made while a submission is in flight
// join it instead of submitting again, and calls after success replay the
// stored result; both are flagged Duplicate. A failed submission returns a
// *ProviderError alongside the outcome.
//
// The submission itself is not bound to ctx: a caller that stops waiting
// does not abort it, and its result is still applied to the session.
func (s *Session) Confirm(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	switch s.state {
	case StateSubmitting:
		a := s.inflight
		s.mu.Unlock()
		slog.Info("duplicate_confirm_joined", "session_id", s.id, "attempt", a.seq)
		return s.await(ctx, a, true)
	case StateSucceeded:
		out := Outcome{State: StateSucceeded, Result: copyResult(s.result), Duplicate: true}
		s.mu.Unlock()
		return out, nil
	case StateValidated:
	default:
		st := s.state
		s.mu.Unlock()
		return Outcome{State: st}, invalidTransition("confirm", st)
	}

	adapter, err := s.cfg.Adapters.For(s.method.ID)
	if err != nil {
		s.mu.Unlock()
		return Outcome{State: StateValidated}, err
	}
	a := s.begin(adapter)
	s.mu.Unlock()

	go s.run(a)
	return s.await(ctx, a, false)
}

// Cancel moves the session to Cancelled from any state but Succeeded. An
// in-flight submission gets a best-effort provider cancellation; if the
// provider charges anyway the late success still wins.
func (s *Session) Cancel() (Outcome, error) {
	s.mu.Lock()
	switch s.state {
	case StateSucceeded:
		out := Outcome{State: StateSucceeded, Result: copyResult(s.result)}
		s.mu.Unlock()
		return out, invalidTransition("cancel", StateSucceeded)
	case StateCancelled:
		out := Outcome{State: StateCancelled, Result: copyResult(s.result), Duplicate: true}
		s.mu.Unlock()
		return out, nil
	}

	a := s.inflight
	s.inflight = nil

	r := model.PaymentResult{
		SessionID:   s.id,
		OrderID:     s.order.ID,
		Outcome:     model.OutcomeCancelled,
		CompletedAt: time.Now(),
	}
	if s.method != nil {
		r.Method = s.method.ID
	}
	if s.total != nil {
		r.Amount = s.total.Display()
		r.Installments = s.total.Installments
	}
	if a != nil {
		r.Attempt = a.seq
	}

	s.result = &r
	s.dropInstrument()
	s.transition(StateCancelled, &r)
	out := Outcome{State: StateCancelled, Result: copyResult(&r)}

	var sub provider.Submission
	if a != nil {
		settleAttempt(a, out, nil)
		sub = a.sub
		sub.Instrument = nil
	}
	s.mu.Unlock()

	slog.Info("session_cancelled", "session_id", s.id, "order_id", s.order.ID, "in_flight", a != nil)

	if a != nil {
		if c, ok := a.adapter.(provider.Canceler); ok {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
				defer cancel()
				if err := c.Cancel(ctx, sub); err != nil {
					slog.Warn("provider_cancel_failed",
						"session_id", s.id,
						"adapter", a.adapter.Name(),
						"error", err,
					)
				}
			}()
		}
	}
	s.record("", r)
	return out, nil
}

// begin starts a new attempt. Caller holds s.mu and the session is Validated.
func (s *Session) begin(adapter provider.Adapter) *attempt {
	s.seq++
	s.tries++
	a := &attempt{
		seq:     s.seq,
		tries:   s.tries,
		intent:  s.intent,
		adapter: adapter,
		done:    make(chan struct{}),
		sub: provider.Submission{
			SessionID:    s.id,
			OrderID:      s.order.ID,
			Method:       s.method.ID,
			Amount:       s.total.Display(),
			Installments: s.total.Installments,
			Intent:       s.intent,
			Attempt:      s.seq,
			Instrument:   cloneInstrument(s.instrument),
		},
	}
	s.inflight = a
	if s.cfg.SubmitTimeout > 0 {
		a.timer = time.AfterFunc(s.cfg.SubmitTimeout, func() { s.expire(a) })
	}
	s.transition(StateSubmitting, nil)

	slog.Info("payment_submitted",
		"session_id", s.id,
		"order_id", s.order.ID,
		"adapter", adapter.Name(),
		"method", a.sub.Method,
		"amount", a.sub.Amount.String(),
		"installments", a.sub.Installments,
		"attempt", a.seq,
		"idempotency_key", a.sub.IdempotencyKey(),
	)
	return a
}

func (s *Session) run(a *attempt) {
	resp, err := a.adapter.Submit(context.Background(), a.sub)
	wipeInstrument(a.sub.Instrument)
	s.settle(a, resultFor(s.id, a, resp, err))
}

func (s *Session) expire(a *attempt) {
	s.mu.Lock()
	if a.settled {
		s.mu.Unlock()
		return
	}
	slog.Warn("payment_submit_timeout",
		"session_id", s.id,
		"adapter", a.adapter.Name(),
		"attempt", a.seq,
		"timeout", s.cfg.SubmitTimeout.String(),
	)
	r := s.fail(a, resultFor(s.id, a, provider.Response{}, errSubmitTimeout))
	s.mu.Unlock()
	s.record(a.adapter.Name(), r)
}

// settle applies a provider answer. Answers for attempts that were already
// settled by a timeout, a cancel or another attempt's success are reconciled.
func (s *Session) settle(a *attempt, r model.PaymentResult) {
	s.mu.Lock()
	record := true
	if a.settled {
		r, record = s.reconcile(a, r)
	} else if r.Outcome == model.OutcomeSuccess {
		s.succeed(a, r)
	} else {
		r = s.fail(a, r)
	}
	s.mu.Unlock()

	if record {
		s.record(a.adapter.Name(), r)
	}
}

func (s *Session) succeed(a *attempt, r model.PaymentResult) {
	s.result = &r
	s.dropInstrument()
	s.transition(StateSucceeded, &r)

	slog.Info("payment_succeeded",
		"session_id", s.id,
		"order_id", s.order.ID,
		"adapter", a.adapter.Name(),
		"transaction_id", r.TransactionID,
		"attempt", a.seq,
	)

	out := Outcome{State: StateSucceeded, Result: copyResult(&r)}
	if s.inflight != nil {
		settleAttempt(s.inflight, out, nil)
		s.inflight = nil
	}
	settleAttempt(a, out, nil)
}

func (s *Session) fail(a *attempt, r model.PaymentResult) model.PaymentResult {
	d := s.cfg.Policy.Decide(retry.Failure{Code: r.FailureCode, Attempt: a.tries})
	r.FailureCode = d.Code
	r.Retryable = d.Class == retry.Retryable

	s.result = &r
	other := s.inflight
	s.inflight = nil
	s.transition(StateFailed, &r)
	if r.Retryable {
		s.transition(StateValidated, &r)
	} else {
		s.clearIntent()
		s.transition(StateMethodSelected, &r)
	}

	slog.Warn("payment_failed",
		"session_id", s.id,
		"order_id", s.order.ID,
		"adapter", a.adapter.Name(),
		"code", r.FailureCode,
		"class", d.Class,
		"attempt", a.seq,
	)

	out := Outcome{State: s.state, Result: copyResult(&r), RetryAfter: d.RetryAfter}
	perr := &ProviderError{Class: d.Class, Code: d.Code, Message: r.FailureReason}
	if other != nil && other != a {
		settleAttempt(other, out, perr)
	}
	settleAttempt(a, out, perr)
	return r
}

// reconcile handles an answer for an already settled attempt and reports
// whether it changed the session. A success is never dropped unless the
// session already succeeded, in which case a second transaction id means the
// customer was charged twice. A terminal failure still ends the intent it was
// submitted for, so a declined instrument cannot be confirmed again.
func (s *Session) reconcile(a *attempt, r model.PaymentResult) (model.PaymentResult, bool) {
	if r.Outcome != model.OutcomeSuccess {
		if s.holdsIntent(a) && s.cfg.Policy.Classify(r.FailureCode) == retry.Terminal {
			slog.Warn("late_decline_applied",
				"session_id", s.id,
				"order_id", s.order.ID,
				"attempt", a.seq,
				"code", r.FailureCode,
				"state", s.state,
			)
			return s.fail(a, r), true
		}
		slog.Info("late_result_ignored",
			"session_id", s.id,
			"attempt", a.seq,
			"code", r.FailureCode,
			"state", s.state,
		)
		return r, false
	}
	if s.state == StateSucceeded {
		if s.result.TransactionID != r.TransactionID {
			slog.Error("duplicate_charge_detected",
				"session_id", s.id,
				"order_id", s.order.ID,
				"kept_transaction_id", s.result.TransactionID,
				"duplicate_transaction_id", r.TransactionID,
				"attempt", a.seq,
			)
		}
		return r, false
	}
	slog.Warn("late_success_applied",
		"session_id", s.id,
		"order_id", s.order.ID,
		"state", s.state,
		"transaction_id", r.TransactionID,
	)
	s.succeed(a, r)
	return r, true
}

// holdsIntent reports whether the session still carries the intent a was
// submitted for, either waiting for a retry or retrying it right now.
func (s *Session) holdsIntent(a *attempt) bool {
	if a.intent != s.intent || s.instrument == nil {
		return false
	}
	return s.state == StateValidated || s.state == StateSubmitting
}

// sameIntent reports whether a submitted intent repeats the one already held.
// Repeats keep the attempt budget and the idempotency key.
func (s *Session) sameIntent(instrument model.Instrument, billing *model.BillingAddress, installments int) bool {
	if s.instrument == nil || s.total == nil || s.total.Installments != installments {
		return false
	}
	if (s.billing == nil) != (billing == nil) || (billing != nil && *s.billing != *billing) {
		return false
	}
	held, ok := s.instrument.(*model.CardInstrument)
	if !ok {
		return s.instrument == instrument
	}
	card, ok := instrument.(*model.CardInstrument)
	return ok && card != nil && *held == *card
}

func (s *Session) await(ctx context.Context, a *attempt, duplicate bool) (Outcome, error) {
	select {
	case <-a.done:
		out := a.outcome
		out.Result = copyResult(out.Result)
		out.Duplicate = duplicate
		return out, a.err
	case <-ctx.Done():
		return Outcome{State: StateSubmitting, Duplicate: duplicate}, ctx.Err()
	}
}

func (s *Session) transition(to State, r *model.PaymentResult) {
	from := s.state
	s.state = to
	slog.Debug("session_state_changed", "session_id", s.id, "from", from, "to", to)
	if s.cfg.Observer != nil {
		s.cfg.Observer(s.id, to, copyResult(r))
	}
}

func (s *Session) record(adapter string, r model.PaymentResult) {
	if s.cfg.Recorder != nil {
		s.cfg.Recorder.RecordResult(adapter, r)
	}
}

// dropInstrument wipes and forgets the collected instrument.
func (s *Session) dropInstrument() {
	wipeInstrument(s.instrument)
	s.instrument = nil
	s.billing = nil
}

// clearIntent resets everything collected after method selection.
func (s *Session) clearIntent() {
	s.dropInstrument()
	s.total = nil
	s.tries = 0
}

// settleAttempt releases the attempt's waiters with out. Later calls are no-ops.
func settleAttempt(a *attempt, out Outcome, err error) {
	if a.settled {
		return
	}
	a.settled = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.outcome = out
	a.err = err
	close(a.done)
}

func resultFor(sessionID string, a *attempt, resp provider.Response, err error) model.PaymentResult {
	r := model.PaymentResult{
		SessionID:    sessionID,
		OrderID:      a.sub.OrderID,
		Method:       a.sub.Method,
		Amount:       a.sub.Amount,
		Installments: a.sub.Installments,
		Attempt:      a.seq,
		CompletedAt:  time.Now(),
	}
	switch {
	case err != nil:
		r.Outcome = model.OutcomeFailure
		r.FailureCode = model.CodeNetworkError
		if errors.Is(err, context.DeadlineExceeded) {
			r.FailureCode = model.CodeTimeout
		}
		r.FailureReason = err.Error()
	case resp.Success:
		r.Outcome = model.OutcomeSuccess
		r.TransactionID = resp.TransactionID
	default:
		r.Outcome = model.OutcomeFailure
		r.FailureCode = resp.ErrorCode
		if r.FailureCode == "" {
			r.FailureCode = model.CodeDeclined
		}
		r.FailureReason = resp.ErrorMessage
	}
	return r
}

func copyResult(r *model.PaymentResult) *model.PaymentResult {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// cloneInstrument gives each holder its own card copy so wiping one never
// touches data another goroutine is still reading.
func cloneInstrument(i model.Instrument) model.Instrument {
	if c, ok := i.(*model.CardInstrument); ok && c != nil {
		cp := *c
		return &cp
	}
	return i
}

func wipeInstrument(i model.Instrument) {
	if c, ok := i.(*model.CardInstrument); ok && c != nil {
		c.Wipe()
	}
}
