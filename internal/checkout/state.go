package checkout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/retry"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/validation"
)

// State is the position of a session in the checkout flow.
type State string

const (
	StateIdle           State = "idle"
	StateMethodSelected State = "method_selected"
	StateValidated      State = "validated"
	StateSubmitting     State = "submitting"
	StateFailed         State = "failed"
	StateSucceeded      State = "succeeded"
	StateCancelled      State = "cancelled"
)

// Terminal reports whether no further transition can leave the state.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateCancelled
}

// ErrInvalidTransition is returned when an operation is not allowed in the current state.
var ErrInvalidTransition = errors.New("invalid checkout transition")

// ErrSessionNotFound is returned by Service lookups for unknown session ids.
var ErrSessionNotFound = errors.New("checkout session not found")

func invalidTransition(op string, from State) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, from)
}

// ValidationError carries the field errors that kept a session out of Validated.
type ValidationError struct {
	Errors []validation.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ProviderError is a failed submission. Retryable errors leave the session in
// Validated; terminal errors send it back to MethodSelected.
type ProviderError struct {
	Class   retry.Class
	Code    model.FailureCode
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider failure %s: %s", e.Class, e.Code, e.Message)
}

// Retryable reports whether confirm may be called again with the same instrument.
func (e *ProviderError) Retryable() bool {
	return e.Class == retry.Retryable
}

// Outcome is what Confirm and Cancel hand back to the caller.
type Outcome struct {
	State  State                `json:"state"`
	Result *model.PaymentResult `json:"result,omitempty"`
	// Duplicate is set when the call joined or replayed an existing submission
	// instead of starting one.
	Duplicate bool `json:"duplicate"`
	// RetryAfter is an advisory delay before confirming again after a retryable failure.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Observer is notified of every state transition. It runs while the session
// is locked and must not call back into the session.
type Observer func(sessionID string, state State, result *model.PaymentResult)
