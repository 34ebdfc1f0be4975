package retry

import (
	"time"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// Class tells the orchestrator what a failed submission allows next.
type Class string

const (
	// Retryable failures may be confirmed again with the same instrument and amount.
	Retryable Class = "retryable"
	// Terminal failures require a different instrument before another submission.
	Terminal Class = "terminal"
)

// Failure is a failed submission as seen by the policy.
type Failure struct {
	Code model.FailureCode
	// Attempt is the 1-based number of submissions made with the current instrument.
	Attempt int
}

// Decision is the policy's verdict on a failure.
type Decision struct {
	Class Class
	// Code is the failure code after escalation, e.g. retries_exhausted.
	Code model.FailureCode
	// RetryAfter is an advisory delay before re-offering confirm. Zero for terminal failures.
	RetryAfter time.Duration
}

// Policy classifies failures and bounds how often one instrument can be retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewPolicy creates a Policy with the default budget.
func NewPolicy() Policy {
	return Policy{
		MaxAttempts: config.MaxSubmitAttempts,
		BaseDelay:   config.RetryBaseDelay,
		MaxDelay:    config.RetryMaxDelay,
	}
}

// Classify returns Retryable for transient codes and Terminal for everything else,
// including unknown codes.
func (p Policy) Classify(code model.FailureCode) Class {
	if code.IsTransient() {
		return Retryable
	}
	return Terminal
}

// Decide classifies the failure and escalates a retryable failure to terminal
// once the attempt budget is spent.
func (p Policy) Decide(f Failure) Decision {
	if p.Classify(f.Code) == Terminal {
		return Decision{Class: Terminal, Code: f.Code}
	}
	if p.MaxAttempts > 0 && f.Attempt >= p.MaxAttempts {
		return Decision{Class: Terminal, Code: model.CodeRetriesExhausted}
	}
	return Decision{Class: Retryable, Code: f.Code, RetryAfter: p.backoff(f.Attempt)}
}

// backoff doubles BaseDelay per attempt, capped at MaxDelay.
func (p Policy) backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 1 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
