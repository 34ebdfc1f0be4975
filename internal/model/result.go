package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FailureCode is the stable machine code of a failed submission.
type FailureCode string

const (
	// Transport and availability failures.
	CodeNetworkError        FailureCode = "network_error"
	CodeTimeout             FailureCode = "timeout"
	CodeProviderError       FailureCode = "provider_error"
	CodeProviderUnavailable FailureCode = "provider_unavailable"
	CodeRateLimited         FailureCode = "rate_limited"

	// Business declines reported by the provider.
	CodeInvalidInstrument FailureCode = "invalid_instrument"
	CodeInsufficientFunds FailureCode = "insufficient_funds"
	CodeFraudBlocked      FailureCode = "fraud_blocked"
	CodeDeclined          FailureCode = "declined"

	// CodeRetriesExhausted marks a retryable failure that used up the session's attempt budget.
	CodeRetriesExhausted FailureCode = "retries_exhausted"
)

// IsTransient returns true if the code describes a transport or provider-side
// availability problem rather than a decision about the instrument.
func (c FailureCode) IsTransient() bool {
	switch c {
	case CodeNetworkError, CodeTimeout, CodeProviderError, CodeProviderUnavailable, CodeRateLimited:
		return true
	default:
		return false
	}
}

// IsDecline returns true if the provider declared a business failure for the instrument.
func (c FailureCode) IsDecline() bool {
	switch c {
	case CodeInvalidInstrument, CodeInsufficientFunds, CodeFraudBlocked, CodeDeclined:
		return true
	default:
		return false
	}
}

// Outcome tags a PaymentResult.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeCancelled Outcome = "cancelled"
)

// PaymentResult is the most recent result of a checkout session.
type PaymentResult struct {
	SessionID     string          `json:"session_id"`
	OrderID       string          `json:"order_id"`
	Method        string          `json:"method"`
	Outcome       Outcome         `json:"outcome"`
	Amount        decimal.Decimal `json:"amount"`
	Installments  int             `json:"installments"`
	TransactionID string          `json:"transaction_id,omitempty"`
	FailureCode   FailureCode     `json:"failure_code,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Retryable     bool            `json:"retryable,omitempty"`
	Attempt       int             `json:"attempt"`
	CompletedAt   time.Time       `json:"completed_at"`
}
