package config

import "time"

const (
	// MaxSubmitAttempts is the number of failed submissions a session may accumulate
	// with the same instrument before a retryable failure becomes terminal.
	MaxSubmitAttempts = 3

	// RetryBaseDelay is the advisory delay offered after the first retryable failure.
	RetryBaseDelay = 500 * time.Millisecond

	// RetryMaxDelay caps the advisory retry delay.
	RetryMaxDelay = 8 * time.Second

	// SubmitTimeout bounds a single provider submission. Zero disables the timer.
	SubmitTimeout = 30 * time.Second

	// CardMinDigits is the minimum number of digits accepted for a card number.
	CardMinDigits = 16

	// CardMaxDigits is the maximum number of digits accepted for a card number.
	CardMaxDigits = 19

	// CurrencyPlaces is the number of decimal places amounts are rounded to for display and charging.
	CurrencyPlaces = 2

	// HealthWindowSize is the number of recent submissions to consider for health calculation.
	HealthWindowSize = 50

	// HealthWindowDurationMinutes is the time window for health calculation.
	HealthWindowDurationMinutes = 10

	// DegradedThreshold is the health score below which a provider is considered degraded.
	DegradedThreshold = 0.5

	// CircuitBreakerThreshold is the health score below which a provider is reported as open.
	CircuitBreakerThreshold = 0.2

	// BreakerConsecutiveFailures trips the adapter circuit breaker.
	BreakerConsecutiveFailures = 5

	// BreakerOpenTimeout is how long a tripped breaker stays open before probing.
	BreakerOpenTimeout = 30 * time.Second

	// ServerPort is the default HTTP server address.
	ServerPort = ":8080"
)
