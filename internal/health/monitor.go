package health

import (
	"sort"
	"sync"
	"time"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// Status represents the health status of a provider adapter.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusOpen     Status = "circuit_open"
)

// AdapterHealth summarizes recent submissions through one adapter.
type AdapterHealth struct {
	Adapter      string                    `json:"adapter"`
	HealthScore  float64                   `json:"health_score"`
	Status       Status                    `json:"status"`
	TotalRecent  int                       `json:"total_recent"`
	SuccessCount int                       `json:"success_count"`
	FailureCount int                       `json:"failure_count"`
	Failures     map[model.FailureCode]int `json:"failures,omitempty"`
	LastUpdated  time.Time                 `json:"last_updated"`
}

type outcome struct {
	code      model.FailureCode // empty on success
	timestamp time.Time
}

// Monitor tracks adapter health using a sliding window. Only transient
// failures lower the score; declines are the customer's, not the provider's.
type Monitor struct {
	mu             sync.RWMutex
	windows        map[string][]outcome
	windowSize     int
	windowDuration time.Duration
}

// NewMonitor creates a health monitor with default configuration.
func NewMonitor() *Monitor {
	return NewMonitorWithConfig(config.HealthWindowSize, time.Duration(config.HealthWindowDurationMinutes)*time.Minute)
}

// NewMonitorWithConfig creates a monitor with custom window settings.
func NewMonitorWithConfig(windowSize int, windowDuration time.Duration) *Monitor {
	return &Monitor{
		windows:        make(map[string][]outcome),
		windowSize:     windowSize,
		windowDuration: windowDuration,
	}
}

// RecordSuccess records a successful submission.
func (m *Monitor) RecordSuccess(adapter string) {
	m.record(adapter, "")
}

// RecordFailure records a failed submission with its code.
func (m *Monitor) RecordFailure(adapter string, code model.FailureCode) {
	m.record(adapter, code)
}

func (m *Monitor) record(adapter string, code model.FailureCode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.windows[adapter] = trim(append(m.windows[adapter], outcome{code: code, timestamp: now}),
		now.Add(-m.windowDuration), m.windowSize)
}

// GetHealth returns the current health of an adapter. Unknown adapters are healthy.
func (m *Monitor) GetHealth(adapter string) AdapterHealth {
	m.mu.RLock()
	window := trim(m.windows[adapter], time.Now().Add(-m.windowDuration), m.windowSize)
	m.mu.RUnlock()

	h := AdapterHealth{
		Adapter:     adapter,
		HealthScore: 1.0,
		Status:      StatusHealthy,
		LastUpdated: time.Now(),
	}
	if len(window) == 0 {
		return h
	}

	unhealthy := 0
	for _, o := range window {
		if o.code == "" {
			h.SuccessCount++
			continue
		}
		h.FailureCount++
		if h.Failures == nil {
			h.Failures = make(map[model.FailureCode]int)
		}
		h.Failures[o.code]++
		// retries_exhausted only follows a run of transient failures.
		if o.code.IsTransient() || o.code == model.CodeRetriesExhausted {
			unhealthy++
		}
	}

	h.TotalRecent = len(window)
	h.HealthScore = float64(h.TotalRecent-unhealthy) / float64(h.TotalRecent)

	switch {
	case h.HealthScore < config.CircuitBreakerThreshold:
		h.Status = StatusOpen
	case h.HealthScore < config.DegradedThreshold:
		h.Status = StatusDegraded
	}
	return h
}

// GetAllHealth returns health for every tracked adapter, ordered by name.
func (m *Monitor) GetAllHealth() []AdapterHealth {
	m.mu.RLock()
	names := make([]string, 0, len(m.windows))
	for name := range m.windows {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)

	out := make([]AdapterHealth, 0, len(names))
	for _, name := range names {
		out = append(out, m.GetHealth(name))
	}
	return out
}

// trim drops outcomes older than cutoff and keeps at most size of the newest.
// It never mutates the input's backing array in place.
func trim(window []outcome, cutoff time.Time, size int) []outcome {
	start := 0
	for start < len(window) && !window[start].timestamp.After(cutoff) {
		start++
	}
	if len(window)-start > size {
		start = len(window) - size
	}
	return window[start:]
}
