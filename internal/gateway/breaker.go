// Package gateway wraps every call to the Remote Order Service with
// credential handling: bearer headers, a single silent refresh-and-replay on
// expiry, and a process-wide circuit breaker that disables the API after a
// server or transport failure.
package gateway

import (
	"sync"
	"time"

	"campus_courier/pkg/telemetry"
)

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
)

// APIBreaker is the shared "API disabled" flag. Once tripped, calls fail
// fast without network I/O until Reset is called externally (app restart or
// explicit re-enable). With a zero cooldown it never heals on a timer.
type APIBreaker struct {
	mu          sync.RWMutex
	state       CircuitState
	lastTripped time.Time
	reason      string
	cooldown    time.Duration
	onTrip      func(reason string)
}

// NewAPIBreaker returns a closed breaker with no auto-heal cooldown.
func NewAPIBreaker() *APIBreaker {
	return &APIBreaker{state: CircuitClosed}
}

// WithCooldown enables timer-based recovery. The coordination layer leaves
// this off; it exists for operational tooling that wants half-open probes.
func (b *APIBreaker) WithCooldown(d time.Duration) *APIBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cooldown = d
	return b
}

// SetOnTrip installs a callback fired once per open transition, after the
// state change. Used for operator alerting.
func (b *APIBreaker) SetOnTrip(fn func(reason string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = fn
}

// Trip opens the breaker.
func (b *APIBreaker) Trip(reason string) {
	b.mu.Lock()
	if b.state == CircuitOpen {
		b.mu.Unlock()
		return
	}
	b.state = CircuitOpen
	b.lastTripped = time.Now()
	b.reason = reason
	onTrip := b.onTrip
	b.mu.Unlock()

	telemetry.GetGlobalMetrics().SetAPIBreakerOpen(true)
	if onTrip != nil {
		onTrip(reason)
	}
}

// IsTripped reports whether calls should fail fast.
func (b *APIBreaker) IsTripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitOpen {
		if b.cooldown > 0 && time.Since(b.lastTripped) > b.cooldown {
			b.state = CircuitClosed
			b.reason = ""
			telemetry.GetGlobalMetrics().SetAPIBreakerOpen(false)
			return false
		}
		return true
	}
	return false
}

// Reset closes the breaker.
func (b *APIBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = CircuitClosed
	b.reason = ""

	telemetry.GetGlobalMetrics().SetAPIBreakerOpen(false)
}

// Status returns the current state for health reporting.
func (b *APIBreaker) Status() (open bool, since time.Time, reason string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state == CircuitOpen, b.lastTripped, b.reason
}
