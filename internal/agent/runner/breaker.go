package runner

import "time"

// Circuit-breaker defaults matching the poll loop contract.
const (
	DefaultFailureThreshold = 5
	DefaultResetCooldown    = 300 * time.Second
	DefaultMaxBackoff       = 300 * time.Second

	backoffBase = 60 * time.Second
)

// breaker tracks consecutive poll failures. Mutated only by the poll loop,
// so no locking is needed.
type breaker struct {
	failures      int
	open          bool
	openedAt      time.Time
	threshold     int
	resetCooldown time.Duration
	maxBackoff    time.Duration
}

func newBreaker(threshold int, resetCooldown, maxBackoff time.Duration) *breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if resetCooldown <= 0 {
		resetCooldown = DefaultResetCooldown
	}
	if maxBackoff <= 0 {
		maxBackoff = DefaultMaxBackoff
	}
	return &breaker{
		threshold:     threshold,
		resetCooldown: resetCooldown,
		maxBackoff:    maxBackoff,
	}
}

// recordFailure counts one failure and reports whether the circuit just
// opened.
func (b *breaker) recordFailure(now time.Time) bool {
	b.failures++
	if b.failures >= b.threshold && !b.open {
		b.open = true
		b.openedAt = now
		return true
	}
	return false
}

// recordSuccess closes the circuit and clears the failure count.
func (b *breaker) recordSuccess() {
	b.failures = 0
	b.open = false
	b.openedAt = time.Time{}
}

// backoff returns the sleep before the next retry: 60s doubled per
// consecutive failure, capped at maxBackoff.
func (b *breaker) backoff() time.Duration {
	if b.failures <= 0 {
		return 0
	}
	d := backoffBase
	for i := 1; i < b.failures; i++ {
		d *= 2
		if d >= b.maxBackoff {
			return b.maxBackoff
		}
	}
	if d > b.maxBackoff {
		return b.maxBackoff
	}
	return d
}
