package content

import (
	"sync"
	"time"

	"github.com/astralpost/astralpost/pkg/observability"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker is a per-provider circuit breaker. It opens after a run of
// consecutive failures, lets a single probe through once the cooldown has
// passed, and closes again on the first success. All state transitions
// happen under the mutex so the breaker is safe for concurrent callers.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	metrics   *observability.Metrics

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewBreaker creates a circuit breaker for the named provider.
func NewBreaker(name string, threshold int, cooldown time.Duration, metrics *observability.Metrics) *Breaker {
	b := &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		metrics:   metrics,
		now:       time.Now,
	}
	b.publishState(stateClosed)
	return b
}

// Allow reports whether a call may proceed. When the breaker is open and the
// cooldown has elapsed it transitions to half-open and admits one probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed, stateHalfOpen:
		return nil
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = stateHalfOpen
			b.publishState(stateHalfOpen)
			return nil
		}
		return ErrBreakerOpen
	}
	return nil
}

// RecordSuccess resets the breaker to closed.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != stateClosed {
		b.state = stateClosed
		b.publishState(stateClosed)
	}
}

// RecordFailure counts a failure; at the threshold (or on a failed half-open
// probe) the breaker opens and the cooldown restarts.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == stateHalfOpen || b.failures >= b.threshold {
		b.state = stateOpen
		b.openedAt = b.now()
		b.publishState(stateOpen)
	}
}

// State returns the current state name, for logs and tests.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

func (b *Breaker) publishState(s breakerState) {
	if b.metrics == nil {
		return
	}
	b.metrics.BreakerState.WithLabelValues(b.name).Set(float64(s))
}
