package content

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralpost/astralpost/pkg/observability"
)

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("nova", 3, 5*time.Minute, testMetrics())

	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.NoError(t, b.Allow())
	assert.Equal(t, "closed", b.State())

	b.RecordFailure()
	assert.Equal(t, "open", b.State())
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	now := time.Unix(1700000000, 0)
	b := NewBreaker("nova", 3, 5*time.Minute, testMetrics())
	b.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)

	// Just under the cooldown: still open.
	now = now.Add(5*time.Minute - time.Second)
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)

	// Past the cooldown: one probe is admitted.
	now = now.Add(2 * time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, "half_open", b.State())

	b.RecordSuccess()
	assert.Equal(t, "closed", b.State())
	assert.NoError(t, b.Allow())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	now := time.Unix(1700000000, 0)
	b := NewBreaker("nova", 3, 5*time.Minute, testMetrics())
	b.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	now = now.Add(6 * time.Minute)
	require.NoError(t, b.Allow())

	// One failure in half-open slams it shut again and restarts the cooldown.
	b.RecordFailure()
	assert.Equal(t, "open", b.State())
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)

	now = now.Add(5*time.Minute - time.Second)
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)
	now = now.Add(2 * time.Second)
	assert.NoError(t, b.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("nova", 3, 5*time.Minute, testMetrics())

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// The run restarts: two more failures do not open it.
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, "closed", b.State())
}

func TestBreakerConcurrentAccess(t *testing.T) {
	b := NewBreaker("nova", 3, time.Millisecond, testMetrics())

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				if b.Allow() == nil {
					if j%2 == 0 {
						b.RecordFailure()
					} else {
						b.RecordSuccess()
					}
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	// No race, and the state is one of the known values.
	assert.Contains(t, []string{"closed", "open", "half_open"}, b.State())
}
