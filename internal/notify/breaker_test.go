package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerClosedAllowsAndCountsFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, ResetAfter: time.Hour})

	assert.True(t, b.Allow())
	b.Failure()
	b.Failure()
	assert.True(t, b.Allow(), "below threshold stays closed")

	b.Failure()
	assert.False(t, b.Allow(), "threshold reached opens the circuit")
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, ResetAfter: time.Hour})

	b.Failure()
	b.Success()
	b.Failure()
	assert.True(t, b.Allow(), "success resets the consecutive count")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetAfter: 10 * time.Millisecond})

	b.Failure()
	assert.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow(), "reset window admits a probe")
	assert.False(t, b.Allow(), "only one probe at a time")

	b.Success()
	assert.True(t, b.Allow(), "successful probe closes the circuit")
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetAfter: 10 * time.Millisecond})

	b.Failure()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())

	b.Failure()
	assert.False(t, b.Allow(), "failed probe reopens immediately")
}
