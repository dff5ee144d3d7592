package notify

import (
	"log"
	"sync"
	"time"
)

// Breaker states.
const (
	breakerClosed = iota
	breakerOpen
	breakerHalfOpen
)

// BreakerConfig holds circuit breaker parameters
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int
	// ResetAfter is how long the circuit stays open before allowing one
	// probe through.
	ResetAfter time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		ResetAfter:       30 * time.Second,
	}
}

// Breaker guards the queue path of the dispatcher. While open, jobs go
// straight to the fallback channels instead of paying a broker timeout on
// every alert.
type Breaker struct {
	config BreakerConfig

	mu       sync.Mutex
	state    int
	failures int
	openedAt time.Time
}

func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.ResetAfter <= 0 {
		config.ResetAfter = DefaultBreakerConfig().ResetAfter
	}
	return &Breaker{config: config}
}

// Allow reports whether a queue attempt may proceed. After the reset window
// an open circuit admits a single probe (half-open).
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if time.Since(b.openedAt) >= b.config.ResetAfter {
			b.state = breakerHalfOpen
			log.Println("Breaker: half-open, probing queue")
			return true
		}
		return false
	case breakerHalfOpen:
		// One probe at a time; concurrent callers take the fallback.
		return false
	}
	return false
}

// Success records a successful queue attempt and closes the circuit.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != breakerClosed {
		log.Println("Breaker: queue recovered, closing circuit")
	}
	b.state = breakerClosed
	b.failures = 0
}

// Failure records a failed queue attempt. Consecutive failures past the
// threshold, or any half-open probe failure, open the circuit.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.config.FailureThreshold {
		if b.state != breakerOpen {
			log.Printf("Breaker: opening circuit after %d failures", b.failures)
		}
		b.state = breakerOpen
		b.openedAt = time.Now()
	}
}
