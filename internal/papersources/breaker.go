package papersources

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned in place of a search while a source's breaker
// is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

// Circuit breaker states.
const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String returns the state name.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	// ConsecutiveThreshold is the number of consecutive failures that opens
	// the breaker.
	ConsecutiveThreshold int
	// Cooldown is how long the breaker stays open before one trial call is
	// let through.
	Cooldown time.Duration
}

// DefaultBreakerConfig is used for sources without an explicit setting.
var DefaultBreakerConfig = BreakerConfig{
	ConsecutiveThreshold: 5,
	Cooldown:             60 * time.Second,
}

// CircuitBreaker stops calling a source that keeps failing. After Cooldown
// a single trial call decides whether it closes again.
type CircuitBreaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	trial    bool
}

// NewCircuitBreaker creates a closed breaker. Non-positive fields fall back
// to DefaultBreakerConfig.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.ConsecutiveThreshold <= 0 {
		cfg.ConsecutiveThreshold = DefaultBreakerConfig.ConsecutiveThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig.Cooldown
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a call may proceed, returning ErrCircuitOpen if not.
// Every allowed call must be followed by Success or Failure.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrCircuitOpen
		}
		b.state = CircuitHalfOpen
		b.trial = true
		return nil
	case CircuitHalfOpen:
		if b.trial {
			return ErrCircuitOpen
		}
		b.trial = true
		return nil
	default:
		return nil
	}
}

// Success records a successful call and closes the breaker.
func (b *CircuitBreaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = CircuitClosed
	b.failures = 0
	b.trial = false
}

// Failure records a failed call. A failed trial reopens the breaker at once.
func (b *CircuitBreaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.trial = false
	if b.state == CircuitHalfOpen || b.failures >= b.cfg.ConsecutiveThreshold {
		b.state = CircuitOpen
		b.openedAt = b.now()
	}
}

// Abort releases an allowed call without recording an outcome.
func (b *CircuitBreaker) Abort() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trial = false
}

// State returns the current state. An open breaker whose cooldown has
// elapsed reports CircuitHalfOpen.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return CircuitHalfOpen
	}
	return b.state
}
