// circuitbreaker.go - Circuit breaker in front of the audit database.
//
// When Postgres is unreachable every audit write would otherwise wait out its
// timeout on the request path. After maxFailures consecutive errors the
// breaker opens and writes fail fast until the cool-down has passed.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

const (
	// StateClosed: requests flow normally
	StateClosed CircuitState = iota
	// StateOpen: requests fail fast
	StateOpen
	// StateHalfOpen: one trial request is let through
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker counts consecutive failures of a dependency.
type CircuitBreaker struct {
	mu sync.Mutex

	maxFailures uint32
	cooldown    time.Duration
	log         zerolog.Logger
	now         func() time.Time

	state       CircuitState
	failures    uint32
	openedAt    time.Time
	trialActive bool
	rejected    uint64
}

// NewCircuitBreaker opens after maxFailures consecutive errors and tries
// again after cooldown.
func NewCircuitBreaker(maxFailures uint32, cooldown time.Duration, log zerolog.Logger) *CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		log:         log,
		now:         time.Now,
		state:       StateClosed,
	}
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			cb.rejected++
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.log.Info().Msg("circuit_breaker_half_open")
		fallthrough
	case StateHalfOpen:
		if cb.trialActive {
			cb.rejected++
			return ErrCircuitOpen
		}
		cb.trialActive = true
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasTrial := cb.state == StateHalfOpen
	cb.trialActive = false

	if err == nil {
		if wasTrial {
			cb.log.Info().Msg("circuit_breaker_closed")
		}
		cb.state = StateClosed
		cb.failures = 0
		return
	}

	cb.failures++
	if wasTrial || cb.failures >= cb.maxFailures {
		if cb.state != StateOpen {
			cb.log.Warn().
				Err(err).
				Uint32("failures", cb.failures).
				Dur("cooldown", cb.cooldown).
				Msg("circuit_breaker_opened")
		}
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Rejected returns how many calls were refused while open.
func (cb *CircuitBreaker) Rejected() uint64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.rejected
}

// BreakerAudit guards an AuditLog's writes with a CircuitBreaker. Ping is
// passed through so readiness reflects the real database state.
type BreakerAudit struct {
	next AuditLog
	cb   *CircuitBreaker
}

func NewBreakerAudit(next AuditLog, cb *CircuitBreaker) *BreakerAudit {
	return &BreakerAudit{next: next, cb: cb}
}

func (b *BreakerAudit) Record(ctx context.Context, ev AuditEvent) error {
	return b.cb.Execute(func() error { return b.next.Record(ctx, ev) })
}

func (b *BreakerAudit) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}
