// Package circuitbreaker implements a per-source CLOSED/OPEN/HALF_OPEN
// state machine that fails fast when a source repeatedly errors.
//
// The state machine is hand-rolled rather than built on
// github.com/sony/gobreaker: gobreaker trips on a failure *ratio* over a
// rolling window and folds the half-open probe limit and the
// close-threshold into a single MaxRequests knob. This package needs a
// consecutive-failure trip condition and an independently configurable
// half-open concurrency cap vs. close threshold, so the state transitions
// below are implemented directly against time.Time and mutex-guarded counters,
// keeping the Config/New/Execute/State/IsOpen shape the rest of this
// codebase expects from a circuit breaker.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/capcat/capcat/internal/observability/metrics"
)

// State is one of the three circuit breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpenState is returned by Execute when the circuit is OPEN (recovery
// timeout not yet elapsed) or when a HALF_OPEN probe slot is unavailable.
var ErrOpenState = errors.New("circuit breaker: circuit is open")

// Config holds the behavior of a single circuit breaker.
type Config struct {
	// Name identifies the protected resource, e.g. a sourceID.
	Name string

	// FailureThreshold is the number of consecutive failures in CLOSED
	// before the circuit trips to OPEN.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successful probes in
	// HALF_OPEN required to close the circuit.
	SuccessThreshold int

	// Timeout is how long the circuit stays OPEN before admitting probes
	// in HALF_OPEN.
	Timeout time.Duration

	// HalfOpenMaxCalls bounds the number of concurrent in-flight probes
	// admitted while HALF_OPEN. Independent of SuccessThreshold: a source
	// may need several concurrent probes to collect enough consecutive
	// successes without serializing recovery.
	HalfOpenMaxCalls int
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 3
	}
	return c
}

// DefaultConfig returns the fallback configuration applied to any source
// without a more specific entry in the pool's config table.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// FeedFetchConfig is a looser default for RSS/Atom feed retrieval, where
// transient upstream hiccups are common and shouldn't trip as eagerly as
// HTML scraping against a brittle selector set.
func FeedFetchConfig() Config {
	return Config{
		Name:             "feed-fetch",
		FailureThreshold: 6,
		SuccessThreshold: 2,
		Timeout:          90 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// WebScraperConfig is a tighter default for HTML scraping sources: site
// structure changes are more likely to produce sustained, not transient,
// failures, so trip sooner and recover slower.
func WebScraperConfig() Config {
	return Config{
		Name:             "web-scraper",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          180 * time.Second,
		HalfOpenMaxCalls: 2,
	}
}

// StateTransition records one state change for reporting.
type StateTransition struct {
	From      State
	To        State
	Timestamp time.Time
}

// CircuitBreaker is a per-source CLOSED/OPEN/HALF_OPEN state machine. Safe
// for concurrent use; callers typically obtain one per source from a Pool.
type CircuitBreaker struct {
	name   string
	cfg    Config
	onTrip func(name string, from, to State)

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	successesInHalfOpen int
	halfOpenInflight    int
	lastFailureTime     time.Time
	lastException       error

	totalCalls      int64
	totalFailures   int64
	totalSuccesses  int64
	stateTransitions []StateTransition
}

// New creates a circuit breaker with the given configuration.
func New(cfg Config) *CircuitBreaker {
	cfg = cfg.withDefaults()
	return &CircuitBreaker{
		name:  cfg.Name,
		cfg:   cfg,
		state: StateClosed,
		onTrip: func(name string, from, to State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
}

// Name returns the circuit breaker's name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// State returns the current state, resolving an OPEN->HALF_OPEN admission
// check as a side effect (matching Execute's own check) without admitting
// a probe.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.lastFailureTime) >= cb.cfg.Timeout {
		cb.transitionLocked(StateHalfOpen)
		cb.halfOpenInflight = 0
		cb.successesInHalfOpen = 0
	}
	return cb.state
}

// IsOpen reports whether the circuit is currently OPEN (not HALF_OPEN).
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == StateOpen
}

// admit decides, under lock, whether a call may proceed, performing any
// OPEN->HALF_OPEN transition that's due. Returns an error if the call must
// fail fast.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalCalls++

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailureTime) >= cb.cfg.Timeout {
			cb.transitionLocked(StateHalfOpen)
			cb.halfOpenInflight = 0
			cb.successesInHalfOpen = 0
		} else {
			return ErrOpenState
		}
	}

	if cb.state == StateHalfOpen {
		if cb.halfOpenInflight >= cb.cfg.HalfOpenMaxCalls {
			return ErrOpenState
		}
		cb.halfOpenInflight++
	}

	return nil
}

// Execute runs fn through the circuit breaker. If the circuit refuses the
// call, fn is never invoked and ErrOpenState is returned.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	if err := cb.admit(); err != nil {
		return nil, err
	}

	result, err := fn()
	if err != nil {
		cb.onFailure(err)
		return nil, err
	}
	cb.onSuccess()
	return result, nil
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalSuccesses++

	switch cb.state {
	case StateHalfOpen:
		cb.successesInHalfOpen++
		cb.halfOpenInflight--
		if cb.successesInHalfOpen >= cb.cfg.SuccessThreshold {
			cb.transitionLocked(StateClosed)
			cb.consecutiveFailures = 0
			cb.successesInHalfOpen = 0
			cb.halfOpenInflight = 0
		}
	case StateClosed:
		cb.consecutiveFailures = 0
	}
}

func (cb *CircuitBreaker) onFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalFailures++
	cb.lastFailureTime = time.Now()
	cb.lastException = err

	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenInflight--
		cb.transitionLocked(StateOpen)
		cb.successesInHalfOpen = 0
		cb.halfOpenInflight = 0
	case StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	}
}

// transitionLocked must be called with cb.mu held.
func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	cb.state = to
	cb.stateTransitions = append(cb.stateTransitions, StateTransition{From: from, To: to, Timestamp: time.Now()})
	metrics.CircuitBreakerTransitionsTotal.WithLabelValues(cb.name, to.String()).Inc()
	if cb.onTrip != nil {
		cb.onTrip(cb.name, from, to)
	}
}

// Stats is a point-in-time snapshot of a breaker's counters, used for the
// run summary and metrics export.
type Stats struct {
	Name                string
	State               State
	ConsecutiveFailures int
	TotalCalls          int64
	TotalFailures       int64
	TotalSuccesses      int64
	LastFailureTime     time.Time
	LastException       error
	Transitions         int
}

// Stats returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		Name:                cb.name,
		State:               cb.state,
		ConsecutiveFailures: cb.consecutiveFailures,
		TotalCalls:          cb.totalCalls,
		TotalFailures:       cb.totalFailures,
		TotalSuccesses:      cb.totalSuccesses,
		LastFailureTime:     cb.lastFailureTime,
		LastException:       cb.lastException,
		Transitions:         len(cb.stateTransitions),
	}
}

// Reset restores the breaker to its initial CLOSED state, clearing all
// counters. Used by tests and administrative tooling.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.consecutiveFailures = 0
	cb.successesInHalfOpen = 0
	cb.halfOpenInflight = 0
	cb.lastFailureTime = time.Time{}
	cb.lastException = nil
	cb.totalCalls = 0
	cb.totalFailures = 0
	cb.totalSuccesses = 0
	cb.stateTransitions = nil
}
