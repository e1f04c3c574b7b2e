// Package resilience keeps the speech providers of a ceremony usable when one
// of them misbehaves.
//
// [CircuitBreaker] stops calling a provider after repeated failures and lets
// a few trials through once a cool-down has passed. [FallbackGroup] chains
// providers of one kind behind a breaker each, and [STTFallback] and
// [TTSFallback] put such chains behind the provider interfaces.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while calls are
// being refused.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the mode a [CircuitBreaker] is in.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota
	// StateOpen refuses every call until the reset timeout has passed.
	StateOpen
	// StateHalfOpen admits a limited number of trial calls.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values take the
// defaults noted per field.
type CircuitBreakerConfig struct {
	// Name identifies the guarded provider in logs and hooks.
	Name string

	// MaxFailures consecutive failures open the circuit. Default 5.
	MaxFailures int

	// ResetTimeout is the cool-down before probing. Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMax trials are admitted after the cool-down, and as many must
	// succeed to close the circuit. Default 3.
	HalfOpenMax int

	// OnStateChange, if set, is called on every transition. It runs with the
	// breaker locked and must not call back into it.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker guards calls to one provider. It is safe for concurrent use.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trials   int
	passed   int
}

// NewCircuitBreaker returns a closed breaker configured by cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Execute calls fn unless the circuit refuses it, in which case it returns
// [ErrCircuitOpen]. The result of fn is recorded and returned.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.settle(trial, err)
	return err
}

// State reports the current state. An open circuit whose cool-down has
// passed reports [StateHalfOpen] ahead of the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cooled() {
		return StateHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if !cb.cooled() {
			return false, ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateClosed {
		return false, nil
	}
	if cb.trials >= cb.cfg.HalfOpenMax {
		return false, ErrCircuitOpen
	}
	cb.trials++
	return true, nil
}

func (cb *CircuitBreaker) settle(trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err == nil && !trial:
		cb.failures = 0
	case err == nil:
		// A trial may finish after another trial already re-opened the circuit.
		if cb.state != StateHalfOpen {
			return
		}
		cb.passed++
		if cb.passed >= cb.cfg.HalfOpenMax {
			cb.transition(StateClosed)
		}
	case trial:
		cb.trip()
	default:
		cb.failures++
		if cb.state == StateClosed && cb.failures >= cb.cfg.MaxFailures {
			cb.trip()
		}
	}
}

func (cb *CircuitBreaker) cooled() bool {
	return cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.transition(StateOpen)
}

// transition moves to state and clears the per-state counters. Callers hold
// cb.mu.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.failures, cb.trials, cb.passed = 0, 0, 0

	if to == StateOpen {
		slog.Warn("provider circuit opened", "provider", cb.cfg.Name, "from", from.String())
	} else {
		slog.Info("provider circuit changed", "provider", cb.cfg.Name, "from", from.String(), "to", to.String())
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}
