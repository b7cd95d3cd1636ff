package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned when a call is rejected without being attempted.
var ErrOpen = errors.New("circuit breaker open")

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
		return "half-open"
	}
	return "unknown"
}

type Config struct {
	// FailureThreshold consecutive failures open a closed breaker.
	FailureThreshold int
	// SuccessThreshold consecutive successes close a half-open breaker.
	SuccessThreshold int
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// MaxRequestsHalfOpen caps the probes in flight while half-open.
	MaxRequestsHalfOpen int

	// IsFailure reports whether err says something about the health of the
	// protected dependency. Nil counts every error. Errors that are the
	// caller's fault (bad input, exhausted quota) should not trip the breaker.
	IsFailure func(err error) bool
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxRequestsHalfOpen: 3,
	}
}

// CircuitBreaker counts outcomes per generation. A generation ends on every
// state change, so results of calls admitted before the change are dropped.
type CircuitBreaker struct {
	cfg Config
	now func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	openedAt   time.Time
	inFlight   int
	failures   int
	successes  int
	onChange   func(from, to State)
}

func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.MaxRequestsHalfOpen <= 0 {
		cfg.MaxRequestsHalfOpen = 1
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// OnStateChange registers fn to run, on its own goroutine, after each
// transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	cb.onChange = fn
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.expireOpen()
	return cb.state
}

// ExecuteWithResult runs fn through cb. The error returned by fn is passed
// back unchanged so callers can still inspect it.
func ExecuteWithResult[T any](ctx context.Context, cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	generation, state, ok := cb.admit()
	if !ok {
		return zero, fmt.Errorf("%w (state %s)", ErrOpen, state)
	}

	result, err := fn()
	cb.record(generation, err == nil || (cb.cfg.IsFailure != nil && !cb.cfg.IsFailure(err)))
	if err != nil {
		return zero, err
	}
	return result, nil
}

func (cb *CircuitBreaker) admit() (uint64, State, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.expireOpen()
	switch cb.state {
	case StateOpen:
		return cb.generation, cb.state, false
	case StateHalfOpen:
		if cb.inFlight >= cb.cfg.MaxRequestsHalfOpen {
			return cb.generation, cb.state, false
		}
	}
	cb.inFlight++
	return cb.generation, cb.state, true
}

func (cb *CircuitBreaker) record(generation uint64, healthy bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if generation != cb.generation {
		return
	}
	cb.inFlight--

	if healthy {
		cb.failures = 0
		cb.successes++
		if cb.state == StateHalfOpen && cb.successes >= cb.cfg.SuccessThreshold {
			cb.setState(StateClosed)
		}
		return
	}

	cb.successes = 0
	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		cb.setState(StateOpen)
	}
}

// expireOpen moves an open breaker whose timeout has passed to half-open.
// mu must be held.
func (cb *CircuitBreaker) expireOpen() {
	if cb.state == StateOpen && !cb.now().Before(cb.openedAt.Add(cb.cfg.Timeout)) {
		cb.setState(StateHalfOpen)
	}
}

// setState starts a new generation. mu must be held.
func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.generation++
	cb.inFlight, cb.failures, cb.successes = 0, 0, 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	if fn := cb.onChange; fn != nil {
		go fn(from, to)
	}
}
