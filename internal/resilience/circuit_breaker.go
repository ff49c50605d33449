// Package resilience guards the generation backends with a circuit breaker
// so a failing Ollama or Groq endpoint stops eating retries quickly.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
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
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned while the breaker rejects all calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when too many requests are in flight in
	// the half-open state.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Counts tracks calls within the current generation. A generation ends on
// every state change and, in the closed state, when Interval elapses.
type Counts struct {
	Requests             uint32
	Successes            uint32
	Failures             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Config for one breaker.
type Config struct {
	// Name identifies the guarded backend in state-change callbacks.
	Name string

	// MaxHalfOpen caps concurrent calls in the half-open state. The breaker
	// closes after this many consecutive half-open successes.
	MaxHalfOpen uint32

	// Interval resets closed-state counts so stale failures cannot trip the
	// breaker. Zero keeps counts for the lifetime of the closed state.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// TripAfter decides, on each failure, whether to open the breaker.
	TripAfter func(counts Counts) bool

	// OnStateChange is invoked on every transition, including the timed
	// open to half-open move. It runs under the breaker lock and must not
	// call back into the breaker.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig suits a slow LLM HTTP backend: trip on a 60% failure rate
// once five calls are seen, retry after 30s.
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		MaxHalfOpen: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		TripAfter: func(counts Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.Failures)/float64(counts.Requests) >= 0.6
		},
	}
}

// CircuitBreaker admits or rejects backend calls based on recent outcomes.
type CircuitBreaker struct {
	name          string
	maxHalfOpen   uint32
	interval      time.Duration
	timeout       time.Duration
	tripAfter     func(counts Counts) bool
	onStateChange func(name string, from, to State)

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
	inFlight   uint32
}

func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:          cfg.Name,
		maxHalfOpen:   cfg.MaxHalfOpen,
		interval:      cfg.Interval,
		timeout:       cfg.Timeout,
		tripAfter:     cfg.TripAfter,
		onStateChange: cfg.OnStateChange,
	}
	if cb.maxHalfOpen == 0 {
		cb.maxHalfOpen = 1
	}
	if cb.timeout == 0 {
		cb.timeout = 30 * time.Second
	}
	if cb.tripAfter == nil {
		cb.tripAfter = func(counts Counts) bool {
			return counts.ConsecutiveFailures > 5
		}
	}
	cb.newGeneration(time.Now())
	return cb
}

// Do runs call if the breaker admits it. The call's error decides success;
// a context canceled before the call runs counts as neither.
func (cb *CircuitBreaker) Do(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	generation, err := cb.admit()
	if err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	result, err := call(ctx)
	cb.record(generation, err == nil)
	return result, err
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state, generation := cb.currentState(now)

	switch state {
	case StateOpen:
		return generation, ErrCircuitOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.maxHalfOpen {
			return generation, ErrTooManyRequests
		}
		cb.inFlight++
	}

	cb.counts.Requests++
	return generation, nil
}

func (cb *CircuitBreaker) record(before uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state, generation := cb.currentState(now)

	// A transition since admit() already cleared these counts.
	if generation != before {
		return
	}

	if success {
		cb.counts.Successes++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.maxHalfOpen {
			cb.setState(StateClosed, now)
		}
		return
	}

	cb.counts.Failures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	switch state {
	case StateClosed:
		if cb.tripAfter(cb.counts) {
			cb.setState(StateOpen, now)
		}
	case StateHalfOpen:
		cb.setState(StateOpen, now)
	}
}

// currentState applies timed transitions. Callers hold cb.mu.
func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.newGeneration(now)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.setState(StateHalfOpen, now)
		}
	}
	return cb.state, cb.generation
}

// setState transitions and notifies. Callers hold cb.mu.
func (cb *CircuitBreaker) setState(state State, now time.Time) {
	if cb.state == state {
		return
	}
	prev := cb.state
	cb.state = state
	cb.newGeneration(now)

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, prev, state)
	}
}

func (cb *CircuitBreaker) newGeneration(now time.Time) {
	cb.generation++
	cb.counts = Counts{}
	cb.inFlight = 0

	switch cb.state {
	case StateClosed:
		if cb.interval > 0 {
			cb.expiry = now.Add(cb.interval)
		} else {
			cb.expiry = time.Time{}
		}
	case StateOpen:
		cb.expiry = now.Add(cb.timeout)
	case StateHalfOpen:
		cb.expiry = time.Time{}
	}
}
