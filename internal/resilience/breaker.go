// Package resilience provides the circuit breaker guarding calls to the
// tokenization service.
//
// The breaker is a classic three-state machine (closed → open → half-open).
// Because the tokenization service is an auxiliary enrichment — a turn
// continues with whatever entities were recovered — tripping the breaker
// converts a flapping child process from a per-turn timeout into an
// immediate skip, and the half-open probe re-enables enrichment once the
// process is back.
//
// All methods are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is open and the
// cool-down has not elapsed.
var ErrOpen = errors.New("resilience: breaker is open")

// State is the breaker's operating mode.
type State int

const (
	// Closed is normal operation — calls pass through.
	Closed State = iota

	// Open rejects calls immediately until the cool-down elapses.
	Open

	// HalfOpen lets a single probe through; its outcome decides whether
	// the breaker closes or re-opens.
	HalfOpen
)

// String returns the state's human-readable name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes a [Breaker]. Zero fields take defaults.
type Config struct {
	// Name labels the breaker in log lines.
	Name string

	// Threshold is the consecutive-failure count that opens the breaker.
	// Default: 3.
	Threshold int

	// Cooldown is how long the breaker stays open before the next call
	// becomes a probe. Default: 15s.
	Cooldown time.Duration

	// now is replaced in tests.
	now func() time.Time
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New creates a Breaker from cfg.
func New(cfg Config) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		now:       cfg.now,
	}
}

// Do runs fn if the breaker allows it. While open it returns [ErrOpen]
// without calling fn; after the cool-down one probe call is let through.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.record(err)
	return err
}

// admit decides whether a call may proceed, handling the open → half-open
// transition.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = HalfOpen
		b.probing = true
		slog.Info("breaker half-open, probing", "name", b.name)
		return nil
	case HalfOpen:
		if b.probing {
			return ErrOpen // a probe is already in flight
		}
		b.probing = true
		return nil
	}
	return nil
}

// record applies the call outcome to the state machine.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.probing = false
		if err != nil {
			b.state = Open
			b.openedAt = b.now()
			slog.Warn("breaker re-opened after failed probe", "name", b.name, "err", err)
			return
		}
		b.state = Closed
		b.failures = 0
		slog.Info("breaker closed after successful probe", "name", b.name)
		return
	}

	if err == nil {
		b.failures = 0
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = Open
		b.openedAt = b.now()
		slog.Warn("breaker opened", "name", b.name, "consecutive_failures", b.failures)
	}
}

// State returns the current state. An elapsed cool-down still reports Open;
// the transition to HalfOpen happens on the next [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probing = false
}
