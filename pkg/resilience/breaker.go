// Package resilience provides the fault-tolerance helpers used around the
// optional infrastructure: exponential-backoff retry and a circuit breaker
// that stops a build from stalling on a broker that has gone away.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the protected function while the
// breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

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

// Breaker opens after Threshold consecutive failures. Once Cooldown has
// passed it lets one probe call through: success closes it, failure opens it
// again for another Cooldown.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		logger:    slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		wait := b.cooldown - b.now().Sub(b.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, b.name, wait.Round(time.Millisecond))
		}
		b.state = StateHalfOpen
		b.probing = true
		b.logger.Info("circuit half-open, probing")
	case StateHalfOpen:
		if b.probing {
			return fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, b.name)
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err == nil {
		if b.state != StateClosed {
			b.logger.Info("circuit closed")
		}
		b.state = StateClosed
		b.failures = 0
		return
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		if b.state != StateOpen {
			b.logger.Warn("circuit opened", "consecutive_failures", b.failures, "error", err)
		}
		b.state = StateOpen
		b.openedAt = b.now()
	}
}
