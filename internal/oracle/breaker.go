package oracle

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BreakerState is the current state of the circuit breaker.
type BreakerState int

const (
	// BreakerClosed allows all calls through.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls immediately.
	BreakerOpen

	// BreakerHalfOpen allows a single probe call through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned while the breaker is rejecting calls.
var ErrBreakerOpen = errors.New("oracle: circuit breaker open")

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens (default 5).
	FailureThreshold int

	// RecoveryTimeout is how long the breaker stays open before probing
	// (default 30s).
	RecoveryTimeout time.Duration
}

// Breaker wraps a Completer with a circuit breaker so that a dead backend
// fails fast instead of stalling every recursion step.
type Breaker struct {
	inner  Completer
	config BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewBreaker wraps inner with a circuit breaker.
func NewBreaker(inner Completer, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	return &Breaker{inner: inner, config: cfg, state: BreakerClosed}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// Complete implements Completer.
func (b *Breaker) Complete(ctx context.Context, conversation []Message, temperature float64, maxTokens int) (string, error) {
	if err := b.before(); err != nil {
		return "", err
	}

	text, err := b.inner.Complete(ctx, conversation, temperature, maxTokens)
	b.after(err)
	return text, err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case BreakerOpen:
		return ErrBreakerOpen
	case BreakerHalfOpen:
		if b.probing {
			return ErrBreakerOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false

	// Only availability failures trip the breaker; a malformed response
	// means the backend is up.
	if err != nil && errors.Is(err, ErrUnavailable) {
		b.failures++
		b.lastFailure = time.Now()
		if b.failures >= b.config.FailureThreshold {
			b.state = BreakerOpen
		}
		return
	}

	b.failures = 0
	b.state = BreakerClosed
}

// currentState resolves open → half-open once the recovery timeout passes.
// Callers must hold b.mu.
func (b *Breaker) currentState() BreakerState {
	if b.state == BreakerOpen && time.Since(b.lastFailure) >= b.config.RecoveryTimeout {
		b.state = BreakerHalfOpen
	}
	return b.state
}
