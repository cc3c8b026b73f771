package client

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/velluxe/storefront-core/types"
)

type BreakerState int32

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// CircuitBreaker stops hammering a backend that keeps failing. It is
// consulted before every transport attempt, including retries.
type CircuitBreaker struct {
	config    *types.CircuitBreakerConfig
	logger    types.Logger
	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	lastFail  time.Time
}

func NewCircuitBreaker(config *types.CircuitBreakerConfig, logger types.Logger) *CircuitBreaker {
	if config == nil {
		config = &types.CircuitBreakerConfig{Enabled: false}
	}
	return &CircuitBreaker{
		config: config,
		logger: logger,
		state:  BreakerClosed,
	}
}

func (cb *CircuitBreaker) CanExecute() bool {
	if !cb.config.Enabled {
		return true
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if time.Since(cb.lastFail) > cb.config.RecoveryTimeout {
			cb.state = BreakerHalfOpen
			cb.successes = 0
			cb.logger.Info("Circuit breaker half-open")
			return true
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.config.Enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures = 0
	case BreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.HalfOpenRequests {
			cb.state = BreakerClosed
			cb.failures = 0
			cb.logger.Info("Circuit breaker closed")
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	if !cb.config.Enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFail = time.Now()

	switch cb.state {
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.state = BreakerOpen
			cb.logger.Warn("Circuit breaker opened",
				zap.Int("failures", cb.failures),
				zap.Int("threshold", cb.config.FailureThreshold))
		}
	case BreakerHalfOpen:
		cb.state = BreakerOpen
		cb.logger.Warn("Circuit breaker reopened from half-open")
	}
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = BreakerClosed
	cb.failures = 0
	cb.successes = 0
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
