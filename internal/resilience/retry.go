package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sumandas0/catalog/pkg/utils"
)

type RetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	InitialDelay      time.Duration `mapstructure:"initial_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	JitterFactor      float64       `mapstructure:"jitter_factor"`
}

type RetryStrategy string

const (
	StrategyExponential RetryStrategy = "exponential"
	StrategyLinear      RetryStrategy = "linear"
	StrategyFixed       RetryStrategy = "fixed"
)

type IsRetryableError func(error) bool

// StoreRetryableErrors retries only failures the store tagged as transient.
// Conflicts, validation failures and not-found are never retried.
func StoreRetryableErrors(err error) bool {
	return utils.IsRetryable(err)
}

// StoreWriteRetryableErrors retries a write only when the store reports it
// never reached a commit. A timed out write may have landed, so it surfaces
// to the caller instead.
func StoreWriteRetryableErrors(err error) bool {
	return utils.IsUnavailable(err)
}

type RetryManager struct {
	config   RetryConfig
	strategy RetryStrategy
	onRetry  func(attempt int, err error)
}

func NewRetryManager(config RetryConfig, strategy RetryStrategy) *RetryManager {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryManager{
		config:   config,
		strategy: strategy,
	}
}

// OnRetry registers a hook invoked before each retry sleep.
func (rm *RetryManager) OnRetry(fn func(attempt int, err error)) {
	rm.onRetry = fn
}

func (rm *RetryManager) Execute(ctx context.Context, fn func() error, isRetryable IsRetryableError) error {
	if !rm.config.Enabled {
		return fn()
	}

	var lastErr error
	for attempt := 1; attempt <= rm.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == rm.config.MaxAttempts {
			break
		}

		if rm.onRetry != nil {
			rm.onRetry(attempt, err)
		}

		timer := time.NewTimer(rm.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if rm.config.MaxAttempts > 1 && isRetryable(lastErr) {
		return fmt.Errorf("operation failed after %d attempts: %w", rm.config.MaxAttempts, lastErr)
	}
	return lastErr
}

// ExecuteWithResult runs fn under rm and returns its value.
func ExecuteWithResult[T any](ctx context.Context, rm *RetryManager, fn func() (T, error), isRetryable IsRetryableError) (T, error) {
	var result T
	err := rm.Execute(ctx, func() error {
		var err error
		result, err = fn()
		return err
	}, isRetryable)
	return result, err
}

func (rm *RetryManager) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch rm.strategy {
	case StrategyLinear:
		delay = time.Duration(int64(rm.config.InitialDelay) * int64(attempt))
	case StrategyFixed:
		delay = rm.config.InitialDelay
	default:
		multiplier := math.Pow(rm.config.BackoffMultiplier, float64(attempt-1))
		delay = time.Duration(float64(rm.config.InitialDelay) * multiplier)
	}

	delay = rm.applyJitter(delay)

	if rm.config.MaxDelay > 0 && delay > rm.config.MaxDelay {
		delay = rm.config.MaxDelay
	}
	return delay
}

func (rm *RetryManager) applyJitter(delay time.Duration) time.Duration {
	if rm.config.JitterFactor <= 0 || rm.config.JitterFactor >= 1 {
		return delay
	}

	jitter := rm.config.JitterFactor * float64(delay)
	finalDelay := time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
	if finalDelay < 0 {
		finalDelay = delay / 10
	}
	return finalDelay
}

func (rm *RetryManager) IsEnabled() bool {
	return rm.config.Enabled
}
