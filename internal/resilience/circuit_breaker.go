package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/sumandas0/catalog/pkg/utils"
)

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

// CircuitBreakerManager keeps one breaker per named dependency.
type CircuitBreakerManager struct {
	config        CircuitBreakerConfig
	logger        zerolog.Logger
	breakers      map[string]*gobreaker.CircuitBreaker
	mutex         sync.RWMutex
	onStateChange func(name string, state gobreaker.State)
}

func NewCircuitBreakerManager(config CircuitBreakerConfig, logger zerolog.Logger) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// OnStateChange registers a hook fired after a breaker transitions.
func (cbm *CircuitBreakerManager) OnStateChange(fn func(name string, state gobreaker.State)) {
	cbm.onStateChange = fn
}

func (cbm *CircuitBreakerManager) GetBreaker(name string) *gobreaker.CircuitBreaker {
	if !cbm.config.Enabled {
		return nil
	}

	cbm.mutex.RLock()
	breaker, exists := cbm.breakers[name]
	cbm.mutex.RUnlock()
	if exists {
		return breaker
	}

	cbm.mutex.Lock()
	defer cbm.mutex.Unlock()

	if breaker, exists := cbm.breakers[name]; exists {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cbm.config.MaxRequests,
		Interval:    cbm.config.Interval,
		Timeout:     cbm.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cbm.config.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cbm.config.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cbm.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			if cbm.onStateChange != nil {
				cbm.onStateChange(name, to)
			}
		},
		// Business outcomes such as not-found or conflicts say nothing about
		// the health of the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || !utils.IsRetryable(err)
		},
	}

	breaker = gobreaker.NewCircuitBreaker(settings)
	cbm.breakers[name] = breaker
	return breaker
}

func (cbm *CircuitBreakerManager) ExecuteWithContext(ctx context.Context, name string, fn func(context.Context) error) error {
	breaker := cbm.GetBreaker(name)
	if breaker == nil {
		return fn(ctx)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := breaker.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	if IsCircuitBreakerError(err) {
		return utils.NewAppError(utils.CodeUnavailable, "store temporarily unavailable", err).
			WithDetail("breaker", name)
	}
	return err
}

func (cbm *CircuitBreakerManager) GetState(name string) gobreaker.State {
	cbm.mutex.RLock()
	defer cbm.mutex.RUnlock()

	if breaker, exists := cbm.breakers[name]; exists {
		return breaker.State()
	}
	return gobreaker.StateClosed
}

func (cbm *CircuitBreakerManager) IsEnabled() bool {
	return cbm.config.Enabled
}

func IsCircuitBreakerError(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Check reports every breaker's state and counts for the readiness endpoint.
func (cbm *CircuitBreakerManager) Check() map[string]any {
	cbm.mutex.RLock()
	defer cbm.mutex.RUnlock()

	status := make(map[string]any, len(cbm.breakers))
	for name, breaker := range cbm.breakers {
		counts := breaker.Counts()
		status[name] = map[string]any{
			"state":                breaker.State().String(),
			"requests":             counts.Requests,
			"total_failures":       counts.TotalFailures,
			"consecutive_failures": counts.ConsecutiveFailures,
		}
	}

	return map[string]any{
		"circuit_breakers": status,
		"enabled":          cbm.config.Enabled,
	}
}
