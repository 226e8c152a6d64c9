package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/store/memory"
	"github.com/sumandas0/catalog/pkg/utils"
)

// flakyStore fails GetPipeline with the queued errors before delegating.
type flakyStore struct {
	*memory.Store
	failures []error
	calls    int
}

func (f *flakyStore) GetPipeline(ctx context.Context, id uuid.UUID) (*models.Pipeline, error) {
	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	return f.Store.GetPipeline(ctx, id)
}

func fastRetry(attempts int) *RetryManager {
	return NewRetryManager(RetryConfig{
		Enabled:           true,
		MaxAttempts:       attempts,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
	}, StrategyExponential)
}

func seeded(t *testing.T) (*flakyStore, *models.Pipeline) {
	t.Helper()
	mem := memory.NewStore()
	p := &models.Pipeline{
		ID:                 uuid.New(),
		Name:               "etl",
		FullyQualifiedName: "airflow.etl",
		Service:            &models.EntityReference{ID: uuid.New(), Type: models.EntityTypePipelineService, Name: "airflow"},
		Version:            models.InitialVersion,
		UpdatedAt:          time.Now().UTC(),
	}
	require.NoError(t, mem.CreatePipeline(context.Background(), p))
	return &flakyStore{Store: mem}, p
}

func unavailable() error {
	return utils.NewAppError(utils.CodeUnavailable, "connection reset", errors.New("reset"))
}

func TestStore_RetriesTransientFailures(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error
		attempts  int
		wantCalls int
		wantCode  string
	}{
		{name: "succeeds after transient failures", failures: []error{unavailable(), unavailable()}, attempts: 3, wantCalls: 3},
		{name: "gives up after max attempts", failures: []error{unavailable(), unavailable(), unavailable()}, attempts: 2, wantCalls: 2, wantCode: utils.CodeUnavailable},
		{name: "does not retry not found", failures: []error{utils.NewAppError(utils.CodeNotFound, "missing", utils.ErrNotFound)}, attempts: 3, wantCalls: 1, wantCode: utils.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flaky, p := seeded(t)
			flaky.failures = tt.failures

			breaker := NewCircuitBreakerManager(CircuitBreakerConfig{}, zerolog.Nop())
			s := NewStore(flaky, fastRetry(tt.attempts), breaker)

			got, err := s.GetPipeline(context.Background(), p.ID)
			assert.Equal(t, tt.wantCalls, flaky.calls)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, utils.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, p.ID, got.ID)
		})
	}
}

// lossyStore commits writes and then reports the queued errors, or fails
// before committing when refuse is set.
type lossyStore struct {
	*memory.Store
	failures []error
	refuse   bool
	calls    int
}

func (l *lossyStore) CreatePipeline(ctx context.Context, p *models.Pipeline) error {
	l.calls++
	if len(l.failures) == 0 {
		return l.Store.CreatePipeline(ctx, p)
	}
	err := l.failures[0]
	l.failures = l.failures[1:]
	if l.refuse {
		return err
	}
	if createErr := l.Store.CreatePipeline(ctx, p); createErr != nil {
		return createErr
	}
	return err
}

func timedOut() error {
	return utils.NewAppError(utils.CodeTimeout, "commit acknowledgement lost", context.DeadlineExceeded)
}

func TestStore_WritesRetryOnlyUncommittedFailures(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error
		refuse    bool
		wantCalls int
		wantCode  string
	}{
		{name: "timeout after commit is not retried", failures: []error{timedOut()}, wantCalls: 1, wantCode: utils.CodeTimeout},
		{name: "refused connection is retried", failures: []error{unavailable()}, refuse: true, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lossy := &lossyStore{Store: memory.NewStore(), failures: tt.failures, refuse: tt.refuse}
			s := NewStore(lossy, fastRetry(3), NewCircuitBreakerManager(CircuitBreakerConfig{}, zerolog.Nop()))

			p := &models.Pipeline{
				ID:                 uuid.New(),
				Name:               "etl",
				FullyQualifiedName: "airflow.etl",
				Service:            &models.EntityReference{ID: uuid.New(), Type: models.EntityTypePipelineService, Name: "airflow"},
				Version:            models.InitialVersion,
				UpdatedAt:          time.Now().UTC(),
			}
			err := s.CreatePipeline(context.Background(), p)
			assert.Equal(t, tt.wantCalls, lossy.calls)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, utils.Code(err))
			} else {
				require.NoError(t, err)
			}

			stored, err := s.GetPipeline(context.Background(), p.ID)
			require.NoError(t, err, "the write landed exactly once")
			assert.Equal(t, p.FullyQualifiedName, stored.FullyQualifiedName)
		})
	}
}

func TestStore_BreakerOpensOnTransientFailures(t *testing.T) {
	flaky, p := seeded(t)
	for i := 0; i < 10; i++ {
		flaky.failures = append(flaky.failures, unavailable())
	}

	var states []gobreaker.State
	breaker := NewCircuitBreakerManager(CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}, zerolog.Nop())
	breaker.OnStateChange(func(_ string, state gobreaker.State) {
		states = append(states, state)
	})

	s := NewStore(flaky, fastRetry(1), breaker)

	for i := 0; i < 2; i++ {
		_, err := s.GetPipeline(context.Background(), p.ID)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, breaker.GetState(StoreBreakerName))
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, states)

	callsBefore := flaky.calls
	_, err := s.GetPipeline(context.Background(), p.ID)
	require.Error(t, err)
	assert.Equal(t, utils.CodeUnavailable, utils.Code(err))
	assert.Equal(t, callsBefore, flaky.calls, "open breaker must not reach the store")
}

func TestStore_BusinessErrorsDoNotTripBreaker(t *testing.T) {
	flaky, _ := seeded(t)
	breaker := NewCircuitBreakerManager(CircuitBreakerConfig{
		Enabled:      true,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  1,
	}, zerolog.Nop())
	s := NewStore(flaky, fastRetry(1), breaker)

	for i := 0; i < 5; i++ {
		_, err := s.GetPipeline(context.Background(), uuid.New())
		require.True(t, utils.IsNotFound(err))
	}
	assert.Equal(t, gobreaker.StateClosed, breaker.GetState(StoreBreakerName))
}

func TestRetryManager_StopsOnCancelledContext(t *testing.T) {
	rm := NewRetryManager(RetryConfig{
		Enabled:           true,
		MaxAttempts:       5,
		InitialDelay:      time.Hour,
		BackoffMultiplier: 1,
	}, StrategyFixed)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	rm.OnRetry(func(int, error) { cancel() })

	err := rm.Execute(ctx, func() error {
		calls++
		return unavailable()
	}, StoreRetryableErrors)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExecuteWithResult(t *testing.T) {
	rm := fastRetry(3)
	attempts := 0

	got, err := ExecuteWithResult(context.Background(), rm, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", unavailable()
		}
		return "ok", nil
	}, StoreRetryableErrors)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, attempts)
}
