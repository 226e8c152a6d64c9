package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth is the outcome of one probe.
type ComponentHealth struct {
	Name      string            `json:"name"`
	Status    Status            `json:"status"`
	Message   string            `json:"message,omitempty"`
	LastCheck time.Time         `json:"last_check"`
	Duration  time.Duration     `json:"duration_ms"`
	Details   map[string]string `json:"details,omitempty"`
}

type SystemHealth struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
	Summary    HealthSummary              `json:"summary"`
}

type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Degraded  int `json:"degraded"`
}

type HealthCheckFunc func(ctx context.Context) ComponentHealth

// HealthChecker probes the catalog's dependencies (pipeline store, store
// breaker, event bus) and keeps the most recent outcome for /ready.
type HealthChecker struct {
	mutex      sync.RWMutex
	components map[string]HealthCheckFunc
	results    map[string]ComponentHealth
	timeout    time.Duration
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		components: make(map[string]HealthCheckFunc),
		results:    make(map[string]ComponentHealth),
		timeout:    timeout,
	}
}

func (hc *HealthChecker) RegisterComponent(name string, checkFunc HealthCheckFunc) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()
	hc.components[name] = checkFunc
}

// Check runs every probe concurrently. A probe still running when the
// checker's timeout elapses is reported unhealthy.
func (hc *HealthChecker) Check(ctx context.Context) SystemHealth {
	hc.mutex.RLock()
	probes := make(map[string]HealthCheckFunc, len(hc.components))
	for name, fn := range hc.components {
		probes[name] = fn
	}
	hc.mutex.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]ComponentHealth, len(probes))
	)
	for name, probe := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := hc.run(ctx, name, probe)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	hc.mutex.Lock()
	hc.results = results
	hc.mutex.Unlock()

	return summarize(results)
}

func (hc *HealthChecker) run(ctx context.Context, name string, probe HealthCheckFunc) ComponentHealth {
	done := make(chan ComponentHealth, 1)
	go func() { done <- probe(ctx) }()

	select {
	case result := <-done:
		result.Name = name
		return result
	case <-ctx.Done():
		return ComponentHealth{
			Name:      name,
			Status:    StatusUnhealthy,
			Message:   "Health check timeout",
			LastCheck: time.Now(),
			Duration:  hc.timeout,
		}
	}
}

func (hc *HealthChecker) GetLastResults() SystemHealth {
	hc.mutex.RLock()
	defer hc.mutex.RUnlock()
	return summarize(hc.results)
}

// StartPeriodicChecks refreshes the cached results until ctx is done.
func (hc *HealthChecker) StartPeriodicChecks(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				hc.Check(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Any unhealthy component makes the catalog unhealthy; otherwise any degraded
// one makes it degraded.
func summarize(results map[string]ComponentHealth) SystemHealth {
	summary := HealthSummary{Total: len(results)}
	for _, result := range results {
		switch result.Status {
		case StatusHealthy:
			summary.Healthy++
		case StatusUnhealthy:
			summary.Unhealthy++
		case StatusDegraded:
			summary.Degraded++
		}
	}

	status := StatusHealthy
	switch {
	case summary.Unhealthy > 0:
		status = StatusUnhealthy
	case summary.Degraded > 0:
		status = StatusDegraded
	}

	return SystemHealth{
		Status:     status,
		Timestamp:  time.Now(),
		Components: results,
		Summary:    summary,
	}
}

// timed fills in the bookkeeping fields around a probe body.
func timed(name string, body func(h *ComponentHealth)) ComponentHealth {
	start := time.Now()
	h := ComponentHealth{Name: name, Status: StatusHealthy, LastCheck: start}
	body(&h)
	h.Duration = time.Since(start)
	return h
}

// StoreHealthCheck pings the pipeline store. A failing store makes the
// service unhealthy.
func StoreHealthCheck(name string, pinger interface{ Ping(context.Context) error }) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		return timed(name, func(h *ComponentHealth) {
			start := h.LastCheck
			if err := pinger.Ping(ctx); err != nil {
				h.Status = StatusUnhealthy
				h.Message = fmt.Sprintf("Store ping failed: %v", err)
			} else {
				h.Message = "Store connection healthy"
			}
			h.Details = map[string]string{"response_time": time.Since(start).String()}
		})
	}
}

// CircuitBreakerHealthCheck reports degraded while the store breaker is not
// closed.
func CircuitBreakerHealthCheck(name string, state func() gobreaker.State) HealthCheckFunc {
	return func(context.Context) ComponentHealth {
		return timed(name, func(h *ComponentHealth) {
			current := state()
			h.Details = map[string]string{"state": current.String()}
			h.Message = "Circuit " + current.String()
			if current != gobreaker.StateClosed {
				h.Status = StatusDegraded
			}
		})
	}
}

// EventsHealthCheck reports degraded while the event bus is disconnected.
// Publishing is best effort, so it never makes the service unhealthy.
func EventsHealthCheck(name string, connected func() bool) HealthCheckFunc {
	return func(context.Context) ComponentHealth {
		return timed(name, func(h *ComponentHealth) {
			h.Message = "Event bus connected"
			if !connected() {
				h.Status = StatusDegraded
				h.Message = "Event bus disconnected"
			}
		})
	}
}
