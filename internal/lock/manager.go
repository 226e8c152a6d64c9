package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Manager hands out in-process mutual exclusion per resource name. Entries
// exist only while someone holds or waits for them.
type Manager struct {
	mu        sync.Mutex
	resources map[string]*resourceLock
	timeout   time.Duration

	acquired atomic.Uint64
	timeouts atomic.Uint64
}

type resourceLock struct {
	sem     chan struct{}
	waiters int
}

type LockStats struct {
	ActiveLocks   int
	TotalAcquired uint64
	TotalTimeouts uint64
}

// NewManager returns a manager whose Acquire gives up after timeout unless
// the context ends first.
func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{
		resources: make(map[string]*resourceLock),
		timeout:   timeout,
	}
}

// Acquire blocks until resource is free. The returned release function must
// be called exactly once.
func (m *Manager) Acquire(ctx context.Context, resource string) (func(), error) {
	m.mu.Lock()
	rl, ok := m.resources[resource]
	if !ok {
		rl = &resourceLock{sem: make(chan struct{}, 1)}
		m.resources[resource] = rl
	}
	rl.waiters++
	m.mu.Unlock()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case rl.sem <- struct{}{}:
		m.acquired.Add(1)
		var once sync.Once
		return func() { once.Do(func() { m.release(resource, rl) }) }, nil
	case <-ctx.Done():
		m.abandon(resource, rl)
		return nil, ctx.Err()
	case <-timer.C:
		m.abandon(resource, rl)
		m.timeouts.Add(1)
		return nil, fmt.Errorf("failed to acquire lock on resource %s: timeout after %s", resource, m.timeout)
	}
}

func (m *Manager) release(resource string, rl *resourceLock) {
	<-rl.sem
	m.abandon(resource, rl)
}

func (m *Manager) abandon(resource string, rl *resourceLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rl.waiters--
	if rl.waiters == 0 {
		delete(m.resources, resource)
	}
}

func (m *Manager) IsLocked(resource string) bool {
	m.mu.Lock()
	rl, ok := m.resources[resource]
	m.mu.Unlock()
	return ok && len(rl.sem) > 0
}

func (m *Manager) GetStats() LockStats {
	m.mu.Lock()
	active := 0
	for _, rl := range m.resources {
		if len(rl.sem) > 0 {
			active++
		}
	}
	m.mu.Unlock()

	return LockStats{
		ActiveLocks:   active,
		TotalAcquired: m.acquired.Load(),
		TotalTimeouts: m.timeouts.Load(),
	}
}
