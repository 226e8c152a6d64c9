package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/store"
)

// Manager caches directory entries by id and by type and name. Entries expire
// after the configured TTL and misses are loaded from the directory.
type Manager struct {
	byID   sync.Map // uuid.UUID -> *cacheEntry
	byName sync.Map // nameKey -> *cacheEntry

	ttl       time.Duration
	directory store.Directory

	hits   uint64
	misses uint64
	mu     sync.RWMutex

	onHit  func()
	onMiss func()
}

func NewManager(directory store.Directory, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Manager{
		directory: directory,
		ttl:       ttl,
	}
}

// Observe registers hit and miss hooks, used to feed metrics.
func (m *Manager) Observe(onHit, onMiss func()) {
	m.onHit = onHit
	m.onMiss = onMiss
}

type nameKey struct {
	entityType string
	name       string
}

type cacheEntry struct {
	value      *models.DirectoryEntry
	expiration time.Time
}

func (e *cacheEntry) isExpired() bool {
	return time.Now().After(e.expiration)
}

// Lookup returns the cached entry for id without touching the directory.
func (m *Manager) Lookup(id uuid.UUID) (*models.DirectoryEntry, bool) {
	if cached, ok := m.byID.Load(id); ok {
		entry := cached.(*cacheEntry)
		if !entry.isExpired() {
			m.recordHit()
			return copyEntry(entry.value), true
		}
		m.byID.Delete(id)
	}
	m.recordMiss()
	return nil, false
}

func (m *Manager) GetEntry(ctx context.Context, id uuid.UUID) (*models.DirectoryEntry, error) {
	if entry, ok := m.Lookup(id); ok {
		return entry, nil
	}

	entry, err := m.directory.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	m.Set(entry)
	return copyEntry(entry), nil
}

func (m *Manager) GetEntryByName(ctx context.Context, entityType, name string) (*models.DirectoryEntry, error) {
	key := nameKey{entityType: entityType, name: name}
	if cached, ok := m.byName.Load(key); ok {
		entry := cached.(*cacheEntry)
		if !entry.isExpired() {
			m.recordHit()
			return copyEntry(entry.value), nil
		}
		m.byName.Delete(key)
	}

	m.recordMiss()

	entry, err := m.directory.GetEntryByName(ctx, entityType, name)
	if err != nil {
		return nil, err
	}

	m.Set(entry)
	return copyEntry(entry), nil
}

// Set adds or refreshes entry under both keys.
func (m *Manager) Set(entry *models.DirectoryEntry) {
	stored := &cacheEntry{
		value:      copyEntry(entry),
		expiration: time.Now().Add(m.ttl),
	}
	m.byID.Store(entry.ID, stored)
	m.byName.Store(nameKey{entityType: entry.Type, name: entry.Name}, stored)
}

func (m *Manager) Invalidate(id uuid.UUID) {
	if cached, ok := m.byID.LoadAndDelete(id); ok {
		entry := cached.(*cacheEntry)
		m.byName.Delete(nameKey{entityType: entry.value.Type, name: entry.value.Name})
	}
}

func (m *Manager) Clear() {
	m.byID.Range(func(key, _ any) bool {
		m.byID.Delete(key)
		return true
	})
	m.byName.Range(func(key, _ any) bool {
		m.byName.Delete(key)
		return true
	})

	m.mu.Lock()
	m.hits = 0
	m.misses = 0
	m.mu.Unlock()
}

func (m *Manager) CleanupExpired() {
	now := time.Now()
	sweep := func(key, value any, target *sync.Map) bool {
		if now.After(value.(*cacheEntry).expiration) {
			target.Delete(key)
		}
		return true
	}
	m.byID.Range(func(key, value any) bool { return sweep(key, value, &m.byID) })
	m.byName.Range(func(key, value any) bool { return sweep(key, value, &m.byName) })
}

// StartCleanupRoutine sweeps expired entries until ctx is done.
func (m *Manager) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.CleanupExpired()
			case <-ctx.Done():
				return
			}
		}
	}()
}

type CacheStats struct {
	Hits    uint64
	Misses  uint64
	HitRate float64
	Entries int
}

func (m *Manager) Stats() CacheStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	m.byID.Range(func(_, _ any) bool {
		count++
		return true
	})

	total := m.hits + m.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(m.hits) / float64(total)
	}

	return CacheStats{
		Hits:    m.hits,
		Misses:  m.misses,
		HitRate: hitRate,
		Entries: count,
	}
}

func (m *Manager) recordHit() {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
	if m.onHit != nil {
		m.onHit()
	}
}

func (m *Manager) recordMiss() {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
	if m.onMiss != nil {
		m.onMiss()
	}
}

func copyEntry(e *models.DirectoryEntry) *models.DirectoryEntry {
	c := *e
	return &c
}
