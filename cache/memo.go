package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// Memo memoizes values by key for a bounded time. A zero TTL keeps entries
// for the life of the process. Stored values are never mutated; callers
// must treat what they get back as read-only.
type Memo[V any] struct {
	ttl       time.Duration
	now       func() time.Time
	mu        sync.RWMutex
	items     map[string]entry[V]
	lastSweep time.Time
	group     singleflight.Group
}

func NewMemo[V any](ttl time.Duration) *Memo[V] {
	return &Memo[V]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry[V]),
	}
}

// SetClock replaces the time source, for tests.
func (m *Memo[V]) SetClock(now func() time.Time) {
	m.now = now
}

// Fresh reports whether a value fetched at fetchedAt is still usable at now.
func Fresh(fetchedAt, now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return true
	}
	return now.Sub(fetchedAt) < ttl
}

// Lookup returns the cached value for key if it is still fresh at now.
func (m *Memo[V]) Lookup(key string, now time.Time) (V, bool) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || !Fresh(e.fetchedAt, now, m.ttl) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Get returns the cached value or runs fetch. Concurrent misses on the same
// key share one fetch. Errors are not cached.
func (m *Memo[V]) Get(ctx context.Context, key string, fetch func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := m.Lookup(key, m.now()); ok {
		return v, nil
	}

	res, err, _ := m.group.Do(key, func() (any, error) {
		if v, ok := m.Lookup(key, m.now()); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		m.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Set stores value under key. At most once per ttl it also drops every
// expired entry, so keys that are never read again do not pile up.
func (m *Memo[V]) Set(key string, value V) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = entry[V]{value: value, fetchedAt: now}
	if m.ttl > 0 && now.Sub(m.lastSweep) >= m.ttl {
		m.sweepLocked(now)
	}
}

func (m *Memo[V]) sweepLocked(now time.Time) {
	for k, e := range m.items {
		if !Fresh(e.fetchedAt, now, m.ttl) {
			delete(m.items, k)
		}
	}
	m.lastSweep = now
}

func (m *Memo[V]) Invalidate(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

func (m *Memo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
