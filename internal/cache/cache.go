// Package cache provides explicit key → (value, expiry) caches for data the
// pipeline fetches repeatedly, such as fulfillment print-area metadata.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores values with an absolute expiry. Get reports false for
// missing and expired keys.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, time.Time, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
}

type entry[V any] struct {
	value   V
	expires time.Time
}

// Memory is a process-local Cache. Expired entries are dropped lazily on
// read.
type Memory[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	now     func() time.Time
}

func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{entries: make(map[string]entry[V]), now: time.Now}
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero V
	e, ok := m.entries[key]
	if !ok {
		return zero, time.Time{}, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return zero, time.Time{}, false
	}
	return e.value, e.expires, true
}

func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry[V]{value: value, expires: m.now().Add(ttl)}
}

func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
