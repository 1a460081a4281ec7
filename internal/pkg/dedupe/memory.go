// internal/pkg/dedupe/memory.go
package dedupe

import (
	"context"
	"sync"
	"time"
)

// Memory is a per-instance Cache used when Redis is not configured.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	return &Memory{
		ttl:     ttl,
		max:     maxEntries,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *Memory) Seen(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expires, ok := m.entries[id]
	if !ok {
		return false, nil
	}
	if m.now().After(expires) {
		delete(m.entries, id)
		return false, nil
	}
	return true, nil
}

func (m *Memory) Mark(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.max > 0 && len(m.entries) >= m.max {
		m.evict(now)
	}
	m.entries[id] = now.Add(m.ttl)
	return nil
}

// evict drops expired entries, and everything if that frees nothing.
// Caller holds mu.
func (m *Memory) evict(now time.Time) {
	for id, expires := range m.entries {
		if now.After(expires) {
			delete(m.entries, id)
		}
	}
	if len(m.entries) >= m.max {
		clear(m.entries)
	}
}
