package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Ledger with per-key expiry. Use it for development
// or single-instance deployments; claims do not survive a restart.
type Memory struct {
	mu      sync.Mutex
	entries map[Key]time.Time // key → expiry
	ttl     time.Duration
	now     func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewMemory returns a Memory ledger whose claims expire after ttl, and starts
// the background sweep.
func NewMemory(ttl time.Duration) *Memory {
	m := &Memory{
		entries:     make(map[Key]time.Time),
		ttl:         ttl,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go m.cleanup(time.Minute)
	return m
}

func (m *Memory) Claim(_ context.Context, key Key, _ []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.entries[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.entries[key] = now.Add(m.ttl)
	return true, nil
}

func (m *Memory) Release(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Close stops the background sweep.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stopCleanup) })
	return nil
}

func (m *Memory) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.removeExpired()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Memory) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, exp := range m.entries {
		if !now.Before(exp) {
			delete(m.entries, key)
		}
	}
}
