package cache

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultTTL        = 30 * time.Minute
	DefaultSlidingTTL = 10 * time.Minute
)

type entry struct {
	value     []byte
	deadline  time.Time
	expiresAt time.Time
	tags      []string
}

type Memory struct {
	mu         sync.Mutex
	items      map[string]*entry
	tags       map[string]map[string]struct{}
	defaultTTL time.Duration
	sliding    time.Duration
	now        func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

type MemoryOption func(*Memory)

func WithDefaultTTL(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.defaultTTL = d
		}
	}
}

// WithSlidingTTL keeps hot entries alive for d after each read, never past their absolute deadline.
// Zero disables sliding expiry.
func WithSlidingTTL(d time.Duration) MemoryOption {
	return func(m *Memory) { m.sliding = d }
}

func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		items:      make(map[string]*entry),
		tags:       make(map[string]map[string]struct{}),
		defaultTTL: DefaultTTL,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Memory) nextExpiry(now, deadline time.Time) time.Time {
	if m.sliding <= 0 {
		return deadline
	}
	if s := now.Add(m.sliding); s.Before(deadline) {
		return s
	}
	return deadline
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	now := m.now()
	if !now.Before(e.expiresAt) {
		m.deleteLocked(key)
		return nil, false, nil
	}
	e.expiresAt = m.nextExpiry(now, e.deadline)
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	now := m.now()
	deadline := now.Add(ttl)

	buf := make([]byte, len(value))
	copy(buf, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteLocked(key)
	m.items[key] = &entry{
		value:     buf,
		deadline:  deadline,
		expiresAt: m.nextExpiry(now, deadline),
		tags:      append([]string(nil), tags...),
	}
	for _, t := range tags {
		set, ok := m.tags[t]
		if !ok {
			set = make(map[string]struct{})
			m.tags[t] = set
		}
		set[key] = struct{}{}
	}
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(key)
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.deleteLocked(key)
		return false, nil
	}
	return true, nil
}

func (m *Memory) InvalidateTag(_ context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.tags[tag] {
		m.deleteLocked(key)
	}
	delete(m.tags, tag)
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory) deleteLocked(key string) {
	e, ok := m.items[key]
	if !ok {
		return
	}
	delete(m.items, key)
	for _, t := range e.tags {
		if set, ok := m.tags[t]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(m.tags, t)
			}
		}
	}
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, e := range m.items {
		if !now.Before(e.expiresAt) {
			m.deleteLocked(k)
			n++
		}
	}
	return n
}

func (m *Memory) StartJanitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}
