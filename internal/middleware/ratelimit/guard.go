package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type guardEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Guard is a per-IP token bucket that absorbs bursts before the sliding window sees them.
type Guard struct {
	mu      sync.Mutex
	entries map[string]*guardEntry
	rate    rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

// NewGuard returns nil when rps is not positive; a nil Guard allows everything.
func NewGuard(rps float64, burst int) *Guard {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Guard{
		entries: make(map[string]*guardEntry),
		rate:    rate.Limit(rps),
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

func (g *Guard) Allow(ip string) bool {
	if g == nil {
		return true
	}
	g.mu.Lock()
	e, ok := g.entries[ip]
	if !ok {
		e = &guardEntry{lim: rate.NewLimiter(g.rate, g.burst)}
		g.entries[ip] = e
	}
	now := g.now()
	e.lastSeen = now
	g.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than ten minutes.
func (g *Guard) Sweep() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := g.now().Add(-g.idle)
	n := 0
	for ip, e := range g.entries {
		if e.lastSeen.Before(cutoff) {
			delete(g.entries, ip)
			n++
		}
	}
	return n
}
