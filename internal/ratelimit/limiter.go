// Package ratelimit counts requests per client and endpoint over a trailing window.
package ratelimit

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

const DefaultWindow = time.Minute

type Rule struct {
	Prefix string
	Limit  int
}

func DefaultRules() []Rule {
	return []Rule{
		{Prefix: "/api/books/search", Limit: 30},
		{Prefix: "/api/books", Limit: 100},
		{Prefix: "/api/orders", Limit: 20},
		{Prefix: "/api/admin", Limit: 50},
		{Prefix: "/", Limit: 60},
	}
}

type bucketKey struct {
	client string
	prefix string
}

type Limiter struct {
	mu     sync.Mutex
	rules  []Rule
	window time.Duration
	hits   map[bucketKey][]time.Time
	now    func() time.Time
}

type Option func(*Limiter)

func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New sorts rules longest prefix first. A "/" rule is added with limit 60 when missing.
func New(rules []Rule, opts ...Option) *Limiter {
	rs := append([]Rule(nil), rules...)
	hasDefault := false
	for _, r := range rs {
		if r.Prefix == "/" {
			hasDefault = true
		}
	}
	if !hasDefault {
		rs = append(rs, Rule{Prefix: "/", Limit: 60})
	}
	sort.SliceStable(rs, func(i, j int) bool { return len(rs[i].Prefix) > len(rs[j].Prefix) })

	l := &Limiter{
		rules:  rs,
		window: DefaultWindow,
		hits:   make(map[bucketKey][]time.Time),
		now:    time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Limiter) Match(path string) Rule {
	for _, r := range l.rules {
		if r.Prefix == "/" || path == r.Prefix || strings.HasPrefix(path, strings.TrimSuffix(r.Prefix, "/")+"/") {
			return r
		}
	}
	return l.rules[len(l.rules)-1]
}

// IsExceeded records the request when it is under the limit. Rejected requests are
// not recorded, so a client hammering a limited endpoint does not extend its own ban.
// retryAfter is whole seconds until the oldest request in the window leaves it, at least 1s.
func (l *Limiter) IsExceeded(clientID, path string) (exceeded bool, retryAfter time.Duration, rule Rule) {
	rule = l.Match(path)
	key := bucketKey{client: clientID, prefix: rule.Prefix}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	ts := prune(l.hits[key], now.Add(-l.window))

	if len(ts) >= rule.Limit {
		l.hits[key] = ts
		wait := l.window - now.Sub(ts[0])
		secs := math.Ceil(wait.Seconds())
		if secs < 1 {
			secs = 1
		}
		return true, time.Duration(secs) * time.Second, rule
	}

	l.hits[key] = append(ts, now)
	return false, 0, rule
}

// prune drops timestamps at or before cutoff; ts is ascending.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0:0], ts[i:]...)
}

// Sweep forgets clients with no requests left in the window.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	n := 0
	for k, ts := range l.hits {
		ts = prune(ts, cutoff)
		if len(ts) == 0 {
			delete(l.hits, k)
			n++
			continue
		}
		l.hits[k] = ts
	}
	return n
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}
