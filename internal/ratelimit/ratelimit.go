// Package ratelimit bounds how often each (caller identity, operation) pair
// may be served within a fixed window. State lives in memory only; a service
// restart resets all counters.
package ratelimit

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// numShards spreads contention across independent locks. Power of two so
// shard selection is a mask.
const numShards = 16

type entry struct {
	windowStart time.Time
	count       int
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Limiter is a fixed-window counter per key, sharded by key hash.
// Every connection worker shares one Limiter.
type Limiter struct {
	window time.Duration
	limit  int
	shards [numShards]*shard

	// now is swapped in tests to step through windows deterministically
	now func() time.Time
}

// New creates a limiter allowing limit requests per window for each
// (identity, operation) pair.
func New(window time.Duration, limit int) *Limiter {
	l := &Limiter{
		window: window,
		limit:  limit,
		now:    time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return l
}

// SetNowFunc replaces the limiter's clock. Tests use it to step through
// windows deterministically; production code never calls it.
func (l *Limiter) SetNowFunc(now func() time.Time) {
	l.now = now
}

func (l *Limiter) shardFor(key string) *shard {
	return l.shards[xxhash.Sum64String(key)&(numShards-1)]
}

// Allow records one request for (identity, operation) and reports whether it
// fits the current window. The count resets once a full window has elapsed.
func (l *Limiter) Allow(identity, operation string) bool {
	key := identity + "\x00" + operation
	now := l.now()

	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.Sub(e.windowStart) >= l.window {
		s.entries[key] = &entry{windowStart: now, count: 1}
		return true
	}

	if e.count >= l.limit {
		return false
	}
	e.count++
	return true
}

// Window returns the configured window duration.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Limit returns the configured per-window budget.
func (l *Limiter) Limit() int {
	return l.limit
}

// PruneIdle drops entries whose window ended more than maxIdle ago, keeping
// the table bounded over long uptimes. The service runs this on a timer.
func (l *Limiter) PruneIdle(maxIdle time.Duration) int {
	now := l.now()
	pruned := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for key, e := range s.entries {
			if now.Sub(e.windowStart) >= l.window+maxIdle {
				delete(s.entries, key)
				pruned++
			}
		}
		s.mu.Unlock()
	}
	return pruned
}
