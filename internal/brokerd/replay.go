package brokerd

import (
	"sync"
	"time"
)

// replayCache remembers request ids for one freshness horizon so a
// captured request cannot be replayed while its timestamp is still fresh.
type replayCache struct {
	mu      sync.Mutex
	horizon time.Duration
	seen    map[string]time.Time
}

func newReplayCache(horizon time.Duration) *replayCache {
	return &replayCache{
		horizon: horizon,
		seen:    make(map[string]time.Time),
	}
}

// remember records id and reports whether it was new. A duplicate within
// the horizon returns false.
func (r *replayCache) remember(id string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if at, ok := r.seen[id]; ok && now.Sub(at) < r.horizon {
		return false
	}
	r.seen[id] = now
	return true
}

// prune drops ids older than the horizon; their timestamps would fail the
// freshness check anyway.
func (r *replayCache) prune(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, at := range r.seen {
		if now.Sub(at) >= r.horizon {
			delete(r.seen, id)
		}
	}
}
