// Package dedup suppresses replayed messages by ID within a TTL window.
// Sensor publishers retry with the same message ID, so the ingest path runs
// every payload through a Deduper before touching the model.
package dedup

import (
	"sync"
	"time"
)

type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
}

// New builds a Deduper. Non-positive ttl defaults to 10 minutes, non-positive
// max to 10000 tracked IDs.
func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time, max)}
}

// ShouldProcess reports whether this ID is new within the TTL window and
// marks it seen. Empty IDs always pass.
func (d *Deduper) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		d.sweep(now)
	}
	return true
}

// sweep drops expired entries until the map is back under the cap. Called
// with the lock held.
func (d *Deduper) sweep(now time.Time) {
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
		if len(d.seen) <= d.max {
			return
		}
	}
}
