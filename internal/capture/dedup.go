package capture

import (
	"sync"
	"time"
)

// DedupSet remembers payloads seen recently. Each entry expires on its own
// timer; Reset cancels every pending expiry.
type DedupSet struct {
	mu      sync.Mutex
	entries map[string]*dedupEntry
}

type dedupEntry struct {
	timer *time.Timer
}

// NewDedupSet returns an empty set.
func NewDedupSet() *DedupSet {
	return &DedupSet{entries: make(map[string]*dedupEntry)}
}

// Add inserts payload for ttl and reports whether it was absent.
func (d *DedupSet) Add(payload string, ttl time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[payload]; ok {
		return false
	}
	if ttl <= 0 {
		return true
	}
	entry := &dedupEntry{}
	entry.timer = time.AfterFunc(ttl, func() { d.expire(payload, entry) })
	d.entries[payload] = entry
	return true
}

func (d *DedupSet) expire(payload string, entry *dedupEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.entries[payload] == entry {
		delete(d.entries, payload)
	}
}

// Contains reports whether payload is currently suppressed.
func (d *DedupSet) Contains(payload string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[payload]
	return ok
}

// Len returns the number of suppressed payloads.
func (d *DedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Reset clears the set and stops every pending timer.
func (d *DedupSet) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, entry := range d.entries {
		entry.timer.Stop()
	}
	d.entries = make(map[string]*dedupEntry)
}
