package bridge

import (
	"sync"
	"time"
)

// LearningTable is the two-level (interface name -> MAC -> last-seen)
// mapping described in spec §3/§4.1. Lookup iterates the outer map, which
// is fine because the number of participating interfaces is small (tens).
//
// Grounded on original_source/include/networking/linklayer/MacTable.h for
// the per-interface bucketing, and on the teacher's switch.go
// (learnMAC/cleanupStaleMACs) for the observe/expire shape.
type LearningTable struct {
	mu      sync.Mutex
	byIface map[string]map[PackedMAC]time.Time
}

// NewLearningTable returns an empty table.
func NewLearningTable() *LearningTable {
	return &LearningTable{byIface: make(map[string]map[PackedMAC]time.Time)}
}

// Observe records that mac was seen on name at now, refreshing the
// timestamp if already present. Only the named interface's bucket is
// touched; per §4.1's mobility tie-break, a stale entry on another
// interface is left for Expire to clean up naturally.
func (t *LearningTable) Observe(name string, mac PackedMAC, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bucket, ok := t.byIface[name]
	if !ok {
		bucket = make(map[PackedMAC]time.Time)
		t.byIface[name] = bucket
	}
	bucket[mac] = now
}

// Lookup returns the interface currently associated with mac, skipping the
// ingress interface's own bucket (§4.2 step 5: "search all interface
// buckets other than ingress"). If more than one non-ingress bucket
// contains mac — between a mobility event and the stale entry's eviction —
// the bucket with the most recent timestamp wins, so the interface the MAC
// was last seen on is returned. Among equal timestamps the choice is not
// defined.
func (t *LearningTable) Lookup(mac PackedMAC, ingress string) (name string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var newest time.Time
	for iface, bucket := range t.byIface {
		if iface == ingress {
			continue
		}
		if seen, found := bucket[mac]; found && (!ok || seen.After(newest)) {
			name, ok, newest = iface, true, seen
		}
	}
	return name, ok
}

// Expire removes every (name, mac) entry whose timestamp is older than
// now-timeout. Called opportunistically on each switching decision rather
// than on a fixed schedule (§4.1).
func (t *LearningTable) Expire(now time.Time, timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-timeout)
	for iface, bucket := range t.byIface {
		for mac, seen := range bucket {
			if seen.Before(cutoff) {
				delete(bucket, mac)
			}
		}
		if len(bucket) == 0 {
			delete(t.byIface, iface)
		}
	}
}

// Purge removes every entry on the given interface, used when an interface
// entry is destroyed (§3: "Destruction ... Also calls
// LearningTable.purge(name)").
func (t *LearningTable) Purge(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byIface, name)
}

// Size returns the total number of learned (interface, mac) entries, used
// for statistics reporting.
func (t *LearningTable) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, bucket := range t.byIface {
		n += len(bucket)
	}
	return n
}
