package service

import "sync"

// highWaterMap tracks the advisory per-group max known inbox number. The value
// is soft: staleness is fine and self-corrects when a fresher TopInbox comes
// back from a cache read, but it only ever moves up. Owned by the Distributor
// instance, never process-global.
type highWaterMap struct {
	mu  sync.Mutex
	max map[string]int
}

func newHighWaterMap() *highWaterMap {
	return &highWaterMap{max: make(map[string]int)}
}

// Get returns the high-water mark for the group, 0 on first reference.
func (m *highWaterMap) Get(groupID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max[groupID]
}

// Observe raises the group's mark to n if n is higher. Lower values are ignored.
func (m *highWaterMap) Observe(groupID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > m.max[groupID] {
		m.max[groupID] = n
	}
}
