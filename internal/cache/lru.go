package cache

import (
	"container/list"
	"time"
)

// memoryEntry is a value resident in the memory tier.
type memoryEntry struct {
	key       string
	value     []byte
	createdAt time.Time
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// lruMap is a bounded map with strict least-recently-used eviction.
// Not safe for concurrent use; the owning Cache holds the lock.
type lruMap struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

func newLRUMap(capacity int) *lruMap {
	return &lruMap{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// get returns the entry and marks it most recently used.
func (m *lruMap) get(key string) (*memoryEntry, bool) {
	el, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	m.order.MoveToFront(el)
	return el.Value.(*memoryEntry), true
}

// peek returns the entry without touching recency.
func (m *lruMap) peek(key string) (*memoryEntry, bool) {
	el, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*memoryEntry), true
}

// put inserts or replaces an entry. Returns the key evicted to make room,
// or "" if nothing was evicted.
func (m *lruMap) put(e *memoryEntry) (evicted string) {
	if el, ok := m.entries[e.key]; ok {
		el.Value = e
		m.order.MoveToFront(el)
		return ""
	}

	if m.order.Len() >= m.capacity {
		oldest := m.order.Back()
		if oldest != nil {
			old := oldest.Value.(*memoryEntry)
			m.order.Remove(oldest)
			delete(m.entries, old.key)
			evicted = old.key
		}
	}

	m.entries[e.key] = m.order.PushFront(e)
	return evicted
}

// remove deletes an entry if present.
func (m *lruMap) remove(key string) bool {
	el, ok := m.entries[key]
	if !ok {
		return false
	}
	m.order.Remove(el)
	delete(m.entries, key)
	return true
}

// removeExpired deletes all entries past their expiry, returning the count.
func (m *lruMap) removeExpired(now time.Time) int {
	var removed int
	for el := m.order.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*memoryEntry)
		if e.expired(now) {
			m.order.Remove(el)
			delete(m.entries, e.key)
			removed++
		}
		el = prev
	}
	return removed
}

func (m *lruMap) len() int { return m.order.Len() }

func (m *lruMap) clear() {
	m.entries = make(map[string]*list.Element, m.capacity)
	m.order.Init()
}
