// Package cache provides the tiered content cache for browser sessions:
// separate LRU+TTL tiers for DOM snapshots, extracted/API content, and
// screenshots, with transparent compression of large entries.
package cache

import (
	"container/list"
	"time"
)

type entry struct {
	key        string
	data       []byte
	compressed bool
	rawSize    int
	storedAt   time.Time
}

// lru is a size-bounded LRU map with a uniform TTL. An entry whose age
// equals the TTL is already expired. Not safe for concurrent use; the
// ContentCache holds the lock.
type lru struct {
	maxEntries int
	ttl        time.Duration
	order      *list.List // front = most recent
	items      map[string]*list.Element

	evictions int
	now       func() time.Time
}

func newLRU(maxEntries int, ttl time.Duration) *lru {
	return &lru{
		maxEntries: maxEntries,
		ttl:        ttl,
		order:      list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

func (l *lru) get(key string) (*entry, bool) {
	el, ok := l.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if l.now().Sub(e.storedAt) >= l.ttl {
		l.remove(el)
		l.evictions++
		return nil, false
	}
	l.order.MoveToFront(el)
	return e, true
}

func (l *lru) put(e *entry) {
	if el, ok := l.items[e.key]; ok {
		el.Value = e
		l.order.MoveToFront(el)
		return
	}
	l.items[e.key] = l.order.PushFront(e)
	for l.order.Len() > l.maxEntries {
		oldest := l.order.Back()
		l.remove(oldest)
		l.evictions++
	}
}

func (l *lru) remove(el *list.Element) {
	e := el.Value.(*entry)
	l.order.Remove(el)
	delete(l.items, e.key)
}

func (l *lru) delete(key string) bool {
	el, ok := l.items[key]
	if !ok {
		return false
	}
	l.remove(el)
	return true
}

func (l *lru) clear() {
	l.order.Init()
	l.items = make(map[string]*list.Element)
}

func (l *lru) len() int {
	return l.order.Len()
}

// totalBytes sums stored (possibly compressed) entry sizes.
func (l *lru) totalBytes() int {
	total := 0
	for el := l.order.Front(); el != nil; el = el.Next() {
		total += len(el.Value.(*entry).data)
	}
	return total
}
