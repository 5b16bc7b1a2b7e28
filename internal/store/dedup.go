package store

import (
	"container/list"
	"sync"
	"time"
)

// Dedup is a tiny TTL-bound LRU for seen incident keys. It bounds the
// hot-path lookups; the durable record of seen IDs lives in Seen.
type Dedup struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	ll    *list.List               // most-recent at front
	items map[string]*list.Element // key -> element
}

type dedupEntry struct {
	key string
	exp time.Time
}

func NewDedup(maxKeys int, ttl time.Duration) *Dedup {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Dedup{cap: maxKeys, ttl: ttl, ll: list.New(), items: make(map[string]*list.Element, maxKeys)}
}

func (d *Dedup) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.items[key]
	if !ok {
		return false
	}
	en := el.Value.(dedupEntry)
	if time.Now().Before(en.exp) {
		d.ll.MoveToFront(el)
		return true
	}
	// expired
	d.ll.Remove(el)
	delete(d.items, key)
	return false
}

func (d *Dedup) Mark(key string) {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.items[key]; ok {
		en := el.Value.(dedupEntry)
		en.exp = now.Add(d.ttl)
		el.Value = en
		d.ll.MoveToFront(el)
		return
	}
	el := d.ll.PushFront(dedupEntry{key: key, exp: now.Add(d.ttl)})
	d.items[key] = el
	// evict over cap, then expired entries at the tail
	for d.ll.Len() > d.cap {
		d.dropTail()
	}
	for {
		t := d.ll.Back()
		if t == nil || now.Before(t.Value.(dedupEntry).exp) {
			break
		}
		d.dropTail()
	}
}

func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ll.Len()
}

func (d *Dedup) dropTail() {
	t := d.ll.Back()
	if t == nil {
		return
	}
	d.ll.Remove(t)
	delete(d.items, t.Value.(dedupEntry).key)
}
