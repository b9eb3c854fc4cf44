// Package memcache is the in-memory tier that sits above the disk
// cache: a small LRU of recently used entries keyed by request URL,
// with optional TTL-based expiry.
package memcache

import (
	"container/list"
	"sync"
	"time"

	"github.com/briangreenhill/respcache/cache"
)

// Cache is a concurrency-safe in-memory LRU over cached entries.
// A map gives O(1) lookup and a doubly-linked list maintains recency
// order; front is most recently used.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	items      map[string]*list.Element
	lru        *list.List
}

type record struct {
	url      string
	entry    *cache.Entry
	storedAt time.Time
}

// New creates a cache holding at most maxEntries entries. maxEntries <= 0
// means unbounded. ttl <= 0 disables expiry; expired entries are removed
// lazily on access.
func New(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		items:      make(map[string]*list.Element),
		lru:        list.New(),
	}
}

// Get returns the entry for url, if present and fresh. Unlike the disk
// tier, reads do refresh recency here.
func (c *Cache) Get(url string) (*cache.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[url]
	if !ok {
		return nil, false
	}
	r := el.Value.(*record)
	if c.ttl > 0 && time.Since(r.storedAt) > c.ttl {
		c.removeElement(el)
		return nil, false
	}
	c.lru.MoveToFront(el)
	return r.entry, true
}

// Set stores or replaces the entry for url and marks it most recently
// used, evicting the least recently used entry if over capacity.
func (c *Cache) Set(url string, e *cache.Entry) {
	if e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[url]; ok {
		r := el.Value.(*record)
		r.entry = e
		r.storedAt = time.Now()
		c.lru.MoveToFront(el)
		return
	}

	el := c.lru.PushFront(&record{url: url, entry: e, storedAt: time.Now()})
	c.items[url] = el

	for c.maxEntries > 0 && len(c.items) > c.maxEntries {
		oldest := c.lru.Back()
		if oldest == nil {
			return
		}
		c.removeElement(oldest)
	}
}

// Remove deletes the entry for url if present.
func (c *Cache) Remove(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[url]; ok {
		c.removeElement(el)
	}
}

// Len returns the number of stored entries, including any that have
// expired but not yet been removed by a Get.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Purge drops all entries.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.lru.Init()
}

func (c *Cache) removeElement(el *list.Element) {
	r := el.Value.(*record)
	delete(c.items, r.url)
	c.lru.Remove(el)
}
