package schema

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/danmuck/protolist/internal/observability"
)

// Cache is a read-through store of resolved message types keyed by schema
// identity. Each identity is loaded at most once at a time; concurrent callers
// for the same key share the load. With maxEntries <= 0 entries are never
// evicted and live as long as the cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]MessageType
	bounded *lru.Cache[string, MessageType]

	group singleflight.Group
}

func NewCache(maxEntries int) *Cache {
	c := &Cache{}
	if maxEntries > 0 {
		// lru.New only fails for a non-positive size.
		c.bounded, _ = lru.New[string, MessageType](maxEntries)
	} else {
		c.entries = make(map[string]MessageType)
	}
	return c
}

// GetOrLoad returns the cached entry for key, calling load on a miss.
// Failed loads are not cached.
func (c *Cache) GetOrLoad(key string, load func() (MessageType, error)) (MessageType, error) {
	if mt, ok := c.get(key); ok {
		observability.RecordSchemaCacheLookup(true)
		return mt, nil
	}
	observability.RecordSchemaCacheLookup(false)

	v, err, _ := c.group.Do(key, func() (any, error) {
		if mt, ok := c.get(key); ok {
			return mt, nil
		}
		mt, err := load()
		if err != nil {
			return nil, err
		}
		c.put(key, mt)
		return mt, nil
	})
	if err != nil {
		return MessageType{}, err
	}
	return v.(MessageType), nil
}

func (c *Cache) Len() int {
	if c.bounded != nil {
		return c.bounded.Len()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) get(key string) (MessageType, bool) {
	if c.bounded != nil {
		return c.bounded.Get(key)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	mt, ok := c.entries[key]
	return mt, ok
}

func (c *Cache) put(key string, mt MessageType) {
	if c.bounded != nil {
		c.bounded.Add(key, mt)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = mt
}
