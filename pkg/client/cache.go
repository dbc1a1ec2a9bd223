package client

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/cfgd/cfgd-go/pkg/storage"
)

const cacheCapacity = 10_000

// valueCache holds entries fetched from the server. A nil cache is
// disabled and every method is a no-op.
type valueCache struct {
	items *ttlcache.Cache[string, storage.Entry]
}

func newValueCache(ttl time.Duration) *valueCache {
	if ttl <= 0 {
		return nil
	}
	items := ttlcache.New[string, storage.Entry](
		ttlcache.WithTTL[string, storage.Entry](ttl),
		ttlcache.WithCapacity[string, storage.Entry](cacheCapacity),
		ttlcache.WithDisableTouchOnHit[string, storage.Entry](),
	)
	go items.Start()
	return &valueCache{items: items}
}

func (c *valueCache) get(key string) (storage.Entry, bool) {
	if c == nil {
		return storage.Entry{}, false
	}
	item := c.items.Get(key)
	if item == nil {
		return storage.Entry{}, false
	}
	return item.Value(), true
}

func (c *valueCache) put(entry storage.Entry) {
	if c == nil {
		return
	}
	c.items.Set(entry.Key, entry, ttlcache.DefaultTTL)
}

func (c *valueCache) drop(keys ...string) {
	if c == nil {
		return
	}
	for _, k := range keys {
		c.items.Delete(k)
	}
}

func (c *valueCache) dropAll() {
	if c == nil {
		return
	}
	c.items.DeleteAll()
}

func (c *valueCache) len() int {
	if c == nil {
		return 0
	}
	return c.items.Len()
}

func (c *valueCache) stop() {
	if c == nil {
		return
	}
	c.items.Stop()
}
