package client

import (
	"github.com/coocood/freecache"

	"github.com/janelia-flyem/libdvid-go/dvid"
)

// valueCache holds keyvalue values fetched through a connection.
type valueCache struct {
	cache *freecache.Cache
}

func newValueCache(sizeBytes int) *valueCache {
	return &valueCache{cache: freecache.NewCache(sizeBytes)}
}

func cacheKey(uuid dvid.UUID, name dvid.InstanceName, key string) []byte {
	b := make([]byte, 0, len(uuid)+len(name)+len(key)+2)
	b = append(b, uuid...)
	b = append(b, 0)
	b = append(b, name...)
	b = append(b, 0)
	return append(b, key...)
}

func (c *valueCache) get(uuid dvid.UUID, name dvid.InstanceName, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	value, err := c.cache.Get(cacheKey(uuid, name, key))
	if err != nil {
		return nil, false
	}
	return value, true
}

func (c *valueCache) set(uuid dvid.UUID, name dvid.InstanceName, key string, value []byte) {
	if c == nil {
		return
	}
	if err := c.cache.Set(cacheKey(uuid, name, key), value, 0); err != nil {
		// values larger than 1/1024 of the cache are not stored
		dvid.Debugf("not caching value for key %q of %q: %v\n", key, name, err)
	}
}

func (c *valueCache) del(uuid dvid.UUID, name dvid.InstanceName, key string) {
	if c == nil {
		return
	}
	c.cache.Del(cacheKey(uuid, name, key))
}

// clear drops every cached value.  Writes use it when the node can't be identified.
func (c *valueCache) clear() {
	if c == nil {
		return
	}
	c.cache.Clear()
}

// CacheStats returns the hit and miss counts of the value cache, or zeros if disabled.
func (c *Connection) CacheStats() (hits, misses int64) {
	if c.cache == nil {
		return 0, 0
	}
	return c.cache.cache.HitCount(), c.cache.cache.MissCount()
}
