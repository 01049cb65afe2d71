package symbols

import (
	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize is the number of addresses a Cached resolver remembers
// unless configured otherwise.
const DefaultCacheSize = 256

type cacheEntry struct {
	info Info
	ok   bool
}

// Cached is a Resolver remembering the results of the most recently
// resolved addresses, failed resolutions included.
type Cached struct {
	r     Resolver
	cache *lru.Cache
}

// NewCached wraps r with a cache of the given size.
func NewCached(r Resolver, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cached{r: r, cache: cache}, nil
}

// Resolve implements Resolver.Resolve.
func (c *Cached) Resolve(addr uint32) (Info, bool) {
	if v, ok := c.cache.Get(addr); ok {
		e := v.(cacheEntry)
		return e.info, e.ok
	}
	info, ok := c.r.Resolve(addr)
	c.cache.Add(addr, cacheEntry{info, ok})
	return info, ok
}

// Lookup implements Resolver.Lookup.
func (c *Cached) Lookup(name string) (uint32, bool) {
	return c.r.Lookup(name)
}
