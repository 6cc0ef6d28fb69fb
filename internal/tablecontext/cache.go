package tablecontext

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// Cache memoizes rendered blocks by request key. Concurrent misses for the
// same key share one build; distinct keys never wait on each other.
type Cache struct {
	items *ttlcache.Cache[string, *Block]
	group singleflight.Group

	// gen is bumped by Invalidate. Builds started under an older generation
	// are neither joined nor stored by later callers.
	gen atomic.Uint64
}

// NewCache creates a cache. A zero ttl keeps entries until Invalidate.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	return &Cache{
		items: ttlcache.New(
			ttlcache.WithTTL[string, *Block](ttl),
			ttlcache.WithDisableTouchOnHit[string, *Block](),
		),
	}
}

// get returns the cached block for key, if present.
func (c *Cache) get(key string) (*Block, bool) {
	item := c.items.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// load returns the cached block for key or runs build once for all
// concurrent callers. The build runs detached from any single caller's
// cancellation; each caller stops waiting when its own ctx is done.
// Failed builds are not stored.
func (c *Cache) load(ctx context.Context, key string, build func(context.Context) (*Block, error)) (*Block, error) {
	gen := c.gen.Load()
	flightKey := strconv.FormatUint(gen, 10) + "\x00" + key
	buildCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(flightKey, func() (any, error) {
		if block, ok := c.get(key); ok {
			return block, nil
		}
		block, err := build(buildCtx)
		if err != nil {
			return nil, err
		}
		if c.gen.Load() == gen {
			c.items.Set(key, block, ttlcache.DefaultTTL)
		}
		return block, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Block), nil
	}
}

// Invalidate drops every cached block. Builds already in flight still
// answer their callers but are not cached.
func (c *Cache) Invalidate() {
	c.gen.Add(1)
	c.items.DeleteAll()
}

// Len returns the number of cached blocks.
func (c *Cache) Len() int {
	return c.items.Len()
}

func cacheKey(identifier, description string, enrichment *Enrichment) string {
	parts := []string{identifier, description, "", ""}
	if enrichment != nil {
		parts[2] = enrichment.Query
		parts[3] = enrichment.Column
	}
	return strings.Join(parts, "\x00")
}
