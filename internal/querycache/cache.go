// Package querycache memoizes rough viewport queries.
//
// Results are keyed by layer, rectangle and visibility flag and tagged with
// the generation of the index that produced them. A lookup with a newer
// generation is a miss, so any index mutation invalidates that layer's
// entries without an explicit purge.
package querycache

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/strata/annotation"
	"github.com/gogpu/strata/geom"
	"github.com/gogpu/strata/layer"
)

const (
	// shardCount must be a power of 2.
	shardCount = 16
	shardMask  = shardCount - 1

	// DefaultCapacity is the default number of entries per shard.
	DefaultCapacity = 64
)

// Key identifies one rough query.
type Key struct {
	Layer       layer.ID
	Rect        geom.Rect
	VisibleOnly bool
}

func (k Key) hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write(k.Layer[:]) // fnv.Write never returns an error
	var buf [33]byte
	binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(k.Rect.MinX))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(k.Rect.MinY))
	binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(k.Rect.MaxX))
	binary.LittleEndian.PutUint64(buf[24:], math.Float64bits(k.Rect.MaxY))
	if k.VisibleOnly {
		buf[32] = 1
	}
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

type entry struct {
	gen  uint64
	objs []annotation.Object
	node *node
}

type shard struct {
	mu      sync.Mutex
	entries map[Key]*entry
	lru     recency
}

// Cache is a sharded LRU of query results. It is safe for concurrent use.
type Cache struct {
	shards   [shardCount]*shard
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache holding up to capacity entries per shard.
// If capacity <= 0, DefaultCapacity is used.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{capacity: capacity}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[Key]*entry)}
	}
	return c
}

func (c *Cache) shard(k Key) *shard {
	return c.shards[k.hash()&shardMask]
}

// Get returns the cached result for k if it was stored at generation gen.
// Entries from another generation are dropped.
func (c *Cache) Get(k Key, gen uint64) ([]annotation.Object, bool) {
	s := c.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[k]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if e.gen != gen {
		s.lru.unlink(e.node)
		delete(s.entries, k)
		c.misses.Add(1)
		return nil, false
	}
	s.lru.touch(e.node)
	c.hits.Add(1)
	return slices.Clone(e.objs), true
}

// Put stores objs for k at generation gen, evicting the least recently used
// entries of the shard when it is full.
func (c *Cache) Put(k Key, gen uint64, objs []annotation.Object) {
	s := c.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[k]; ok {
		e.gen, e.objs = gen, slices.Clone(objs)
		s.lru.touch(e.node)
		return
	}
	for s.lru.n >= c.capacity {
		old, ok := s.lru.popBack()
		if !ok {
			break
		}
		delete(s.entries, old)
		c.evictions.Add(1)
	}
	s.entries[k] = &entry{gen: gen, objs: slices.Clone(objs), node: s.lru.pushFront(k)}
}

// Purge drops every entry for layer l.
func (c *Cache) Purge(l layer.ID) int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if k.Layer == l {
				s.lru.unlink(e.node)
				delete(s.entries, k)
				n++
			}
		}
		s.mu.Unlock()
	}
	return n
}

// Clear removes all entries.
func (c *Cache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		clear(s.entries)
		s.lru.reset()
		s.mu.Unlock()
	}
}

// Len returns the number of entries across all shards.
func (c *Cache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

// Stats holds cache counters.
type Stats struct {
	Len       int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		Len:       c.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
