package filter

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/packetcap/go-dfilter/registry"
)

const defaultCacheSize = 256

// Cache a bounded map from filter text to compiled filters, for callers that
// compile the same few filters over and over. When full it is emptied and
// refilled rather than tracking the age of each entry. Safe for concurrent use.
type Cache struct {
	mu    sync.RWMutex
	reg   *registry.Registry
	opts  []Option
	items map[uint64]*Filter
	max   int
}

// NewCache a cache of at most max filters compiled against reg
func NewCache(reg *registry.Registry, max int, opts ...Option) *Cache {
	if max <= 0 {
		max = defaultCacheSize
	}
	return &Cache{
		reg:   reg,
		opts:  opts,
		items: make(map[uint64]*Filter, max),
		max:   max,
	}
}

func (c *Cache) get(key uint64, text string) (*Filter, bool) {
	c.mu.RLock()
	f, ok := c.items[key]
	c.mu.RUnlock()
	// hashes can collide, the text cannot
	if ok && f.Text() != text {
		return nil, false
	}
	return f, ok
}

func (c *Cache) put(key uint64, f *Filter) {
	c.mu.Lock()
	if len(c.items) >= c.max {
		c.items = make(map[uint64]*Filter, c.max)
	}
	c.items[key] = f
	c.mu.Unlock()
}

// Compile return the cached filter for text, compiling it on a miss. Failed
// compilations are not cached.
func (c *Cache) Compile(text string) (*Filter, error) {
	key := xxhash.Sum64String(text)
	if f, ok := c.get(key, text); ok {
		return f, nil
	}
	f, err := Compile(c.reg, text, c.opts...)
	if err != nil {
		return nil, err
	}
	c.put(key, f)
	return f, nil
}

// Len number of cached filters
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
