// Package cache provides the in-memory TTL/LRU key-value store fronting
// provider reads. Concurrent misses on the same key share one producer via
// singleflight.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is applied when Set is called with ttl <= 0.
const DefaultTTL = 6 * time.Hour

const janitorInterval = 5 * time.Minute

type entry struct {
	key      string
	value    any
	checksum string
	expires  time.Time
	elem     *list.Element
}

// Cache is a TTL + LRU bounded store. The zero value is not usable; use New.
type Cache struct {
	logger  hclog.Logger
	maxSize int

	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List

	group  singleflight.Group
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a cache holding at most maxSize entries.
func New(logger hclog.Logger, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 4096
	}
	return &Cache{
		logger:  logger,
		maxSize: maxSize,
		entries: make(map[string]*entry),
		lru:     list.New(),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the expiry janitor.
func (c *Cache) Start() {
	c.wg.Add(1)
	go c.janitor()
}

// Stop terminates the janitor.
func (c *Cache) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// Get returns the value stored for key. When checksum is non-empty it must
// match the stored checksum or the entry is treated as stale.
func (c *Cache) Get(key, checksum string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(ent.expires) {
		c.removeLocked(ent)
		return nil, false
	}
	if checksum != "" && ent.checksum != checksum {
		c.removeLocked(ent)
		return nil, false
	}
	c.lru.MoveToFront(ent.elem)
	return ent.value, true
}

// Set stores value under key with the given ttl and optional checksum.
func (c *Cache) Set(key string, value any, ttl time.Duration, checksum string) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ent, ok := c.entries[key]; ok {
		ent.value = value
		ent.checksum = checksum
		ent.expires = time.Now().Add(ttl)
		c.lru.MoveToFront(ent.elem)
		return
	}
	ent := &entry{key: key, value: value, checksum: checksum, expires: time.Now().Add(ttl)}
	ent.elem = c.lru.PushFront(ent)
	c.entries[key] = ent
	for len(c.entries) > c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*entry))
	}
}

// Delete drops a single key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ent, ok := c.entries[key]; ok {
		c.removeLocked(ent)
	}
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.lru.Init()
}

// GetOrCompute returns the cached value for key or runs producer to fill
// it. Concurrent callers for the same missing key share a single producer
// invocation.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, producer func(ctx context.Context) (any, error)) (any, error) {
	if val, ok := c.Get(key, ""); ok {
		return val, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		// another waiter may have filled the entry already
		if val, ok := c.Get(key, ""); ok {
			return val, nil
		}
		val, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, val, ttl, "")
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) removeLocked(ent *entry) {
	c.lru.Remove(ent.elem)
	delete(c.entries, ent.key)
}

func (c *Cache) janitor() {
	defer c.wg.Done()
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, ent := range c.entries {
		if now.After(ent.expires) {
			c.removeLocked(ent)
			removed++
		}
	}
	if removed > 0 && c.logger != nil {
		c.logger.Debug("evicted expired cache entries", "count", removed)
	}
}
