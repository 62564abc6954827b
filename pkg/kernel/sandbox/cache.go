package sandbox

import (
	"fmt"
	"hash/maphash"
	"sync"
	"time"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

var resourceHashSeed = maphash.MakeSeed()

// CacheTTL is how long a cached permission decision stays valid.
const CacheTTL = 5 * time.Second

// cacheKey is (pid, hash(resource), action).
type cacheKey struct {
	pid      types.Pid
	resource uint64
	action   Action
}

func hashResource(r Resource) uint64 {
	s := fmt.Sprintf("%d|%s|%s|%d|%s|%d|%s", r.Tag, r.Path, r.Host, r.Port, r.IpcChannel, r.Pid, r.System)
	return maphash.String(resourceHashSeed, s)
}

type cacheEntry struct {
	response  PermissionResponse
	expiresAt time.Time
}

// Cache is a fixed-size associative store keyed by (pid, hash(resource),
// action). Eviction when full is evict-oldest-by-insertion: a ring
// index wraps and overwrites the slot it last used, which is "any one
// entry" per spec.md's Open Question but deterministic enough to test.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[cacheKey]*cacheEntry
	order    []cacheKey // insertion ring, length == capacity once full
	next     int

	hits   uint64
	misses uint64
}

// NewCache builds a Cache holding up to capacity entries.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Cache{capacity: capacity, entries: make(map[cacheKey]*cacheEntry, capacity)}
}

func keyFor(req PermissionRequest) cacheKey {
	return cacheKey{pid: req.Pid, resource: hashResource(req.Resource), action: req.Action}
}

// Get returns the cached response for req, if present and unexpired.
func (c *Cache) Get(req PermissionRequest) (PermissionResponse, bool) {
	k := keyFor(req)
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		c.misses++
		return PermissionResponse{}, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, k)
		c.misses++
		return PermissionResponse{}, false
	}
	c.hits++
	resp := e.response
	resp.Cached = true
	return resp, true
}

// Put inserts resp for req, evicting the oldest-inserted slot if full.
func (c *Cache) Put(req PermissionRequest, resp PermissionResponse) {
	k := keyFor(req)
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[k]; !exists {
		if len(c.order) < c.capacity {
			c.order = append(c.order, k)
		} else {
			evict := c.order[c.next]
			delete(c.entries, evict)
			c.order[c.next] = k
			c.next = (c.next + 1) % c.capacity
		}
	}
	c.entries[k] = &cacheEntry{response: resp, expiresAt: time.Now().Add(CacheTTL)}
}

// InvalidatePid drops every cached entry for pid, returning the count
// removed. Used by the process manager's resource orchestrator on
// termination so a recycled Pid never inherits a stale cached decision.
func (c *Cache) InvalidatePid(pid types.Pid) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if k.pid == pid {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// HitRate returns hits/(hits+misses), 0 if no lookups have occurred.
func (c *Cache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}
