// Package dedup suppresses repeated fault notifications within a rolling window.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Cache records dedup keys for a bounded window.
type Cache interface {
	// Claim records key and reports true when it was not already present
	// within the window. A false result means the caller should suppress.
	Claim(ctx context.Context, key string) (bool, error)
	Close() error
}

const (
	defaultShards   = 16
	defaultCapacity = 10000
)

// MemoryCache is an in-process Cache split into independently locked shards.
// Each shard holds at most capacity/shards keys; the oldest write is evicted
// first when a shard is full. Shards own no goroutines: expired keys are
// dropped when their shard is next written.
type MemoryCache struct {
	shards []*shard
	window time.Duration
	now    func() time.Time
}

type shard struct {
	mu sync.Mutex
	// value is the expiry; write order equals expiry order for a fixed window
	lru *simplelru.LRU[string, time.Time]
}

func NewMemoryCache(capacity int, window time.Duration) *MemoryCache {
	return newMemoryCache(capacity, window, defaultShards)
}

func newMemoryCache(capacity int, window time.Duration, shards int) *MemoryCache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if shards < 1 {
		shards = 1
	}
	if capacity < shards {
		shards = capacity
	}
	perShard := capacity / shards

	c := &MemoryCache{shards: make([]*shard, shards), window: window, now: time.Now}
	for i := range c.shards {
		// size is always positive here, so NewLRU cannot fail
		lru, _ := simplelru.NewLRU[string, time.Time](perShard, nil)
		c.shards[i] = &shard{lru: lru}
	}
	return c
}

func (c *MemoryCache) Claim(_ context.Context, key string) (bool, error) {
	s := c.shards[xxhash.Sum64String(key)%uint64(len(c.shards))]
	now := c.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneExpired(now)
	// Peek does not refresh recency, so eviction order stays write order.
	if _, ok := s.lru.Peek(key); ok {
		return false, nil
	}
	s.lru.Add(key, now.Add(c.window))
	return true, nil
}

func (s *shard) pruneExpired(now time.Time) {
	for {
		_, expires, ok := s.lru.GetOldest()
		if !ok || now.Before(expires) {
			return
		}
		s.lru.RemoveOldest()
	}
}

// Len returns the number of live keys across all shards.
func (c *MemoryCache) Len() int {
	now := c.now()
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		s.pruneExpired(now)
		n += s.lru.Len()
		s.mu.Unlock()
	}
	return n
}

// Close drops every key. The cache holds no background goroutines, so
// nothing outlives it.
func (c *MemoryCache) Close() error {
	for _, s := range c.shards {
		s.mu.Lock()
		s.lru.Purge()
		s.mu.Unlock()
	}
	return nil
}
