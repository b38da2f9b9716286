package pricebook

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// PriceCache is a TTL-based in-memory cache with stale-while-revalidate for
// base prices. Uses sync.Map for lock-free reads on the hot path.
type PriceCache struct {
	store sync.Map // map[string]*priceCacheEntry
	ttl   time.Duration
}

type priceCacheEntry struct {
	price      float64
	found      bool // false = negative cache (no base price)
	expiresAt  time.Time
	refreshing atomic.Bool
}

// CacheGetResult holds the result of a cache lookup.
type CacheGetResult struct {
	Price        float64
	Found        bool // product has a base price
	Hit          bool // a value was found (fresh or stale)
	NeedsRefresh bool // expired; caller should refresh in background
}

// NewPriceCache creates a cache with the given TTL.
func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{ttl: ttl}
}

func cacheKey(productID int) string {
	return strconv.Itoa(productID)
}

// Get performs a non-blocking cache lookup.
// Returns stale entries with NeedsRefresh=true when expired.
func (c *PriceCache) Get(productID int) CacheGetResult {
	val, ok := c.store.Load(cacheKey(productID))
	if !ok {
		return CacheGetResult{}
	}

	entry := val.(*priceCacheEntry)
	if time.Now().Before(entry.expiresAt) {
		return CacheGetResult{Price: entry.price, Found: entry.found, Hit: true}
	}

	// only one goroutine wins the CAS
	needsRefresh := entry.refreshing.CompareAndSwap(false, true)
	return CacheGetResult{
		Price:        entry.price,
		Found:        entry.found,
		Hit:          true,
		NeedsRefresh: needsRefresh,
	}
}

// Set stores a base price with a fresh TTL. found=false stores a negative entry.
func (c *PriceCache) Set(productID int, price float64, found bool) {
	c.store.Store(cacheKey(productID), &priceCacheEntry{
		price:     price,
		found:     found,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// ClearRefreshing releases the refresh claim taken by Get, so the next
// stale read schedules another refresh.
func (c *PriceCache) ClearRefreshing(productID int) {
	if val, ok := c.store.Load(cacheKey(productID)); ok {
		val.(*priceCacheEntry).refreshing.Store(false)
	}
}

// Delete removes an entry from the cache.
func (c *PriceCache) Delete(productID int) {
	c.store.Delete(cacheKey(productID))
}
