package wiki

import (
	"sync"
	"time"
)

// listingCacheTTL bounds how long the full page listing may be served
// without rereading the database.
const listingCacheTTL = 30 * time.Minute

// ListingCache is a single-slot, TTL-bounded cache of the full page set.
// It is the only shared mutable state in the content store; a mutex guards
// concurrent Get/Set/Invalidate calls. The cache is populated lazily,
// invalidated on every page mutation, and never persisted across restarts.
type ListingCache struct {
	mu      sync.Mutex
	pages   []Page
	expires time.Time
	valid   bool
	now     func() time.Time
}

// NewListingCache constructs an empty listing cache.
func NewListingCache() *ListingCache {
	return &ListingCache{now: time.Now}
}

// Get returns the cached listing and true, or nil and false on a miss or
// after the entry has expired.
func (c *ListingCache) Get() ([]Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid || c.now().After(c.expires) {
		return nil, false
	}

	return c.pages, true
}

// Set replaces the cached listing and restarts the TTL clock.
func (c *ListingCache) Set(pages []Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pages = pages
	c.expires = c.now().Add(listingCacheTTL)
	c.valid = true
}

// Invalidate evicts the cached listing so the next read is guaranteed
// fresh relative to the mutation that triggered the eviction.
func (c *ListingCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pages = nil
	c.valid = false
}
