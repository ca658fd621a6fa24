package wiki

import (
	"testing"
	"time"
)

func TestListingCacheStartsEmpty(t *testing.T) {
	t.Parallel()

	cache := NewListingCache()

	if pages, ok := cache.Get(); ok || pages != nil {
		t.Fatalf("expected empty cache, got %v", pages)
	}
}

func TestListingCacheReturnsStoredPagesUntilExpiry(t *testing.T) {
	t.Parallel()

	current := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewListingCache()
	cache.now = func() time.Time { return current }

	cache.Set([]Page{{Name: "alpha"}})

	pages, ok := cache.Get()
	if !ok || len(pages) != 1 || pages[0].Name != "alpha" {
		t.Fatalf("expected cached listing, got %v (hit=%v)", pages, ok)
	}

	// A second before expiry the entry is still live.
	current = current.Add(listingCacheTTL - time.Second)
	if _, ok := cache.Get(); !ok {
		t.Fatalf("expected cache hit just before TTL")
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.Get(); ok {
		t.Fatalf("expected cache miss after TTL elapsed")
	}
}

func TestListingCacheInvalidateEvictsBeforeTTL(t *testing.T) {
	t.Parallel()

	current := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewListingCache()
	cache.now = func() time.Time { return current }

	cache.Set([]Page{{Name: "alpha"}})
	cache.Invalidate()

	if _, ok := cache.Get(); ok {
		t.Fatalf("expected miss after invalidation even inside the TTL window")
	}
}

func TestListingCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	cache := NewListingCache()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			cache.Set([]Page{{Name: "alpha"}})
			cache.Invalidate()
		}
	}()

	for i := 0; i < 1000; i++ {
		cache.Get()
	}

	<-done
}
