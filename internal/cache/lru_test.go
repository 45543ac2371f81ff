package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[string](4, time.Minute)

	if _, found := c.Get("missing"); found {
		t.Error("Get(missing) = found")
	}

	c.Set("k", "v1")
	if v, found := c.Get("k"); !found || v != "v1" {
		t.Errorf("Get(k) = %q, %v", v, found)
	}

	c.Set("k", "v2")
	if v, _ := c.Get("k"); v != "v2" {
		t.Errorf("Get(k) after overwrite = %q, want v2", v)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recently used
	c.Set("c", 3)

	if _, found := c.Get("b"); found {
		t.Error("least recently used entry was not evicted")
	}
	if _, found := c.Get("a"); !found {
		t.Error("recently used entry was evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)

	c.Set("k", 1)
	time.Sleep(20 * time.Millisecond)

	if _, found := c.Get("k"); found {
		t.Error("expired entry still served")
	}
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("report:7:%d", i), i)
	}
	c.Set("report:8:0", 9)

	removed := c.DeletePrefix("report:7:")
	if removed != 3 {
		t.Errorf("DeletePrefix() = %d, want 3", removed)
	}
	if _, found := c.Get("report:8:0"); !found {
		t.Error("entry outside the prefix was removed")
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	c.Set("fresh", 3)

	// CleanExpired only counts entries that were already expired.
	if removed := c.CleanExpired(); removed != 2 {
		t.Errorf("CleanExpired() = %d, want 2", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size() after clean = %d, want 1", c.Size())
	}
}
