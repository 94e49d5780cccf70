package cache

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	namespace := "dataset-001"

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, namespace, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, namespace, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, namespace, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, namespace, "key2", []byte("value2"), time.Minute)

		err := cache.Delete(ctx, namespace, "key2")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, namespace, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, namespace, "expiring", []byte("temp"), 10*time.Millisecond)

		// Should be available immediately
		val, _ := cache.Get(ctx, namespace, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		// Wait for expiration
		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, namespace, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, namespace, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, namespace, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, namespace, "c", []byte("3"), time.Minute)

		// Access 'a' to make it recently used
		_, _ = smallCache.Get(ctx, namespace, "a")

		// Add 'd' - should evict 'b' (oldest accessed)
		_ = smallCache.Set(ctx, namespace, "d", []byte("4"), time.Minute)

		// 'b' should be evicted
		val, _ := smallCache.Get(ctx, namespace, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		// 'a' should still be there
		val, _ = smallCache.Get(ctx, namespace, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("NamespaceIsolation", func(t *testing.T) {
		ns1 := "dataset-001"
		ns2 := "dataset-002"

		_ = cache.Set(ctx, ns1, "report:COMP_0001", []byte("old-report"), time.Minute)
		_ = cache.Set(ctx, ns2, "report:COMP_0001", []byte("new-report"), time.Minute)

		val1, _ := cache.Get(ctx, ns1, "report:COMP_0001")
		val2, _ := cache.Get(ctx, ns2, "report:COMP_0001")

		if string(val1) != "old-report" {
			t.Errorf("expected 'old-report', got '%s'", string(val1))
		}
		if string(val2) != "new-report" {
			t.Errorf("expected 'new-report', got '%s'", string(val2))
		}
	})

	t.Run("RequiresNamespace", func(t *testing.T) {
		err := cache.Set(ctx, "", "key", []byte("value"), time.Minute)
		if err == nil {
			t.Error("expected error for empty namespace")
		}

		_, err = cache.Get(ctx, "", "key")
		if err == nil {
			t.Error("expected error for empty namespace")
		}
	})

	t.Run("ZeroTTLUsesDefault", func(t *testing.T) {
		_ = cache.Set(ctx, namespace, "default-ttl", []byte("v"), 0)
		val, _ := cache.Get(ctx, namespace, "default-ttl")
		if string(val) != "v" {
			t.Error("a zero TTL must not expire the entry immediately")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, namespace, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, namespace, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, namespace, "k", []byte("v"), time.Minute)

		err := testCache.Close()
		if err != nil {
			t.Errorf("Close failed: %v", err)
		}

		// Cache should be empty after close
		val, _ := testCache.Get(ctx, namespace, "k")
		if val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type:         "memory",
			LocalMaxSize: 100,
		}

		cache, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		_, ok := cache.(*LRUCache)
		if !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("MemoryTypeTTL", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 10, LocalTTL: 60})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if lru := c.(*LRUCache); lru.ttl != time.Minute {
			t.Errorf("expected a 1m default TTL, got %s", lru.ttl)
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type: "memcached",
		}

		_, err := New(cfg)
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestTwoPhaseCache(t *testing.T) {
	ctx := context.Background()
	l2 := NewLRUCache(100)
	c := newTwoPhase(NewLRUCache(100), l2, time.Minute)
	defer c.Close()

	t.Run("WritesThrough", func(t *testing.T) {
		if err := c.Set(ctx, "ds", "k", []byte("v"), time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if val, _ := l2.Get(ctx, "ds", "k"); string(val) != "v" {
			t.Error("expected the value in L2")
		}
	})

	t.Run("PopulatesL1FromL2", func(t *testing.T) {
		_ = l2.Set(ctx, "ds", "remote-only", []byte("r"), time.Hour)

		val, err := c.Get(ctx, "ds", "remote-only")
		if err != nil || string(val) != "r" {
			t.Fatalf("expected L2 hit, got %q %v", val, err)
		}
		if local, _ := c.local.Get(ctx, "ds", "remote-only"); string(local) != "r" {
			t.Error("expected L1 to be populated")
		}
	})

	t.Run("DeleteBoth", func(t *testing.T) {
		_ = c.Delete(ctx, "ds", "k")
		if val, _ := c.Get(ctx, "ds", "k"); val != nil {
			t.Error("expected nil after delete")
		}
		if val, _ := l2.Get(ctx, "ds", "k"); val != nil {
			t.Error("expected L2 delete")
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := c.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}
