package fetch

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(72 * time.Hour)
	cache.now = func() time.Time { return now }

	cache.Set(ctx, "https://lu.ma/a", []byte("a"))
	cache.Set(ctx, "https://lu.ma/b", []byte("b"))

	if body, ok := cache.Get(ctx, "https://lu.ma/a"); !ok || string(body) != "a" {
		t.Errorf("Get() = %q, %v; expected cached body", body, ok)
	}
	if _, ok := cache.Get(ctx, "https://lu.ma/missing"); ok {
		t.Error("expected miss for unknown URL")
	}

	now = now.Add(73 * time.Hour)
	if _, ok := cache.Get(ctx, "https://lu.ma/a"); ok {
		t.Error("expected expired entry to miss")
	}
	if cache.Size() != 1 {
		t.Errorf("Size() = %d, expected 1 after expired Get", cache.Size())
	}
	if removed := cache.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, expected 1", removed)
	}
	if cache.Size() != 0 {
		t.Errorf("Size() = %d, expected 0", cache.Size())
	}
}

func TestMemoryCacheDefaultTTL(t *testing.T) {
	if c := NewMemoryCache(0); c.ttl != DefaultCacheTTL {
		t.Errorf("ttl = %v, expected %v", c.ttl, DefaultCacheTTL)
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("https://lu.ma/a")
	b := CacheKey("https://lu.ma/b")

	if a == b {
		t.Error("different URLs should produce different keys")
	}
	if !strings.HasPrefix(a, redisKeyPrefix) {
		t.Errorf("key %q missing prefix %q", a, redisKeyPrefix)
	}
	if a != CacheKey("https://lu.ma/a") {
		t.Error("CacheKey should be deterministic")
	}
}
