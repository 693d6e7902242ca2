package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("NewRedisCacheWithClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCacheBasicOps(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}

	// Missing keys report empty without error.
	got, err = c.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if got != "" {
		t.Errorf("Get missing = %q, want empty", got)
	}

	n, err := c.Exists(ctx, "k", "missing")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if n != 1 {
		t.Errorf("Exists = %d, want 1", n)
	}

	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if got, _ := c.Get(ctx, "k"); got != "" {
		t.Errorf("Get after Del = %q, want empty", got)
	}
}

func TestRedisCacheSetNX(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "once", "1", time.Minute)
	if err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	if !ok {
		t.Fatal("first SetNX should succeed")
	}

	ok, err = c.SetNX(ctx, "once", "2", time.Minute)
	if err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	if ok {
		t.Error("second SetNX should report key already set")
	}
}

func TestRedisCacheIncr(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.Incr(ctx, "counter")
		if err != nil {
			t.Fatalf("Incr: %v", err)
		}
		if got != want {
			t.Errorf("Incr = %d, want %d", got, want)
		}
	}

	got, err := c.IncrBy(ctx, "counter", 7)
	if err != nil {
		t.Fatalf("IncrBy: %v", err)
	}
	if got != 10 {
		t.Errorf("IncrBy = %d, want 10", got)
	}
}

func TestGetWithCached(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name string `json:"name"`
	}

	c := newTestCache(t)
	ctx := context.Background()

	fetches := 0
	fetch := func(ctx context.Context) (*payload, error) {
		fetches++
		return &payload{Name: "stored"}, nil
	}

	isEmpty := func(p *payload) bool { return p == nil }
	marshal := func(p *payload) string {
		b, _ := json.Marshal(p)
		return string(b)
	}
	unmarshal := func(s string) (*payload, error) {
		var p payload
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, err
		}
		return &p, nil
	}

	for i := 0; i < 2; i++ {
		got, err := GetWithCached(ctx, c, "payload:1", time.Minute, time.Second, isEmpty, marshal, unmarshal, fetch)
		if err != nil {
			t.Fatalf("GetWithCached: %v", err)
		}
		if got == nil || got.Name != "stored" {
			t.Fatalf("GetWithCached = %+v, want stored payload", got)
		}
	}

	if fetches != 1 {
		t.Errorf("fetch called %d times, want 1 (second read should hit cache)", fetches)
	}
}

func TestGetWithCachedNullValue(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	fetches := 0
	fetch := func(ctx context.Context) (*struct{}, error) {
		fetches++
		return nil, nil
	}

	for i := 0; i < 2; i++ {
		got, err := GetWithCached(ctx, c, "absent:1", time.Minute, time.Minute,
			func(p *struct{}) bool { return p == nil },
			func(p *struct{}) string { return "" },
			func(s string) (*struct{}, error) { return &struct{}{}, nil },
			fetch)
		if err != nil {
			t.Fatalf("GetWithCached: %v", err)
		}
		if got != nil {
			t.Fatalf("GetWithCached = %+v, want nil", got)
		}
	}

	// Absence is cached, so the source is only consulted once.
	if fetches != 1 {
		t.Errorf("fetch called %d times, want 1", fetches)
	}
}

func TestJitterTTL(t *testing.T) {
	t.Parallel()

	ttl := time.Hour
	for i := 0; i < 100; i++ {
		got := JitterTTL(ttl)
		if got > ttl || got < ttl-ttl/10 {
			t.Fatalf("JitterTTL = %v, want within [%v, %v]", got, ttl-ttl/10, ttl)
		}
	}

	if got := JitterTTL(0); got != 0 {
		t.Errorf("JitterTTL(0) = %v, want 0", got)
	}
}
