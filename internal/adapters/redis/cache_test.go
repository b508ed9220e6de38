package redisad

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type outcome struct {
	Status string  `json:"status"`
	Ref    *string `json:"ref"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var got outcome
	hit, err := c.Get(ctx, "booking:abc", &got)
	if err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}

	ref := "R-1"
	if err := c.Set(ctx, "booking:abc", outcome{Status: "payment_required", Ref: &ref}, 900); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("sigtrip:booking:abc") {
		t.Fatalf("key not namespaced: %v", mr.Keys())
	}
	if ttl := mr.TTL("sigtrip:booking:abc"); ttl != 900*time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	hit, err = c.Get(ctx, "booking:abc", &got)
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if got.Status != "payment_required" || got.Ref == nil || *got.Ref != "R-1" {
		t.Fatalf("unexpected value %+v", got)
	}

	if err := c.Del(ctx, "booking:abc"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if hit, _ := c.Get(ctx, "booking:abc", &got); hit {
		t.Fatalf("expected miss after delete")
	}
}

func TestCache_Expiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "booking_ref:R-1", "booking:abc", 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(61 * time.Second)

	var key string
	if hit, err := c.Get(ctx, "booking_ref:R-1", &key); err != nil || hit {
		t.Fatalf("expected expiry, got hit=%v err=%v", hit, err)
	}
}

func TestCache_CorruptValueIsError(t *testing.T) {
	c, mr := newTestCache(t)
	if err := mr.Set("sigtrip:booking:bad", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var got outcome
	if hit, err := c.Get(context.Background(), "booking:bad", &got); err == nil || hit {
		t.Fatalf("expected decode error, got hit=%v err=%v", hit, err)
	}
}

func TestCache_PingDown(t *testing.T) {
	c, mr := newTestCache(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	mr.Close()
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping failure after shutdown")
	}
}
