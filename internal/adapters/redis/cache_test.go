package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "seulanga/internal/adapters/redis"
	"seulanga/internal/domain"
)

func TestCache_SetGetDel(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	var got []domain.Unit
	ok, err := c.Get(ctx, "units:available:biz", &got)
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	in := []domain.Unit{{ID: "u1", BusinessID: "biz", Status: domain.UnitReady, Available: true, Price: 350000}}
	if err := c.Set(ctx, "units:available:biz", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	ok, err = c.Get(ctx, "units:available:biz", &got)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].ID != "u1" || !got[0].Available {
		t.Fatalf("unexpected units: %+v", got)
	}

	mr.FastForward(61 * time.Second)
	if ok, _ := c.Get(ctx, "units:available:biz", &got); ok {
		t.Fatal("expected entry to expire")
	}

	_ = c.Set(ctx, "k", "v", 60)
	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists("k") {
		t.Fatal("key still present after Del")
	}

	for want := int64(1); want <= 2; want++ {
		n, err := c.Incr(ctx, "units:gen:biz")
		if err != nil || n != want {
			t.Fatalf("incr: want %d, got %d err=%v", want, n, err)
		}
	}
	var gen int64
	if ok, err := c.Get(ctx, "units:gen:biz", &gen); !ok || err != nil || gen != 2 {
		t.Fatalf("generation read back: ok=%v gen=%d err=%v", ok, gen, err)
	}
}
