package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisWindowStore_AdmitsUpToMaxThenSlides(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisWindowStore(rdb)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := s.Admit(ctx, "login", 5, time.Minute, t0.Add(time.Duration(i)*time.Millisecond))
		if err != nil {
			t.Fatalf("admit: %v", err)
		}
		if !ok {
			t.Fatalf("expected attempt %d admitted", i+1)
		}
	}
	ok, err := s.Admit(ctx, "login", 5, time.Minute, t0.Add(10*time.Millisecond))
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if ok {
		t.Fatalf("expected 6th attempt denied")
	}

	members, err := mr.ZMembers("trustgate:window:login")
	if err != nil {
		t.Fatalf("zmembers: %v", err)
	}
	if len(members) != 5 {
		t.Fatalf("expected denied attempt not recorded, got %d members", len(members))
	}

	ok, err = s.Admit(ctx, "login", 5, time.Minute, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !ok {
		t.Fatalf("expected admitted once the window elapsed")
	}
}

func TestRedisWindowStore_SetsExpiryAndPrefix(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisWindowStore(rdb, WithWindowPrefix("app:rl:"))

	if _, err := s.Admit(context.Background(), "k", 1, 30*time.Second, t0); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !mr.Exists("app:rl:k") {
		t.Fatalf("expected key with custom prefix")
	}
	if ttl := mr.TTL("app:rl:k"); ttl <= 0 || ttl > 30*time.Second {
		t.Fatalf("expected ttl within the window, got %s", ttl)
	}
}

func TestRedisWindowStore_ZeroMaxDeniesWithoutRoundTrip(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisWindowStore(rdb)

	ok, err := s.Admit(context.Background(), "k", 0, time.Minute, t0)
	if err != nil || ok {
		t.Fatalf("expected denied without error, got ok=%v err=%v", ok, err)
	}
	if mr.Exists("trustgate:window:k") {
		t.Fatalf("expected nothing written")
	}
}

func TestRedisWindowStore_ErrorWhenRedisDown(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisWindowStore(rdb)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := s.Admit(ctx, "k", 1, time.Minute, t0); err == nil {
		t.Fatalf("expected error with redis down")
	}
}

func TestRedisWindowStore_ConcurrentAdmitsRespectMax(t *testing.T) {
	_, rdb := newRedis(t)
	if got := raceAdmit(t, NewRedisWindowStore(rdb), 3, 30); got != 3 {
		t.Fatalf("expected exactly 3 admitted, got %d", got)
	}
}
