package infra

import (
	"context"
	"strings"
	"testing"
	"time"

	"trust-gate/middleware/trustgate/domain"
)

func TestMemoryStatsStore_Record(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Gate: domain.GateSubmit, Name: "contact", Key: "form:contact:a", Outcome: "ok", Allowed: true})
	_ = s.Record(ctx, domain.StatsEvent{Gate: domain.GateSubmit, Name: "contact", Key: "form:contact:a", Outcome: "too_fast"})
	_ = s.Record(ctx, domain.StatsEvent{Gate: domain.GateAccess, Name: "/account", Outcome: "denied:auth"})

	if got := s.Total(); got.Allowed != 1 || got.Denied != 2 {
		t.Fatalf("unexpected total %+v", got)
	}
	if got := s.ByName()["submit contact"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected per-form counters %+v", got)
	}
	if got := s.ByOutcome(); got["submit:too_fast"] != 1 || got["access:denied:auth"] != 1 {
		t.Fatalf("unexpected outcomes %v", got)
	}
	if got := s.ByKey(); len(got) != 1 || got["form:contact:a"].Allowed != 1 {
		t.Fatalf("unexpected per-key counters %v", got)
	}
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Gate: domain.GateSubmit, Name: "f", Key: "k", Outcome: "ok", Allowed: true})
	if len(s.ByKey()) != 0 {
		t.Fatalf("expected no per-key counters")
	}
}

func TestRedisStatsStore_Record(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsPrefix("gw:stats:"), WithStatsTTL(time.Hour), WithStatsTrackKeys(true))
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 34, 56, 0, time.UTC)

	if err := s.Record(ctx, domain.StatsEvent{Gate: domain.GateSubmit, Name: "contact", Key: "form:contact:a", Outcome: "ok", Allowed: true, At: at}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record(ctx, domain.StatsEvent{Gate: domain.GateSubmit, Name: "contact", Key: "form:contact:a", Outcome: "rate_limited", At: at}); err != nil {
		t.Fatalf("record: %v", err)
	}

	checks := []struct{ key, field, want string }{
		{"gw:stats:total", "allowed", "1"},
		{"gw:stats:total", "denied", "1"},
		{"gw:stats:outcome", "submit:rate_limited", "1"},
		{"gw:stats:minute:202403011234", "allowed", "1"},
		{"gw:stats:submit", "contact:denied", "1"},
		{"gw:stats:key:form:contact:a", "allowed", "1"},
	}
	for _, c := range checks {
		if got := mr.HGet(c.key, c.field); got != c.want {
			t.Fatalf("expected %s[%s]=%s, got %q", c.key, c.field, c.want, got)
		}
	}
	if ttl := mr.TTL("gw:stats:minute:202403011234"); ttl != time.Hour {
		t.Fatalf("expected bucket ttl 1h, got %s", ttl)
	}
	if ttl := mr.TTL("gw:stats:total"); ttl != 0 {
		t.Fatalf("expected cumulative counters without ttl, got %s", ttl)
	}
}

func TestRedisStatsStore_NoBucket(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsBucket("none"))

	_ = s.Record(context.Background(), domain.StatsEvent{Gate: domain.GateAccess, Name: "/a", Outcome: "granted", Allowed: true, At: t0})
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "trustgate:stats:minute:") {
			t.Fatalf("expected no minute bucket, found %s", k)
		}
	}
	if got := mr.HGet("trustgate:stats:access", "/a:allowed"); got != "1" {
		t.Fatalf("expected per-route counter, got %q", got)
	}
}
