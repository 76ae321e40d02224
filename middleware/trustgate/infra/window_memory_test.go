package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"trust-gate/middleware/trustgate/domain"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryWindowStore_AdmitsUpToMax(t *testing.T) {
	s := NewMemoryWindowStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := s.Admit(ctx, "k", 3, time.Minute, t0.Add(time.Duration(i)*time.Second))
		if err != nil || !ok {
			t.Fatalf("expected attempt %d admitted, got ok=%v err=%v", i+1, ok, err)
		}
	}
	ok, _ := s.Admit(ctx, "k", 3, time.Minute, t0.Add(3*time.Second))
	if ok {
		t.Fatalf("expected 4th attempt denied")
	}
	if n := s.Attempts("k", time.Minute, t0.Add(3*time.Second)); n != 3 {
		t.Fatalf("expected denied attempt not recorded, got %d", n)
	}
}

func TestMemoryWindowStore_SlidesPerAttempt(t *testing.T) {
	s := NewMemoryWindowStore()
	ctx := context.Background()

	_, _ = s.Admit(ctx, "k", 2, 10*time.Second, t0)
	_, _ = s.Admit(ctx, "k", 2, 10*time.Second, t0.Add(5*time.Second))

	if ok, _ := s.Admit(ctx, "k", 2, 10*time.Second, t0.Add(9*time.Second)); ok {
		t.Fatalf("expected denied with both attempts alive")
	}
	// idade == janela expira a primeira
	if ok, _ := s.Admit(ctx, "k", 2, 10*time.Second, t0.Add(10*time.Second)); !ok {
		t.Fatalf("expected admitted once the first attempt expired")
	}
	if ok, _ := s.Admit(ctx, "k", 2, 10*time.Second, t0.Add(11*time.Second)); ok {
		t.Fatalf("expected denied: second and third attempts are alive")
	}
}

func TestMemoryWindowStore_ZeroMaxDenies(t *testing.T) {
	s := NewMemoryWindowStore()
	if ok, _ := s.Admit(context.Background(), "k", 0, time.Minute, t0); ok {
		t.Fatalf("expected maxAttempts=0 to deny")
	}
	if s.Len() != 0 {
		t.Fatalf("expected no key kept for a denied first attempt, got %d", s.Len())
	}
}

func TestMemoryWindowStore_CleanupRemovesIdleKeys(t *testing.T) {
	s := NewMemoryWindowStore(WithIdleTTL(50*time.Millisecond), WithCleanupEvery(0))
	ctx := context.Background()

	_, _ = s.Admit(ctx, domain.Key("old"), 1, time.Minute, time.Now())
	time.Sleep(100 * time.Millisecond)
	_, _ = s.Admit(ctx, domain.Key("fresh"), 1, time.Minute, time.Now())

	s.Cleanup()

	if s.Len() != 1 {
		t.Fatalf("expected only the fresh key to survive, got %d", s.Len())
	}
	if n := s.Attempts("fresh", time.Minute, time.Now()); n != 1 {
		t.Fatalf("expected fresh key kept, got %d attempts", n)
	}
}

func TestMemoryWindowStore_JanitorStopsWithContext(t *testing.T) {
	s := NewMemoryWindowStore(WithIdleTTL(time.Millisecond), WithCleanupEvery(2*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _ = s.Admit(ctx, "k", 1, time.Minute, time.Now().Add(-time.Second))
	s.StartJanitor(ctx)

	deadline := time.Now().Add(time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected janitor to clean the idle key")
		}
		time.Sleep(time.Millisecond)
	}
}

// raceAdmit dispara n Admit simultâneos na mesma chave e devolve quantos passaram.
func raceAdmit(t *testing.T, s domain.WindowStore, maxAttempts, n int) int {
	t.Helper()
	var (
		mu      sync.Mutex
		allowed int
		wg      sync.WaitGroup
	)
	start := make(chan struct{})
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			ok, err := s.Admit(context.Background(), "k", maxAttempts, time.Minute, t0)
			if err != nil {
				t.Errorf("admit: %v", err)
				return
			}
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()
	return allowed
}

func TestMemoryWindowStore_ConcurrentAdmitsRespectMax(t *testing.T) {
	if got := raceAdmit(t, NewMemoryWindowStore(), 3, 50); got != 3 {
		t.Fatalf("expected exactly 3 admitted, got %d", got)
	}
}
