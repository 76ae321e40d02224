package infra

import (
	"context"
	"sync"
	"time"

	"trust-gate/middleware/trustgate/domain"
)

// MemoryWindowStore guarda as janelas em memória: por chave, os instantes das
// tentativas aceitas, em ordem. Expirados saem na próxima checagem da chave.
type MemoryWindowStore struct {
	mu           sync.Mutex
	entries      map[domain.Key][]time.Time
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type WindowOption func(*MemoryWindowStore)

func WithIdleTTL(d time.Duration) WindowOption {
	return func(s *MemoryWindowStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) WindowOption {
	return func(s *MemoryWindowStore) { s.cleanupEvery = d }
}

func NewMemoryWindowStore(opts ...WindowOption) *MemoryWindowStore {
	s := &MemoryWindowStore{
		entries:      make(map[domain.Key][]time.Time),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Admit implementa domain.WindowStore.
func (s *MemoryWindowStore) Admit(_ context.Context, key domain.Key, maxAttempts int, window time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := prune(s.entries[key], window, now)
	if len(attempts) >= maxAttempts {
		if len(attempts) == 0 {
			delete(s.entries, key)
		} else {
			s.entries[key] = attempts
		}
		return false, nil
	}
	s.entries[key] = append(attempts, now)
	return true, nil
}

// Attempts devolve quantas tentativas da chave ainda estão vivas em `now`.
func (s *MemoryWindowStore) Attempts(key domain.Key, window time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, at := range s.entries[key] {
		if now.Sub(at) < window {
			n++
		}
	}
	return n
}

// prune descarta, no lugar, as tentativas com idade >= window.
func prune(attempts []time.Time, window time.Duration, now time.Time) []time.Time {
	i := 0
	for i < len(attempts) && now.Sub(attempts[i]) >= window {
		i++
	}
	if i == 0 {
		return attempts
	}
	return append(attempts[:0], attempts[i:]...)
}

// Cleanup remove chaves cuja última tentativa é mais velha que idleTTL.
// Não é necessário para a corretude, só para a memória.
func (s *MemoryWindowStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, attempts := range s.entries {
		if len(attempts) == 0 || attempts[len(attempts)-1].Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// Len devolve o número de chaves mantidas.
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryWindowStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}

// DoneContext é o mínimo necessário para aceitar context.Context no janitor.
type DoneContext interface {
	Done() <-chan struct{}
}

func startJanitor(ctx DoneContext, every time.Duration, fn func()) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fn()
			}
		}
	}()
}
