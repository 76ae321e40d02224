package application

import (
	"context"
	"log"
	"time"

	"trust-gate/middleware/trustgate/domain"
)

// RateLimiter concentra a regra de admissão por chave.
//
// Ele não sabe onde as janelas moram (memória, Redis); só garante que a
// operação nunca falha para quem chama.
type RateLimiter struct {
	Store domain.WindowStore
	// Fallback atende quando Store devolve erro (ex: Redis fora do ar).
	Fallback domain.WindowStore
	Window   time.Duration
	Clock    domain.Clock
	// Timeout limita cada chamada à store. 0 = 2s.
	Timeout time.Duration
}

// IsAllowed devolve true e registra a tentativa se a chave ainda tem vaga na janela.
// Sem store, ou com a store e o fallback falhando, a tentativa é admitida.
func (l RateLimiter) IsAllowed(key domain.Key, maxAttempts int) bool {
	if l.Store == nil {
		return true
	}
	if l.Window <= 0 {
		l.Window = domain.DefaultWindow
	}
	if l.Clock == nil {
		l.Clock = domain.SystemClock
	}
	if l.Timeout <= 0 {
		l.Timeout = 2 * time.Second
	}

	now := l.Clock.Now()
	ctx, cancel := context.WithTimeout(context.Background(), l.Timeout)
	defer cancel()

	ok, err := l.Store.Admit(ctx, key, maxAttempts, l.Window, now)
	if err == nil {
		return ok
	}
	if l.Fallback == nil {
		log.Printf("ratelimit: store error for %q, admitting: %v", key, err)
		return true
	}
	log.Printf("ratelimit: store error for %q, using fallback: %v", key, err)
	ok, err = l.Fallback.Admit(ctx, key, maxAttempts, l.Window, now)
	if err != nil {
		return true
	}
	return ok
}
