package trustgate

import (
	"context"
	"sync"

	"trust-gate/middleware/trustgate/domain"
)

type collectorKey struct{}

// collector junta as notificações geradas durante uma requisição para que
// voltem no corpo da resposta.
type collector struct {
	mu    sync.Mutex
	items []domain.Notification
}

func withCollector(ctx context.Context) (context.Context, *collector) {
	c := &collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

func (c *collector) add(n domain.Notification) {
	c.mu.Lock()
	c.items = append(c.items, n)
	c.mu.Unlock()
}

func (c *collector) list() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Notification, len(c.items))
	copy(out, c.items)
	return out
}

// requestNotifier entrega ao coletor da requisição (se houver) e repassa a next.
type requestNotifier struct {
	next domain.Notifier
}

func (n requestNotifier) Notify(ctx context.Context, ev domain.Notification) {
	if c, ok := ctx.Value(collectorKey{}).(*collector); ok {
		c.add(ev)
	}
	if n.next != nil {
		n.next.Notify(ctx, ev)
	}
}
