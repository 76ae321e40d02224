package application

import (
	"context"
	"sync"

	"trust-gate/middleware/trustgate/domain"
)

// Guard é o motor de acesso preso ao ciclo de vida de uma view.
//
// Reavalia a cada Update, anuncia só quando a decisão muda e agenda no máximo
// um redirect por vez. Um Denied com redirect pendente não é revertido; quando
// o ctx da view termina (ou Close é chamado) o redirect pendente é cancelado.
type Guard struct {
	engine    AccessEngine
	route     string
	req       domain.AccessRequirement
	scheduler domain.Scheduler
	nav       domain.Navigator
	ctx       context.Context

	mu          sync.Mutex
	decision    domain.AccessDecision
	cancel      func() bool
	redirecting bool
	closed      bool
	stop        func() bool
}

func NewGuard(ctx context.Context, engine AccessEngine, route string, req domain.AccessRequirement, scheduler domain.Scheduler, nav domain.Navigator) *Guard {
	g := &Guard{
		engine:    engine,
		route:     route,
		req:       req,
		scheduler: scheduler,
		nav:       nav,
		ctx:       ctx,
		decision:  domain.Pending,
	}
	// se ctx já terminou, Close roda logo e precisa achar stop preenchido.
	g.mu.Lock()
	g.stop = context.AfterFunc(ctx, g.Close)
	g.mu.Unlock()
	return g
}

// Decision devolve a decisão corrente.
func (g *Guard) Decision() domain.AccessDecision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}

// Redirecting informa se há um redirect agendado e ainda não executado.
func (g *Guard) Redirecting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.redirecting
}

// Update reavalia com o novo retrato do principal.
func (g *Guard) Update(p domain.Principal) domain.AccessDecision {
	g.mu.Lock()
	if g.closed || g.redirecting {
		d := g.decision
		g.mu.Unlock()
		return d
	}

	prev := g.decision
	next := g.engine.Evaluate(p, g.req)
	g.decision = next
	if next == prev {
		g.mu.Unlock()
		return next
	}

	plan, redirect := g.engine.Redirect(next)
	if redirect && g.scheduler != nil {
		g.redirecting = true
		g.cancel = g.scheduler.AfterFunc(plan.After, func() { g.fire(plan.Target) })
	}
	g.mu.Unlock()

	g.engine.Announce(g.ctx, g.route, next)
	return next
}

func (g *Guard) fire(target string) {
	g.mu.Lock()
	if g.closed || !g.redirecting {
		g.mu.Unlock()
		return
	}
	g.redirecting = false
	g.cancel = nil
	g.mu.Unlock()

	if g.nav != nil {
		g.nav.Redirect(target)
	}
}

// Close desmonta o guard: cancela o redirect pendente e ignora updates futuros.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.redirecting = false
	if g.stop != nil {
		g.stop()
	}
}
