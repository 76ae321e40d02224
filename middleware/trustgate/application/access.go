package application

import (
	"context"
	"time"

	"trust-gate/middleware/trustgate/domain"

	"github.com/google/uuid"
)

const (
	// DefaultSignInPath é o ponto de entrada de login para onde Denied(auth) redireciona.
	DefaultSignInPath = "/auth"
	// DefaultRedirectDelay dá tempo para o usuário ver a notificação antes do redirect.
	DefaultRedirectDelay = 1500 * time.Millisecond
)

// AccessEngine avalia principal x requisito. Não tem operação que falhe:
// "falha" é o estado Denied e seus efeitos (notificação, redirect).
type AccessEngine struct {
	Notifier      domain.Notifier
	Stats         domain.StatsStore
	SignInPath    string
	RedirectDelay time.Duration
	Clock         domain.Clock
}

// Evaluate é pura: a primeira regra que casar vence.
//
//  1. carregando -> Pending
//  2. requireAuth e não autenticado -> Denied(auth)
//  3. exige farmer e não tem -> Denied(farmer)
//  4. exige admin e não tem -> Denied(admin)
//  5. outras capacidades exigidas, em ordem alfabética -> Denied(capacidade)
//  6. Granted
func (e AccessEngine) Evaluate(p domain.Principal, req domain.AccessRequirement) domain.AccessDecision {
	if p.Loading {
		return domain.Pending
	}
	if req.RequireAuth && !p.Authenticated {
		return domain.Denied(domain.ReasonAuth)
	}
	if req.RequireRoles.Has(domain.CapabilityFarmer) && !p.Has(domain.CapabilityFarmer) {
		return domain.Denied(domain.ReasonFarmer)
	}
	if req.RequireRoles.Has(domain.CapabilityAdmin) && !p.Has(domain.CapabilityAdmin) {
		return domain.Denied(domain.ReasonAdmin)
	}
	for _, c := range req.RequireRoles.Sorted() {
		if c == domain.CapabilityFarmer || c == domain.CapabilityAdmin {
			continue
		}
		if !p.Has(c) {
			return domain.Denied(domain.DenyReason(c))
		}
	}
	return domain.Granted
}

// Redirect devolve o plano de redirecionamento associado à decisão.
// Só Denied(auth) redireciona; negações por papel deixam o fallback com o chamador.
func (e AccessEngine) Redirect(d domain.AccessDecision) (domain.RedirectPlan, bool) {
	if !d.Denied() || d.Reason != domain.ReasonAuth {
		return domain.RedirectPlan{}, false
	}
	target := e.SignInPath
	if target == "" {
		target = DefaultSignInPath
	}
	after := e.RedirectDelay
	if after <= 0 {
		after = DefaultRedirectDelay
	}
	return domain.RedirectPlan{Target: target, After: after}, true
}

// Announce dispara os efeitos de uma decisão terminal: notificação na negação
// e o evento de estatística. Pending não anuncia nada.
func (e AccessEngine) Announce(ctx context.Context, route string, d domain.AccessDecision) {
	if d.State == domain.DecisionPending {
		return
	}
	clock := e.Clock
	if clock == nil {
		clock = domain.SystemClock
	}
	now := clock.Now()

	if e.Stats != nil {
		outcome := d.State.String()
		if d.Denied() {
			outcome += ":" + string(d.Reason)
		}
		_ = e.Stats.Record(ctx, domain.StatsEvent{
			ID:      uuid.NewString(),
			Gate:    domain.GateAccess,
			Name:    route,
			Outcome: outcome,
			Allowed: d.Granted(),
			At:      now,
		})
	}

	if d.Denied() && e.Notifier != nil {
		e.Notifier.Notify(ctx, domain.Notification{
			ID:       uuid.NewString(),
			Title:    "Access denied",
			Message:  d.Message(),
			Severity: domain.SeverityDestructive,
			At:       now,
		})
	}
}
