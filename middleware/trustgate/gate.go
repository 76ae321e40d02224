package trustgate

import (
	"context"
	"errors"
	"sync"
	"time"

	"trust-gate/middleware/trustgate/application"
	"trust-gate/middleware/trustgate/domain"
	"trust-gate/middleware/trustgate/infra"
)

type Options struct {
	Policy *infra.Policy
	// Limiter é compartilhado por todas as instâncias de formulário.
	Limiter  domain.AttemptLimiter
	Identity domain.IdentitySource
	Cleaner  domain.TextCleaner
	// Notifier recebe as notificações além do corpo da resposta (ex: infra.LogNotifier).
	Notifier domain.Notifier
	Stats    domain.StatsStore
	// Actions devolve a ação de submissão de cada formulário. nil = aceitar sem ação.
	Actions func(form string) domain.Action
	KeyFn   KeyFunc
	// Window é a janela do limiter, usada só para o Retry-After.
	Window time.Duration
	Clock  domain.Clock
	// Scheduler agenda os redirects das views abertas em WatchHandler.
	Scheduler domain.Scheduler
	// WatchEvery é o intervalo de reavaliação de WatchHandler.
	WatchEvery time.Duration

	MaxBodyBytes int64
	IdleTTL      time.Duration
	CleanupEvery time.Duration
}

// Gate liga a política às instâncias de formulário e ao motor de acesso.
//
// Cada par (formulário, cliente) tem a sua instância de application.Form:
// é o equivalente no servidor a um formulário aberto numa aba.
type Gate struct {
	opts      Options
	engine    application.AccessEngine
	sanitizer application.Sanitizer
	notifier  domain.Notifier

	mu    sync.Mutex
	forms map[formKey]*formEntry
}

type formKey struct {
	form   string
	client string
}

type formEntry struct {
	form     *application.Form
	lastSeen time.Time
}

func New(opts Options) (*Gate, error) {
	if opts.Policy == nil {
		return nil, errors.New("trustgate: policy is required")
	}
	if opts.Cleaner == nil {
		opts.Cleaner = infra.NewHTMLCleaner()
	}
	if opts.Identity == nil {
		opts.Identity = infra.NewStaticIdentity(opts.Policy.Principals)
	}
	if opts.KeyFn == nil {
		opts.KeyFn = ClientKeyFunc("", false)
	}
	if opts.Window <= 0 {
		opts.Window = domain.DefaultWindow
	}
	if opts.Clock == nil {
		opts.Clock = domain.SystemClock
	}
	if opts.Limiter == nil {
		opts.Limiter = application.RateLimiter{Store: infra.NewMemoryWindowStore(), Window: opts.Window, Clock: opts.Clock}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = infra.TimerScheduler{}
	}
	if opts.WatchEvery <= 0 {
		opts.WatchEvery = 2 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if opts.CleanupEvery == 0 {
		opts.CleanupEvery = 5 * time.Minute
	}

	notifier := requestNotifier{next: opts.Notifier}
	return &Gate{
		opts: opts,
		engine: application.AccessEngine{
			Notifier:      notifier,
			Stats:         opts.Stats,
			SignInPath:    opts.Policy.SignInPath,
			RedirectDelay: opts.Policy.RedirectDelay,
			Clock:         opts.Clock,
		},
		sanitizer: application.Sanitizer{Cleaner: opts.Cleaner},
		notifier:  notifier,
		forms:     make(map[formKey]*formEntry),
	}, nil
}

// Engine expõe o motor de acesso configurado (ex: para montar Guards).
func (g *Gate) Engine() application.AccessEngine { return g.engine }

// Requirement devolve o requisito declarado da rota. Rota não declarada é pública.
func (g *Gate) Requirement(route string) domain.AccessRequirement {
	if rule, ok := g.opts.Policy.Routes[route]; ok && rule != nil {
		return rule.Requirement()
	}
	return domain.AccessRequirement{}
}

// Form devolve (criando se preciso) a instância do formulário para o cliente.
func (g *Gate) Form(name, client string) (*application.Form, bool) {
	rule, ok := g.opts.Policy.Forms[name]
	if !ok {
		return nil, false
	}
	k := formKey{form: name, client: client}
	now := g.opts.Clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if ent, ok := g.forms[k]; ok {
		ent.lastSeen = now
		return ent.form, true
	}

	minInterval := rule.MinInterval
	if minInterval <= 0 {
		minInterval = application.MinInterval
	}
	schema := rule.Schema
	f := application.NewForm(g.opts.Limiter, g.sanitizer, application.FormConfig{
		Name:           name,
		Key:            domain.Key("form:" + name + ":" + client),
		MaxAttempts:    rule.MaxAttempts,
		MinInterval:    minInterval,
		Debounce:       infra.NewIntervalGate(minInterval),
		Validator:      &schema,
		Notifier:       g.notifier,
		Stats:          g.opts.Stats,
		Clock:          g.opts.Clock,
		SuccessMessage: rule.SuccessMessage,
	})
	g.forms[k] = &formEntry{form: f, lastSeen: now}
	return f, true
}

func (g *Gate) action(form string) domain.Action {
	if g.opts.Actions == nil {
		return nil
	}
	return g.opts.Actions(form)
}

// Cleanup remove instâncias de formulário ociosas que não estão submetendo.
// A checagem de cada instância roda fora de g.mu.
// O limiter é compartilhado, então isso não zera o rate limit do cliente.
func (g *Gate) Cleanup() {
	cutoff := g.opts.Clock.Now().Add(-g.opts.IdleTTL)

	g.mu.Lock()
	idle := make(map[formKey]*formEntry)
	for k, ent := range g.forms {
		if ent.lastSeen.Before(cutoff) {
			idle[k] = ent
		}
	}
	g.mu.Unlock()

	for k, ent := range idle {
		if ent.form.Busy() {
			delete(idle, k)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for k, ent := range idle {
		if g.forms[k] == ent && ent.lastSeen.Before(cutoff) {
			delete(g.forms, k)
		}
	}
}

// Len devolve o número de instâncias de formulário vivas.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.forms)
}

// StartJanitor inicia uma goroutine que limpa instâncias ociosas periodicamente.
// Pare cancelando o contexto.
func (g *Gate) StartJanitor(ctx context.Context) {
	if g.opts.CleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(g.opts.CleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				g.Cleanup()
			}
		}
	}()
}
