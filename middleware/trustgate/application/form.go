package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trust-gate/middleware/trustgate/domain"

	"github.com/google/uuid"
)

const (
	// DefaultMaxAttempts é o orçamento de tentativas por janela quando o formulário não define outro.
	DefaultMaxAttempts = 5
	// MinInterval é o intervalo mínimo entre duas submissões aceitas na mesma instância.
	MinInterval = time.Second
)

// FormConfig descreve uma instância de formulário. Só Key é obrigatório.
type FormConfig struct {
	Name        string
	Key         domain.Key
	MaxAttempts int
	MinInterval time.Duration
	// Debounce substitui a comparação simples de timestamps (ex: infra.NewIntervalGate).
	Debounce  domain.IntervalGate
	Validator domain.Validator
	Notifier  domain.Notifier
	Stats     domain.StatsStore
	Clock     domain.Clock
	// SuccessMessage, se não vazio, gera uma notificação info a cada submissão aceita.
	SuccessMessage string
}

// Form é o gate de submissão de uma instância de formulário.
//
// Estado: Idle -> Submitting -> Idle. Só uma ação em voo por instância.
type Form struct {
	name        string
	key         domain.Key
	maxAttempts int
	minInterval time.Duration

	limiter   domain.AttemptLimiter
	sanitizer Sanitizer
	debounce  domain.IntervalGate
	validator domain.Validator
	notifier  domain.Notifier
	stats     domain.StatsStore
	clock     domain.Clock
	success   string

	mu        sync.Mutex
	state     domain.SubmissionState
	admitting bool
}

func NewForm(limiter domain.AttemptLimiter, sanitizer Sanitizer, cfg FormConfig) *Form {
	f := &Form{
		name:        cfg.Name,
		key:         cfg.Key,
		maxAttempts: cfg.MaxAttempts,
		minInterval: cfg.MinInterval,
		limiter:     limiter,
		sanitizer:   sanitizer,
		debounce:    cfg.Debounce,
		validator:   cfg.Validator,
		notifier:    cfg.Notifier,
		stats:       cfg.Stats,
		clock:       cfg.Clock,
		success:     cfg.SuccessMessage,
	}
	if f.maxAttempts <= 0 {
		f.maxAttempts = DefaultMaxAttempts
	}
	if f.minInterval <= 0 {
		f.minInterval = MinInterval
	}
	if f.clock == nil {
		f.clock = domain.SystemClock
	}
	if f.name == "" {
		f.name = string(f.key)
	}
	return f
}

func (f *Form) Name() string { return f.name }

// State devolve um retrato do estado atual.
func (f *Form) State() domain.SubmissionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Busy informa se há tentativa em admissão ou em voo.
func (f *Form) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admitting || f.state.Submitting
}

// Submit executa uma tentativa: em voo? -> admissão -> debounce -> sanitiza -> valida -> ação.
//
// Devolve o payload validado, ou um dos erros: domain.ErrBusy, domain.ErrRateLimited,
// domain.ErrTooFast, *domain.ValidationError, *domain.ActionError.
// Toda rejeição gera exatamente uma notificação.
//
// Tentativa com outra já em voo é recusada antes da admissão e não gasta
// vaga do limiter: domain.ErrTooFast dentro do intervalo mínimo, depois
// domain.ErrBusy. É o lado servidor do botão desabilitado durante o envio.
func (f *Form) Submit(ctx context.Context, raw domain.Value, action domain.Action) (domain.Value, error) {
	if err := f.enter(); err != nil {
		return domain.Value{}, f.reject(ctx, err)
	}
	defer f.leave()

	clean, err := f.sanitizer.Sanitize(raw)
	if err != nil {
		return domain.Value{}, f.reject(ctx, &domain.ValidationError{
			Violations: []domain.FieldViolation{{Message: err.Error()}},
		})
	}

	valid := clean
	if f.validator != nil {
		valid, err = f.validator.Validate(clean)
		if err != nil {
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				ve = &domain.ValidationError{Violations: []domain.FieldViolation{{Message: err.Error()}}}
			}
			return domain.Value{}, f.reject(ctx, ve)
		}
	}

	if err := f.invoke(ctx, action, valid); err != nil {
		return domain.Value{}, f.reject(ctx, err)
	}

	f.record(ctx, "ok", true)
	if f.success != "" {
		f.notify(ctx, domain.Notification{
			Title:    "Success",
			Message:  f.success,
			Severity: domain.SeverityInfo,
		})
	}
	return valid, nil
}

// enter faz as checagens de admissão e, se passar, entra em Submitting.
// O timestamp é atualizado já aqui, antes da ação, para fechar a corrida do debounce.
//
// A consulta ao limiter (que pode ir ao Redis) roda fora de f.mu; durante ela a
// instância fica reservada (admitting) e conta como em voo para outras tentativas.
func (f *Form) enter() error {
	now := f.clock.Now()

	f.mu.Lock()
	if f.state.Submitting || f.admitting {
		tooFast := f.admitting || now.Sub(f.state.LastSubmission) < f.minInterval
		f.mu.Unlock()
		// ainda dentro do intervalo mínimo conta como clique rápido demais.
		if tooFast {
			return domain.ErrTooFast
		}
		return domain.ErrBusy
	}
	f.admitting = true
	f.mu.Unlock()

	allowed := f.limiter == nil || f.limiter.IsAllowed(f.key, f.maxAttempts)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.admitting = false
	if !allowed {
		return domain.ErrRateLimited
	}
	if f.tooSoon(now) {
		return domain.ErrTooFast
	}
	f.state.Submitting = true
	f.state.LastSubmission = now
	return nil
}

func (f *Form) tooSoon(now time.Time) bool {
	if f.debounce != nil {
		return !f.debounce.AllowAt(now)
	}
	last := f.state.LastSubmission
	return !last.IsZero() && now.Sub(last) < f.minInterval
}

func (f *Form) leave() {
	f.mu.Lock()
	f.state.Submitting = false
	f.mu.Unlock()
}

// invoke chama a ação e normaliza qualquer falha (inclusive panic) em *domain.ActionError.
func (f *Form) invoke(ctx context.Context, action domain.Action, payload domain.Value) (err error) {
	if action == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &domain.ActionError{Message: fmt.Sprint(r)}
		}
	}()
	if aerr := action(ctx, payload); aerr != nil {
		var ae *domain.ActionError
		if errors.As(aerr, &ae) {
			return ae
		}
		return &domain.ActionError{Message: aerr.Error(), Err: aerr}
	}
	return nil
}

func (f *Form) reject(ctx context.Context, err error) error {
	f.record(ctx, outcomeOf(err), false)

	n := domain.Notification{Severity: domain.SeverityDestructive, Message: err.Error()}
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		n.Title = "Too many attempts"
	case errors.Is(err, domain.ErrTooFast):
		n.Title = "Please wait"
	case errors.Is(err, domain.ErrBusy):
		n.Title = "Submission in progress"
	default:
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			n.Title = "Validation error"
			if len(ve.Violations) > 0 {
				n.Message = ve.Violations[0].Message
			}
		} else {
			n.Title = "Submission failed"
		}
	}
	f.notify(ctx, n)
	return err
}

func (f *Form) notify(ctx context.Context, n domain.Notification) {
	if f.notifier == nil {
		return
	}
	n.ID = uuid.NewString()
	n.At = f.clock.Now()
	f.notifier.Notify(ctx, n)
}

func (f *Form) record(ctx context.Context, outcome string, allowed bool) {
	if f.stats == nil {
		return
	}
	_ = f.stats.Record(ctx, domain.StatsEvent{
		ID:      uuid.NewString(),
		Gate:    domain.GateSubmit,
		Name:    f.name,
		Key:     f.key,
		Outcome: outcome,
		Allowed: allowed,
		At:      f.clock.Now(),
	})
}

// outcomeOf traduz o erro para o rótulo usado em estatísticas e respostas.
func outcomeOf(err error) string {
	var ve *domain.ValidationError
	var ae *domain.ActionError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrTooFast):
		return "too_fast"
	case errors.Is(err, domain.ErrBusy):
		return "busy"
	case errors.As(err, &ve):
		return "validation_failed"
	case errors.As(err, &ae):
		return "action_failed"
	default:
		return "error"
	}
}

// Outcome expõe outcomeOf para os adapters.
func Outcome(err error) string { return outcomeOf(err) }
