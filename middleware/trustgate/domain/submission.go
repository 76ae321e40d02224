package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrRateLimited = errors.New("too many attempts, try again later")
	ErrTooFast     = errors.New("submitting too fast, wait a moment")
	// ErrBusy: já existe uma submissão em andamento nesta instância do formulário.
	ErrBusy = errors.New("a submission is already in progress")
)

type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carrega as violações por campo devolvidas pelo validador.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Field == "" {
			parts = append(parts, v.Message)
			continue
		}
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ActionError normaliza qualquer falha da ação do chamador.
type ActionError struct {
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	if e.Message == "" {
		return "submission failed"
	}
	return "submission failed: " + e.Message
}

func (e *ActionError) Unwrap() error { return e.Err }

// Action é a operação de submissão do chamador (rede, regra de negócio...).
type Action func(ctx context.Context, payload Value) error

// Validator verifica o payload sanitizado contra um schema declarado.
// Em caso de violação devolve *ValidationError.
type Validator interface {
	Validate(v Value) (Value, error)
}

// TextCleaner neutraliza marcação/script em um texto.
// Precisa ser idempotente: limpar texto limpo não muda nada.
type TextCleaner interface {
	Clean(s string) string
}

type TextCleanerFunc func(string) string

func (f TextCleanerFunc) Clean(s string) string { return f(s) }

// SubmissionState é o estado observável de uma instância de formulário.
type SubmissionState struct {
	Submitting     bool
	LastSubmission time.Time
}

type Severity string

const (
	SeverityInfo        Severity = "info"
	SeverityDestructive Severity = "destructive"
)

type Notification struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	At       time.Time `json:"at"`
}

// Notifier apresenta mensagens curtas ao usuário. Não pode bloquear o chamador.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }
