package domain

import (
	"context"
	"time"
)

type Key string

// DefaultWindow é a janela de admissão do rate limiter. É uma constante do
// limiter inteiro, não um parâmetro por chamada.
const DefaultWindow = 60 * time.Second

// WindowStore guarda, por chave, os instantes das tentativas observadas.
//
// Admit precisa ser atômico por chave: descarta tentativas mais antigas que
// `window`, compara o restante com maxAttempts e só registra `now` se houver vaga.
// Uma tentativa negada nunca ocupa vaga.
type WindowStore interface {
	Admit(ctx context.Context, key Key, maxAttempts int, window time.Duration, now time.Time) (bool, error)
}

// AttemptLimiter é o contrato que os gates consomem. Não falha: só responde.
type AttemptLimiter interface {
	IsAllowed(key Key, maxAttempts int) bool
}

// IntervalGate decide se já passou o intervalo mínimo desde a última passagem.
// Uma passagem bem sucedida conta como a nova "última".
type IntervalGate interface {
	AllowAt(now time.Time) bool
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock usa time.Now.
var SystemClock Clock = ClockFunc(time.Now)
