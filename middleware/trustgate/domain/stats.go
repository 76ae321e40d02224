package domain

import (
	"context"
	"time"
)

// Gates conhecidos pelos eventos de estatística.
const (
	GateSubmit = "submit"
	GateAccess = "access"
)

// StatsEvent representa um desfecho do gate (submissão ou decisão de acesso).
//
// Observação: cuidado com cardinalidade. Name é o formulário ou a rota
// declarada, nunca a URL crua; Key só é persistida se a store pedir.
type StatsEvent struct {
	ID      string
	Gate    string
	Name    string
	Key     Key
	Outcome string
	Allowed bool

	At time.Time
}

// StatsStore é a estratégia de persistência das estatísticas do gate.
//
// O gate trata erro como best-effort (nunca derruba a submissão).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
