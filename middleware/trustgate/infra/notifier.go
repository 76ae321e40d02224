package infra

import (
	"context"
	"log"

	"trust-gate/middleware/trustgate/domain"
)

// LogNotifier escreve as notificações no log. Útil no gateway, onde o canal
// real com o usuário é a resposta HTTP.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Notify(_ context.Context, ev domain.Notification) {
	logf := log.Printf
	if n.Logger != nil {
		logf = n.Logger.Printf
	}
	logf("notify [%s] %s: %s", ev.Severity, ev.Title, ev.Message)
}
