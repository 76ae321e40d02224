package infra

import (
	"time"

	"golang.org/x/time/rate"
)

// IntervalGate é um token-bucket de capacidade 1 que recarrega uma ficha por
// intervalo: passa no máximo uma vez a cada `interval`. Negar não consome ficha.
type IntervalGate struct {
	lim *rate.Limiter
}

func NewIntervalGate(interval time.Duration) *IntervalGate {
	return &IntervalGate{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// AllowAt implementa domain.IntervalGate.
func (g *IntervalGate) AllowAt(now time.Time) bool {
	return g.lim.AllowN(now, 1)
}
