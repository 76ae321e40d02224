package trustgate

import (
	"context"
	"sync"
	"testing"
	"time"

	"trust-gate/middleware/trustgate/domain"
	"trust-gate/middleware/trustgate/infra"
)

const testPolicy = `
redirectDelay: 1500ms
routes:
  /account:
    requireAuth: true
  /farmer/dashboard:
    requireAuth: true
    requireRoles: [farmer]
    fallback: farmer-signup
forms:
  contact:
    fields:
      - {name: name, required: true}
      - {name: email, required: true, pattern: "^[^@]+@[^@]+$"}
  login:
    maxAttempts: 2
    fields:
      - {name: user, required: true}
principals:
  - {id: u1, token: plain}
  - {id: u2, token: grower, capabilities: [farmer]}
`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type actionRecorder struct {
	mu       sync.Mutex
	payloads map[string][]domain.Value
	fail     error
}

func (a *actionRecorder) For(form string) domain.Action {
	return func(_ context.Context, v domain.Value) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.payloads == nil {
			a.payloads = make(map[string][]domain.Value)
		}
		a.payloads[form] = append(a.payloads[form], v)
		return a.fail
	}
}

func (a *actionRecorder) count(form string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.payloads[form])
}

func newTestGate(t *testing.T, mutate func(*Options)) (*Gate, *fakeClock, *actionRecorder) {
	t.Helper()
	policy, err := infra.ParsePolicy([]byte(testPolicy))
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	actions := &actionRecorder{}
	opts := Options{
		Policy:  policy,
		Actions: actions.For,
		Clock:   clock,
		Stats:   infra.NewMemoryStatsStore(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	g, err := New(opts)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return g, clock, actions
}
