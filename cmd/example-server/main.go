package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trust-gate/middleware/trustgate"
	"trust-gate/middleware/trustgate/domain"
	"trust-gate/middleware/trustgate/infra"

	"github.com/go-chi/chi/v5"
)

// política embutida para o exemplo rodar sem arquivo.
const examplePolicy = `
routes:
  /account:
    requireAuth: true
  /farmer/dashboard:
    requireAuth: true
    requireRoles: [farmer]
    fallback: farmer-signup
forms:
  contact:
    successMessage: Message sent
    fields:
      - {name: name, required: true, maxLength: 80}
      - {name: email, required: true, pattern: "^[^@\\s]+@[^@\\s]+$"}
      - {name: message, required: true, minLength: 5}
principals:
  - {id: alice, token: alice-token}
  - {id: bob, token: bob-token, capabilities: [farmer]}
`

func main() {
	// Exemplo: o gate embutido direto no seu webserver (sem proxy), com ações locais.
	policy, err := loadPolicy()
	if err != nil {
		log.Fatalf("policy error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))
	gate, err := trustgate.New(trustgate.Options{
		Policy:   policy,
		Notifier: infra.LogNotifier{},
		Stats:    stats,
		Actions: func(form string) domain.Action {
			return func(_ context.Context, payload domain.Value) error {
				log.Printf("form %s accepted: %s", form, payload)
				return nil
			}
		},
		KeyFn: trustgate.ClientKeyFunc("X-Session-Id", false),
	})
	if err != nil {
		log.Fatalf("gate error: %v", err)
	}
	gate.StartJanitor(ctx)

	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(body + "\n"))
		}
	}

	r := chi.NewRouter()
	api := gate.Mount(r, trustgate.ConcurrencyMiddleware(trustgate.ConcurrencyOptions{Max: 50}))
	api.With(gate.RequireAccess("/account")).Get("/account", page("your account"))
	api.With(gate.RequireAccess("/farmer/dashboard")).Get("/farmer/dashboard", page("farmer dashboard"))
	api.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":     stats.Total(),
			"byName":    stats.ByName(),
			"byOutcome": stats.ByOutcome(),
			"byKey":     stats.ByKey(),
		})
	})
	api.Get("/", page("ok"))

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s (forms=%d routes=%d)", addr, len(policy.Forms), len(policy.Routes))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// loadPolicy usa POLICY_FILE se definido; senão a política embutida.
func loadPolicy() (*infra.Policy, error) {
	if path := os.Getenv("POLICY_FILE"); path != "" {
		return infra.LoadPolicy(path)
	}
	return infra.ParsePolicy([]byte(examplePolicy))
}
