package trustgate

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"trust-gate/middleware/trustgate/application"
	"trust-gate/middleware/trustgate/domain"

	"github.com/go-chi/chi/v5"
)

type errorResponse struct {
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

type submitResponse struct {
	OK            bool                    `json:"ok"`
	Outcome       string                  `json:"outcome"`
	Message       string                  `json:"message,omitempty"`
	Violations    []domain.FieldViolation `json:"violations,omitempty"`
	Data          *domain.Value           `json:"data,omitempty"`
	Notifications []domain.Notification   `json:"notifications,omitempty"`
}

type redirectBody struct {
	To      string `json:"to"`
	AfterMs int64  `json:"afterMs"`
}

type decisionResponse struct {
	Route         string                `json:"route"`
	Decision      string                `json:"decision"`
	Reason        string                `json:"reason,omitempty"`
	Message       string                `json:"message,omitempty"`
	Fallback      string                `json:"fallback,omitempty"`
	Redirect      *redirectBody         `json:"redirect,omitempty"`
	Notifications []domain.Notification `json:"notifications,omitempty"`
}

// SubmitHandler atende POST /forms/{form}: o corpo JSON passa pelo gate de
// submissão e, se aceito, pela ação do formulário.
func (g *Gate) SubmitHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "form")
		client := g.opts.KeyFn(r)
		form, ok := g.Form(name, client)
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Outcome: "unknown_form", Message: "unknown form"})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.opts.MaxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Outcome: "bad_request", Message: "body too large"})
			return
		}
		raw, err := domain.DecodeJSON(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Outcome: "bad_request", Message: "invalid JSON body"})
			return
		}

		ctx, notes := withCollector(r.Context())
		valid, err := form.Submit(ctx, raw, g.action(name))

		resp := submitResponse{OK: err == nil, Outcome: application.Outcome(err)}
		status := http.StatusOK
		var ve *domain.ValidationError
		var ae *domain.ActionError
		switch {
		case err == nil:
			resp.Data = &valid
		case errors.Is(err, domain.ErrBusy):
			status = http.StatusConflict
		case errors.Is(err, domain.ErrRateLimited):
			status = http.StatusTooManyRequests
			w.Header().Set("Retry-After", formatSeconds(g.opts.Window))
		case errors.Is(err, domain.ErrTooFast):
			status = http.StatusTooManyRequests
			w.Header().Set("Retry-After", "1")
		case errors.As(err, &ve):
			status = http.StatusUnprocessableEntity
			resp.Violations = ve.Violations
		case errors.As(err, &ae):
			status = http.StatusBadGateway
		default:
			status = http.StatusInternalServerError
		}
		if err != nil {
			resp.Message = err.Error()
		}
		resp.Notifications = notes.list()
		writeJSON(w, status, resp)
	})
}

// RequireAccess protege a rota declarada `route`: só segue para next com Granted.
func (g *Gate) RequireAccess(route string) func(next http.Handler) http.Handler {
	req := g.Requirement(route)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, notes := withCollector(r.Context())
			d := g.decide(r.WithContext(ctx), route, req)
			if d.Granted() {
				next.ServeHTTP(w, r)
				return
			}

			resp := g.decisionBody(route, req, d)
			resp.Notifications = notes.list()
			status := http.StatusForbidden
			switch {
			case d.State == domain.DecisionPending:
				status = http.StatusServiceUnavailable
				w.Header().Set("Retry-After", "1")
			case d.Reason == domain.ReasonAuth:
				status = http.StatusUnauthorized
				if resp.Redirect != nil {
					after := time.Duration(resp.Redirect.AfterMs) * time.Millisecond
					w.Header().Set("Refresh", formatSeconds(after)+"; url="+resp.Redirect.To)
				}
			}
			writeJSON(w, status, resp)
		})
	}
}

// AccessHandler atende GET /access/*: devolve a decisão para a rota sem
// protegê-la, para a view decidir o que renderizar.
func (g *Gate) AccessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		req := g.Requirement(route)

		ctx, notes := withCollector(r.Context())
		d := g.decide(r.WithContext(ctx), route, req)
		resp := g.decisionBody(route, req, d)
		resp.Notifications = notes.list()
		writeJSON(w, http.StatusOK, resp)
	})
}

// decide resolve o principal, avalia e anuncia. Falha do provedor de
// identidade conta como identidade ainda carregando.
func (g *Gate) decide(r *http.Request, route string, req domain.AccessRequirement) domain.AccessDecision {
	p, err := g.opts.Identity.Resolve(r.Context(), bearerToken(r))
	if err != nil {
		p = domain.Principal{Loading: true}
	}
	d := g.engine.Evaluate(p, req)
	g.engine.Announce(r.Context(), route, d)
	return d
}

func (g *Gate) decisionBody(route string, req domain.AccessRequirement, d domain.AccessDecision) decisionResponse {
	resp := decisionResponse{
		Route:    route,
		Decision: d.State.String(),
		Reason:   string(d.Reason),
		Message:  d.Message(),
	}
	if d.Denied() {
		resp.Fallback = req.Fallback
	}
	if plan, ok := g.engine.Redirect(d); ok {
		resp.Redirect = &redirectBody{To: plan.Target, AfterMs: plan.After.Milliseconds()}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
