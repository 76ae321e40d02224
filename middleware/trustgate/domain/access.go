package domain

import (
	"context"
	"sort"
	"strings"
	"time"
)

type Capability string

const (
	CapabilityFarmer Capability = "farmer"
	CapabilityAdmin  Capability = "admin"
)

// CapabilitySet é um conjunto de capacidades. O zero value (nil) é vazio.
type CapabilitySet map[Capability]struct{}

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		c = Capability(strings.ToLower(strings.TrimSpace(string(c))))
		if c == "" {
			continue
		}
		s[c] = struct{}{}
	}
	return s
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Sorted devolve as capacidades em ordem alfabética.
func (s CapabilitySet) Sorted() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Principal é o retrato de quem está agindo agora.
//
// As capacidades são afirmadas pelo provedor de identidade; o gate só lê.
// Admin nunca é inferido de um campo editável pelo usuário.
type Principal struct {
	ID            string
	Authenticated bool
	Loading       bool
	Capabilities  CapabilitySet
}

func (p Principal) Has(c Capability) bool { return p.Capabilities.Has(c) }

// IdentitySource resolve o principal a partir da credencial apresentada.
// Credencial vazia ou desconhecida resulta em principal não autenticado.
type IdentitySource interface {
	Resolve(ctx context.Context, token string) (Principal, error)
}

// AccessRequirement é declarado uma vez por recurso protegido e não muda.
type AccessRequirement struct {
	RequireAuth  bool
	RequireRoles CapabilitySet
	// Fallback nomeia a view alternativa do chamador; vazio = "acesso negado" genérico.
	Fallback string
}

type DecisionState uint8

const (
	DecisionPending DecisionState = iota
	DecisionDenied
	DecisionGranted
)

func (s DecisionState) String() string {
	switch s {
	case DecisionDenied:
		return "denied"
	case DecisionGranted:
		return "granted"
	default:
		return "pending"
	}
}

type DenyReason string

const (
	ReasonNone   DenyReason = ""
	ReasonAuth   DenyReason = "auth"
	ReasonFarmer DenyReason = "farmer"
	ReasonAdmin  DenyReason = "admin"
)

// AccessDecision é o resultado tri-state do motor de autorização.
type AccessDecision struct {
	State  DecisionState
	Reason DenyReason
}

var (
	Pending = AccessDecision{State: DecisionPending}
	Granted = AccessDecision{State: DecisionGranted}
)

func Denied(reason DenyReason) AccessDecision {
	return AccessDecision{State: DecisionDenied, Reason: reason}
}

func (d AccessDecision) Denied() bool { return d.State == DecisionDenied }

func (d AccessDecision) Granted() bool { return d.State == DecisionGranted }

// Message é o texto mostrado ao usuário numa negação.
func (d AccessDecision) Message() string {
	switch {
	case d.State != DecisionDenied:
		return ""
	case d.Reason == ReasonAuth:
		return "authentication required"
	default:
		return string(d.Reason) + " access required"
	}
}

// AccessDeniedError leva a negação para quem trabalha com error.
type AccessDeniedError struct {
	Reason DenyReason
}

func (e *AccessDeniedError) Error() string {
	return "access denied: " + Denied(e.Reason).Message()
}

// RedirectPlan descreve um redirecionamento atrasado.
type RedirectPlan struct {
	Target string
	After  time.Duration
}

// Scheduler agenda fn para depois de d. cancel devolve true se impediu a execução.
// fn nunca roda dentro da própria chamada a AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (cancel func() bool)
}

// Navigator executa o redirecionamento na view hospedeira.
type Navigator interface {
	Redirect(target string)
}

type NavigatorFunc func(target string)

func (f NavigatorFunc) Redirect(target string) { f(target) }
