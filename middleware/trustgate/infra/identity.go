package infra

import (
	"context"
	"strings"

	"trust-gate/middleware/trustgate/domain"
)

// StaticIdentity resolve principals de uma tabela fixa token -> principal.
// As capacidades vêm da tabela (afirmadas pelo operador), nunca do cliente.
type StaticIdentity struct {
	byToken map[string]domain.Principal
}

func NewStaticIdentity(rules []PrincipalRule) *StaticIdentity {
	s := &StaticIdentity{byToken: make(map[string]domain.Principal, len(rules))}
	for _, r := range rules {
		caps := make([]domain.Capability, 0, len(r.Capabilities))
		for _, c := range r.Capabilities {
			caps = append(caps, domain.Capability(c))
		}
		s.byToken[strings.TrimSpace(r.Token)] = domain.Principal{
			ID:            r.ID,
			Authenticated: true,
			Capabilities:  domain.NewCapabilitySet(caps...),
		}
	}
	return s
}

// Resolve implementa domain.IdentitySource. Token vazio ou desconhecido resulta
// num principal anônimo; não é erro.
func (s *StaticIdentity) Resolve(_ context.Context, token string) (domain.Principal, error) {
	p, ok := s.byToken[strings.TrimSpace(token)]
	if !ok || token == "" {
		return domain.Principal{}, nil
	}
	return p, nil
}
