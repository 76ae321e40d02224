package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"trust-gate/middleware/trustgate/domain"

	"gopkg.in/yaml.v3"
)

// Policy é o arquivo de política do gate: rotas protegidas, formulários e a
// tabela de principals usada pelo StaticIdentity.
//
//	signInPath: /auth
//	redirectDelay: 1500ms
//	routes:
//	  /farmer/dashboard:
//	    requireAuth: true
//	    requireRoles: [farmer]
//	forms:
//	  contact:
//	    maxAttempts: 5
//	    fields:
//	      - {name: email, required: true, pattern: "^[^@]+@[^@]+$"}
//	principals:
//	  - {id: u1, token: t1, capabilities: [farmer]}
type Policy struct {
	SignInPath    string                `yaml:"signInPath"`
	RedirectDelay time.Duration         `yaml:"redirectDelay"`
	Routes        map[string]*RouteRule `yaml:"routes"`
	Forms         map[string]*FormRule  `yaml:"forms"`
	Principals    []PrincipalRule       `yaml:"principals"`
}

type RouteRule struct {
	RequireAuth  bool     `yaml:"requireAuth"`
	RequireRoles []string `yaml:"requireRoles"`
	Fallback     string   `yaml:"fallback"`
}

// Requirement converte a regra para o tipo de domínio.
func (r RouteRule) Requirement() domain.AccessRequirement {
	caps := make([]domain.Capability, 0, len(r.RequireRoles))
	for _, role := range r.RequireRoles {
		caps = append(caps, domain.Capability(role))
	}
	return domain.AccessRequirement{
		RequireAuth:  r.RequireAuth,
		RequireRoles: domain.NewCapabilitySet(caps...),
		Fallback:     r.Fallback,
	}
}

type FormRule struct {
	MaxAttempts    int           `yaml:"maxAttempts"`
	MinInterval    time.Duration `yaml:"minInterval"`
	SuccessMessage string        `yaml:"successMessage"`
	Schema         `yaml:",inline"`
}

type PrincipalRule struct {
	ID           string   `yaml:"id"`
	Token        string   `yaml:"token"`
	Capabilities []string `yaml:"capabilities"`
}

func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return ParsePolicy(data)
}

func ParsePolicy(data []byte) (*Policy, error) {
	p := &Policy{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if p.Routes == nil {
		p.Routes = make(map[string]*RouteRule)
	}
	if p.Forms == nil {
		p.Forms = make(map[string]*FormRule)
	}

	for route, rule := range p.Routes {
		if !strings.HasPrefix(route, "/") {
			return nil, fmt.Errorf("route %q: must start with /", route)
		}
		if rule == nil {
			p.Routes[route] = &RouteRule{}
		}
	}
	for name, form := range p.Forms {
		if form == nil {
			form = &FormRule{}
			p.Forms[name] = form
		}
		if form.MaxAttempts < 0 {
			return nil, fmt.Errorf("form %q: maxAttempts must be >= 0", name)
		}
		if err := form.Schema.Compile(); err != nil {
			return nil, fmt.Errorf("form %q: %w", name, err)
		}
	}
	seen := make(map[string]bool, len(p.Principals))
	for _, pr := range p.Principals {
		if strings.TrimSpace(pr.Token) == "" {
			return nil, errors.New("principal without token")
		}
		if seen[pr.Token] {
			return nil, fmt.Errorf("principal %q: duplicated token", pr.ID)
		}
		seen[pr.Token] = true
	}
	return p, nil
}
