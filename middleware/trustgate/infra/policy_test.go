package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"trust-gate/middleware/trustgate/domain"

	"github.com/stretchr/testify/require"
)

const samplePolicy = `
signInPath: /login
redirectDelay: 2s
routes:
  /account:
    requireAuth: true
  /farmer/dashboard:
    requireAuth: true
    requireRoles: [Farmer]
    fallback: farmer-signup
  /public:
forms:
  contact:
    maxAttempts: 3
    minInterval: 1500ms
    successMessage: Thanks!
    fields:
      - {name: email, required: true, pattern: "^[^@]+@[^@]+$"}
      - {name: age, kind: number, min: 18}
  feedback:
principals:
  - {id: u1, token: t1, capabilities: [farmer]}
  - {id: root, token: t2, capabilities: [admin, farmer]}
`

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]byte(samplePolicy))
	require.NoError(t, err)

	require.Equal(t, "/login", p.SignInPath)
	require.Equal(t, 2*time.Second, p.RedirectDelay)

	dash := p.Routes["/farmer/dashboard"].Requirement()
	require.True(t, dash.RequireAuth)
	require.True(t, dash.RequireRoles.Has(domain.CapabilityFarmer))
	require.Equal(t, "farmer-signup", dash.Fallback)

	// rota declarada sem corpo vira pública
	require.NotNil(t, p.Routes["/public"])
	require.False(t, p.Routes["/public"].Requirement().RequireAuth)

	contact := p.Forms["contact"]
	require.Equal(t, 3, contact.MaxAttempts)
	require.Equal(t, 1500*time.Millisecond, contact.MinInterval)
	require.Equal(t, "Thanks!", contact.SuccessMessage)
	require.Len(t, contact.Fields, 2)
	require.NotNil(t, contact.Fields[1].Min)
	require.Equal(t, 18.0, *contact.Fields[1].Min)

	// schema já compilado: o padrão é usado sem recompilar.
	_, err = contact.Schema.Validate(decode(t, `{"email":"bad"}`))
	require.Error(t, err)

	require.NotNil(t, p.Forms["feedback"])
	require.Len(t, p.Principals, 2)
}

func TestParsePolicy_Errors(t *testing.T) {
	cases := map[string]string{
		"relative route":    "routes:\n  account: {requireAuth: true}\n",
		"negative attempts": "forms:\n  f: {maxAttempts: -1}\n",
		"bad pattern":       "forms:\n  f:\n    fields: [{name: x, pattern: \"(\"}]\n",
		"missing token":     "principals:\n  - {id: u1}\n",
		"duplicated token":  "principals:\n  - {id: a, token: t}\n  - {id: b, token: t}\n",
		"invalid yaml":      "routes: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(raw))
			require.Error(t, err)
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePolicy), 0o600))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	require.Len(t, p.Routes, 3)

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
