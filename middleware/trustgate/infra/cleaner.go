package infra

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	schemePattern  = regexp.MustCompile(`(?i)(?:java|vb)script\s*:|data\s*:\s*text/html`)
	handlerPattern = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
)

// HTMLCleaner remove toda marcação (conteúdo de <script>/<style> inclusive),
// escapa o que sobrar de caracteres de marcação e tira esquemas de script e
// handlers inline. Aplicar duas vezes dá o mesmo resultado que aplicar uma.
type HTMLCleaner struct {
	policy *bluemonday.Policy
}

func NewHTMLCleaner() *HTMLCleaner {
	return &HTMLCleaner{policy: bluemonday.StrictPolicy()}
}

// Clean implementa domain.TextCleaner.
//
// Repete pass até o ponto fixo: remover um esquema pode juntar outro
// ("javajavascript:script:"), então um número fixo de passadas não basta.
// Cada passada produtiva encolhe o texto, o limite por tamanho só protege
// contra um laço que não convirja.
func (c *HTMLCleaner) Clean(s string) string {
	out := c.pass(s)
	for i := 0; i <= len(s); i++ {
		next := c.pass(out)
		if next == out {
			return out
		}
		out = next
	}
	return out
}

func (c *HTMLCleaner) pass(s string) string {
	s = c.policy.Sanitize(s)
	s = schemePattern.ReplaceAllString(s, "")
	s = handlerPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
