package trustgate

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mount registra as rotas do gate em r e devolve o grupo onde limit vale.
//
// GET /watch/* fica fora de limit: cada view aberta segura a conexão pela vida
// toda e, dentro do limite, umas poucas views esgotariam as vagas do resto.
// POST /forms/{form} e GET /access/* já ficam no grupo; o chamador pendura
// ali as rotas protegidas e o proxy.
func (g *Gate) Mount(r chi.Router, limit func(http.Handler) http.Handler) chi.Router {
	r.Method(http.MethodGet, "/watch/*", g.WatchHandler())

	capped := r.With()
	if limit != nil {
		capped = r.With(limit)
	}
	capped.Method(http.MethodPost, "/forms/{form}", g.SubmitHandler())
	capped.Method(http.MethodGet, "/access/*", g.AccessHandler())
	return capped
}
