// Package application contém os casos de uso do trust gate: rate limit por
// chave, sanitização, o gate de submissão de formulários e o motor de decisão
// de acesso.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Form.Submit(ctx, payload, action) devolve o payload validado ou um erro
// tipado (domain.ErrRateLimited, domain.ErrTooFast, *domain.ValidationError...).
package application
