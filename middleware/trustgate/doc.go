// Package trustgate fornece adapters HTTP (net/http + chi) para o trust gate:
// o gate de submissão de formulários e o motor de decisão de acesso.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (admissão, debounce, sanitização, decisão de acesso) sem net/http
//   - infra: implementações concretas (janelas em memória/Redis, bluemonday, YAML, semáforo)
//   - trustgate (este pacote): handlers HTTP + wiring/extração de chave + tradução para status/headers
//
// Fluxo de uma submissão no gateway:
//
//  1. Extrai a chave do cliente (header/XFF/IP) e acha a instância do formulário
//  2. Chama application.Form.Submit: em voo -> rate limit -> debounce -> sanitiza -> valida -> ação
//  3. Traduz o desfecho: 200, 409, 429 (+Retry-After), 422 (violações) ou 502
//  4. Devolve as notificações geradas junto com a resposta
//
// Rotas protegidas passam por RequireAccess: 401 (auth, com plano de redirect),
// 403 (papel), 503 (identidade pendente) ou seguem para o próximo handler.
//
// WatchHandler mantém uma view aberta via WebSocket: a decisão é recalculada a
// cada nova credencial e o redirect de "não autenticado" chega como evento.
package trustgate
