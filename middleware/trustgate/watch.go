package trustgate

import (
	"context"
	"net/http"
	"strings"
	"time"

	"trust-gate/middleware/trustgate/application"
	"trust-gate/middleware/trustgate/domain"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const watchWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{HandshakeTimeout: 10 * time.Second}

// watchMessage é o que a view envia: a credencial atual, sempre que muda.
type watchMessage struct {
	Token string `json:"token"`
}

type watchEvent struct {
	Type         string               `json:"type"` // decision | notification | redirect
	Decision     *decisionResponse    `json:"decision,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Redirect     *redirectBody        `json:"redirect,omitempty"`
}

// WatchHandler atende GET /watch/* via WebSocket.
//
// Cada conexão é uma view aberta hospedando um application.Guard. A decisão é
// recalculada quando a view manda uma nova credencial e a cada WatchEvery.
// Quando o redirect agendado dispara, o evento "redirect" é enviado e a
// conexão fecha. Desconectar antes disso cancela o redirect pendente.
func (g *Gate) WatchHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		req := g.Requirement(route)
		token := bearerToken(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		// os deadlines do http.Server não valem para a conexão sequestrada.
		_ = conn.SetReadDeadline(time.Time{})

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		events := make(chan watchEvent, 8)
		send := func(ev watchEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		engine := g.engine
		engine.Notifier = domain.NotifierFunc(func(nctx context.Context, n domain.Notification) {
			if g.opts.Notifier != nil {
				g.opts.Notifier.Notify(nctx, n)
			}
			send(watchEvent{Type: "notification", Notification: &n})
		})
		nav := domain.NavigatorFunc(func(target string) {
			send(watchEvent{Type: "redirect", Redirect: &redirectBody{To: target}})
		})
		guard := application.NewGuard(ctx, engine, route, req, g.opts.Scheduler, nav)
		defer guard.Close()

		tokens := make(chan string)
		go readTokens(ctx, cancel, conn, tokens)
		go g.watch(ctx, guard, route, req, token, tokens, send)

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
				if ev.Type == "redirect" {
					msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "redirect")
					_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
					return
				}
			}
		}
	})
}

// readTokens repassa as credenciais enviadas pela view. Erro de leitura
// (inclusive fechamento pelo cliente) encerra a view.
func readTokens(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, tokens chan<- string) {
	defer cancel()
	for {
		var msg watchMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		select {
		case tokens <- strings.TrimSpace(msg.Token):
		case <-ctx.Done():
			return
		}
	}
}

// watch reavalia a view até o ctx terminar e publica cada mudança de decisão.
func (g *Gate) watch(ctx context.Context, guard *application.Guard, route string, req domain.AccessRequirement, token string, tokens <-chan string, send func(watchEvent)) {
	t := time.NewTicker(g.opts.WatchEvery)
	defer t.Stop()

	var last *domain.AccessDecision
	for {
		p, err := g.opts.Identity.Resolve(ctx, token)
		if err != nil {
			p = domain.Principal{Loading: true}
		}
		d := guard.Update(p)
		if last == nil || *last != d {
			last = &d
			body := g.decisionBody(route, req, d)
			send(watchEvent{Type: "decision", Decision: &body})
		}

		select {
		case <-ctx.Done():
			return
		case token = <-tokens:
		case <-t.C:
		}
	}
}
