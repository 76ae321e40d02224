package trustgate

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled int
	cancelled int
}

func (s *recordingScheduler) AfterFunc(time.Duration, func()) func() bool {
	s.mu.Lock()
	s.scheduled++
	s.mu.Unlock()
	return func() bool {
		s.mu.Lock()
		s.cancelled++
		s.mu.Unlock()
		return true
	}
}

func (s *recordingScheduler) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled, s.cancelled
}

func dialWatch(t *testing.T, g *Gate, route, token string) *websocket.Conn {
	t.Helper()
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/watch/*", g.WatchHandler())
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/watch"+route, header)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) watchEvent {
	t.Helper()
	var ev watchEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestWatchHandler_AnonymousIsRedirectedOnce(t *testing.T) {
	g, _, _ := newTestGate(t, func(o *Options) { o.Policy.RedirectDelay = 20 * time.Millisecond })
	conn := dialWatch(t, g, "/account", "")

	ev := readEvent(t, conn)
	if ev.Type != "notification" || ev.Notification == nil || ev.Notification.Message != "authentication required" {
		t.Fatalf("expected auth notification first, got %+v", ev)
	}
	ev = readEvent(t, conn)
	if ev.Type != "decision" || ev.Decision == nil || ev.Decision.Reason != "auth" {
		t.Fatalf("expected denied(auth) decision, got %+v", ev)
	}
	ev = readEvent(t, conn)
	if ev.Type != "redirect" || ev.Redirect == nil || ev.Redirect.To != "/auth" {
		t.Fatalf("expected redirect to /auth, got %+v", ev)
	}

	// depois do redirect a view é encerrada pelo servidor.
	var next watchEvent
	err := conn.ReadJSON(&next)
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close after redirect, got %v (%+v)", err, next)
	}
}

func TestWatchHandler_TokenRefreshReevaluates(t *testing.T) {
	g, _, _ := newTestGate(t, nil)
	conn := dialWatch(t, g, "/farmer/dashboard", "plain")

	var denied bool
	for !denied {
		ev := readEvent(t, conn)
		denied = ev.Type == "decision" && ev.Decision.Reason == "farmer"
	}

	if err := conn.WriteJSON(watchMessage{Token: "grower"}); err != nil {
		t.Fatalf("write token: %v", err)
	}
	for {
		ev := readEvent(t, conn)
		if ev.Type == "decision" {
			if ev.Decision.Decision != "granted" {
				t.Fatalf("expected granted after refresh, got %+v", ev.Decision)
			}
			return
		}
	}
}

func TestWatchHandler_DisconnectCancelsPendingRedirect(t *testing.T) {
	sched := &recordingScheduler{}
	g, _, _ := newTestGate(t, func(o *Options) { o.Scheduler = sched })
	conn := dialWatch(t, g, "/account", "")

	for {
		if ev := readEvent(t, conn); ev.Type == "decision" {
			break
		}
	}
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		scheduled, cancelled := sched.counts()
		if scheduled == 1 && cancelled == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 scheduled and 1 cancelled redirect, got %d/%d", scheduled, cancelled)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMount_OpenWatchDoesNotHoldAConcurrencySlot(t *testing.T) {
	g, _, _ := newTestGate(t, nil)
	r := chi.NewRouter()
	g.Mount(r, ConcurrencyMiddleware(ConcurrencyOptions{
		Max:            1,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: 50 * time.Millisecond,
	}))
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/watch/public", nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if ev := readEvent(t, conn); ev.Type == "decision" {
			break
		}
	}

	// com a view aberta, a única vaga continua livre para o formulário.
	body := `{"name":"Bob","email":"bob@example.com"}`
	resp, err := http.Post(ts.URL+"/forms/contact", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post form: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with a watch open, got %d", resp.StatusCode)
	}
}
