package nextevi

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestClosePolicy(t *testing.T) {
	cases := []struct {
		code int
		want closeAction
	}{
		{websocket.CloseNormalClosure, closeNormal},
		{websocket.CloseGoingAway, closeTransient},
		{websocket.CloseAbnormalClosure, closeTransient},
		{3999, closeTransient},
		{4000, closeRejected},
		{4500, closeRejected},
	}
	for _, tc := range cases {
		if got := closePolicy(tc.code); got != tc.want {
			t.Errorf("closePolicy(%d)=%v want %v", tc.code, got, tc.want)
		}
	}
}

// wsServer is a test WebSocket endpoint that hands each accepted
// connection to handle on its own goroutine.
type wsServer struct {
	srv    *httptest.Server
	mu     sync.Mutex
	conns  int
	handle func(n int, conn *websocket.Conn)
}

func newWSServer(t *testing.T, handle func(n int, conn *websocket.Conn)) *wsServer {
	t.Helper()
	ws := &wsServer{handle: handle}
	upgrader := websocket.Upgrader{}
	ws.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.mu.Lock()
		ws.conns++
		n := ws.conns
		ws.mu.Unlock()
		ws.handle(n, conn)
	}))
	t.Cleanup(ws.srv.Close)
	return ws
}

func (ws *wsServer) url() string {
	return "ws" + strings.TrimPrefix(ws.srv.URL, "http")
}

func (ws *wsServer) connCount() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.conns
}

// stateRecorder collects transport state transitions.
type stateRecorder struct {
	mu     sync.Mutex
	states []ConnectionState
	errs   []*Error
}

func (r *stateRecorder) record(s ConnectionState, err *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
	if err != nil {
		r.errs = append(r.errs, err)
	}
}

func (r *stateRecorder) last() ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return StateDisconnected
	}
	return r.states[len(r.states)-1]
}

func (r *stateRecorder) firstError(code string) *Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.errs {
		if e.Code == code {
			return e
		}
	}
	return nil
}

func (r *stateRecorder) errorCount(code string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.errs {
		if e.Code == code {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestTransport(url string, policy SessionPolicy, rec *stateRecorder) *transport {
	tr := newTransport(
		func(sessionID string) string { return url + "/" + sessionID },
		policy.withDefaults(),
		time.Second,
		slog.Default(),
	)
	tr.onState = rec.record
	tr.onFrame = func(int, []byte) {}
	return tr
}

func TestTransportOpenClose(t *testing.T) {
	ws := newWSServer(t, func(n int, conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	rec := &stateRecorder{}
	tr := newTestTransport(ws.url(), SessionPolicy{}, rec)

	if err := tr.open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if tr.currentState() != StateConnected {
		t.Fatalf("state=%v", tr.currentState())
	}
	if tr.currentSessionID() == "" {
		t.Error("want a fresh session id per attempt")
	}

	// A second open on a live transport is a hard error.
	if err := tr.open(context.Background()); ErrorCode(err) != ErrCodeAlreadyConnected {
		t.Errorf("second open: %v", err)
	}

	if err := tr.close("bye"); err != nil {
		t.Fatal(err)
	}
	if tr.currentState() != StateDisconnected {
		t.Errorf("state=%v", tr.currentState())
	}
	// close is idempotent.
	if err := tr.close("again"); err != nil {
		t.Fatal(err)
	}
}

func TestTransportOpenWhileConnecting(t *testing.T) {
	rec := &stateRecorder{}
	tr := newTestTransport("ws://127.0.0.1:0", SessionPolicy{}, rec)
	tr.setState(StateConnecting)

	// Duplicate caller-side invocation must be a silent no-op.
	if err := tr.open(context.Background()); err != nil {
		t.Errorf("open while connecting: %v", err)
	}
}

func TestTransportConnectFailed(t *testing.T) {
	rec := &stateRecorder{}
	// Port 0 never accepts.
	tr := newTestTransport("ws://127.0.0.1:0", SessionPolicy{}, rec)

	err := tr.open(context.Background())
	if ErrorCode(err) != ErrCodeConnectFailed {
		t.Errorf("err=%v", err)
	}
	if tr.currentState() != StateDisconnected {
		t.Errorf("state=%v", tr.currentState())
	}
}

func TestTransportSendWhenDisconnected(t *testing.T) {
	rec := &stateRecorder{}
	tr := newTestTransport("ws://127.0.0.1:0", SessionPolicy{}, rec)

	// Must not panic or error: the hot path never throws.
	tr.send(websocket.BinaryMessage, []byte{1, 2, 3})
	tr.sendJSON(map[string]string{"type": "x"})
}

func TestTransportNormalServerClose(t *testing.T) {
	ws := newWSServer(t, func(n int, conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
	})

	rec := &stateRecorder{}
	tr := newTestTransport(ws.url(), SessionPolicy{ReconnectBaseDelay: time.Millisecond}, rec)
	if err := tr.open(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "disconnect", func() bool { return tr.currentState() == StateDisconnected })
	time.Sleep(20 * time.Millisecond)
	if ws.connCount() != 1 {
		t.Errorf("normal closure must not reconnect, conns=%d", ws.connCount())
	}
	if rec.errorCount(ErrCodeMaxReconnectExceeded) != 0 {
		t.Error("normal closure must not surface an error")
	}
}

func TestTransportApplicationRejection(t *testing.T) {
	ws := newWSServer(t, func(n int, conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(4401, "invalid api key")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
	})

	rec := &stateRecorder{}
	tr := newTestTransport(ws.url(), SessionPolicy{ReconnectBaseDelay: time.Millisecond}, rec)
	if err := tr.open(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "error state", func() bool { return tr.currentState() == StateError })
	time.Sleep(20 * time.Millisecond)
	if ws.connCount() != 1 {
		t.Errorf("rejection must not retry, conns=%d", ws.connCount())
	}
	if rec.errorCount(ErrCodeWebSocket) != 1 {
		t.Errorf("websocket error signals=%d", rec.errorCount(ErrCodeWebSocket))
	}
	err := rec.firstError(ErrCodeWebSocket)
	if err.CloseCode != 4401 || err.Message != "invalid api key" {
		t.Errorf("got %+v", err)
	}
	// Backend error frames keep their own code; a transport rejection
	// must not masquerade as one.
	if rec.errorCount(ErrCodeServerError) != 0 {
		t.Errorf("server error signals=%d", rec.errorCount(ErrCodeServerError))
	}
}

func TestTransportReconnectRecovers(t *testing.T) {
	ws := newWSServer(t, func(n int, conn *websocket.Conn) {
		if n == 1 {
			// Drop without a close handshake: abnormal closure.
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	rec := &stateRecorder{}
	tr := newTestTransport(ws.url(), SessionPolicy{ReconnectBaseDelay: time.Millisecond}, rec)
	reconnected := make(chan struct{}, 1)
	tr.onReconnected = func() { reconnected <- struct{}{} }

	if err := tr.open(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := tr.currentSessionID()

	select {
	case <-reconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("no reconnect")
	}
	if tr.currentState() != StateConnected {
		t.Errorf("state=%v", tr.currentState())
	}
	if tr.currentSessionID() == first {
		t.Error("reconnect must use a fresh session id")
	}
	tr.close("")
}

func TestTransportReconnectBound(t *testing.T) {
	ws := newWSServer(t, func(n int, conn *websocket.Conn) {
		// Every connection dies abnormally.
		conn.Close()
	})

	rec := &stateRecorder{}
	tr := newTestTransport(ws.url(), SessionPolicy{
		MaxReconnectAttempts: 3,
		ReconnectBaseDelay:   time.Millisecond,
	}, rec)

	if err := tr.open(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "terminal error", func() bool { return tr.currentState() == StateError })
	time.Sleep(50 * time.Millisecond)

	// 1 initial + 3 retries, then give up.
	if ws.connCount() != 4 {
		t.Errorf("conns=%d want 4", ws.connCount())
	}
	if got := rec.errorCount(ErrCodeMaxReconnectExceeded); got != 1 {
		t.Errorf("MaxReconnectExceeded signals=%d want exactly 1", got)
	}
}

func TestTransportCloseCancelsBackoff(t *testing.T) {
	ws := newWSServer(t, func(n int, conn *websocket.Conn) {
		conn.Close()
	})

	rec := &stateRecorder{}
	tr := newTestTransport(ws.url(), SessionPolicy{
		MaxReconnectAttempts: 3,
		ReconnectBaseDelay:   200 * time.Millisecond,
	}, rec)

	if err := tr.open(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "retry scheduled", func() bool { return tr.currentState() == StateConnecting })

	tr.close("teardown")
	time.Sleep(300 * time.Millisecond)
	if ws.connCount() != 1 {
		t.Errorf("backoff fired after close, conns=%d", ws.connCount())
	}
	if tr.currentState() != StateDisconnected {
		t.Errorf("state=%v", tr.currentState())
	}
}
