package nextevi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// closeAction is the retry decision for a WebSocket close code.
type closeAction int

const (
	closeNormal    closeAction = iota // graceful, no error
	closeRejected                     // application-level rejection, terminal
	closeTransient                    // network failure, retry path
)

// rejectedCloseCode is the lower bound of the reserved range the backend
// uses for application-level rejections.
const rejectedCloseCode = 4000

// closePolicy maps a close code to its retry decision. Kept as a pure
// table so retry policy is testable apart from socket plumbing.
func closePolicy(code int) closeAction {
	switch {
	case code == websocket.CloseNormalClosure:
		return closeNormal
	case code >= rejectedCloseCode:
		return closeRejected
	default:
		return closeTransient
	}
}

// transport owns the one live socket of a session: dialing, the read
// loop, explicit close, and the reconnect timer. Exactly one transport
// exists per connection attempt sequence; the session orchestrator
// creates a fresh one on every Connect.
type transport struct {
	dialer   *websocket.Dialer
	buildURL func(sessionID string) string
	policy   SessionPolicy
	log      *slog.Logger

	// onState fires on every connection state transition; err is non-nil
	// only for terminal failures. onFrame receives every inbound frame in
	// arrival order from the single read goroutine. onReconnected fires
	// after an automatic reconnect re-establishes the socket.
	onState       func(ConnectionState, *Error)
	onFrame       func(messageType int, data []byte)
	onReconnected func()

	writeMu sync.Mutex

	mu         sync.Mutex
	conn       *websocket.Conn
	state      ConnectionState
	sessionID  string
	attempt    int
	closed     bool
	retryTimer *time.Timer
}

func newTransport(buildURL func(string) string, policy SessionPolicy, timeout time.Duration, log *slog.Logger) *transport {
	return &transport{
		dialer:   &websocket.Dialer{HandshakeTimeout: timeout},
		buildURL: buildURL,
		policy:   policy,
		log:      log,
		state:    StateDisconnected,
	}
}

// open establishes the socket. A second call while connected fails with
// ErrCodeAlreadyConnected; a call while a dial is in flight is an
// idempotent no-op.
func (t *transport) open(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case StateConnected:
		t.mu.Unlock()
		return newError(ErrCodeAlreadyConnected, "transport already connected")
	case StateConnecting:
		t.mu.Unlock()
		return nil
	}
	t.attempt = 0
	t.state = StateConnecting
	t.mu.Unlock()
	t.notify(StateConnecting, nil)

	return t.dial(ctx, false)
}

func (t *transport) dial(ctx context.Context, reconnect bool) error {
	// Fresh session id per attempt, used to correlate server messages.
	sessionID := uuid.New().String()

	conn, resp, err := t.dialer.DialContext(ctx, t.buildURL(sessionID), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if reconnect {
			// A failed redial counts as another transient failure.
			t.scheduleRetry()
			return err
		}
		t.setState(StateDisconnected)
		t.notify(StateDisconnected, nil)
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return wrapError(ErrCodeConnectTimeout, "handshake timed out", err)
		}
		return wrapError(ErrCodeConnectFailed, "failed to open socket", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return newError(ErrCodeConnectFailed, "transport closed during dial")
	}
	t.conn = conn
	t.sessionID = sessionID
	t.state = StateConnected
	t.mu.Unlock()

	t.notify(StateConnected, nil)
	if reconnect && t.onReconnected != nil {
		t.onReconnected()
	}
	go t.readLoop(conn)
	return nil
}

// send writes one frame. It silently no-ops when not connected: audio
// frames race the connection lifecycle and must never error the hot path.
func (t *transport) send(messageType int, data []byte) {
	t.mu.Lock()
	conn := t.conn
	connected := t.state == StateConnected
	t.mu.Unlock()
	if !connected || conn == nil {
		t.log.Debug("dropping frame while not connected", "len", len(data))
		return
	}

	t.writeMu.Lock()
	err := conn.WriteMessage(messageType, data)
	t.writeMu.Unlock()
	if err != nil {
		t.log.Warn("frame write failed", "err", err)
	}
}

func (t *transport) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		t.log.Warn("control frame marshal failed", "err", err)
		return
	}
	t.send(websocket.TextMessage, data)
}

// close tears the socket down gracefully. The closed flag is set before
// the socket drops so the read loop never schedules a reconnect for an
// explicit close. Safe to call twice.
func (t *transport) close(reason string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.retryTimer != nil {
		t.retryTimer.Stop()
		t.retryTimer = nil
	}
	conn := t.conn
	t.conn = nil
	t.state = StateDisconnected
	t.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		t.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		t.writeMu.Unlock()
		conn.Close()
	}
	t.notify(StateDisconnected, nil)
	return nil
}

func (t *transport) currentSessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

func (t *transport) currentState() ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *transport) readLoop(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.handleClosed(conn, err)
			return
		}
		if t.log.Enabled(context.Background(), slog.LevelDebug) && messageType == websocket.TextMessage {
			t.log.Debug("received frame", "len", len(data), "content", truncateForLog(data))
		}

		t.mu.Lock()
		stale := t.conn != conn
		t.mu.Unlock()
		if stale {
			return
		}
		t.onFrame(messageType, data)
	}
}

// handleClosed handles the end of a read loop: normal closure goes quiet,
// an application rejection is terminal, anything else enters the retry
// path.
func (t *transport) handleClosed(conn *websocket.Conn, err error) {
	conn.Close()

	t.mu.Lock()
	if t.closed || t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.mu.Unlock()

	code := websocket.CloseAbnormalClosure
	reason := err.Error()
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code = ce.Code
		if ce.Text != "" {
			reason = ce.Text
		}
	}

	switch closePolicy(code) {
	case closeNormal:
		t.setState(StateDisconnected)
		t.notify(StateDisconnected, nil)
	case closeRejected:
		t.setState(StateError)
		t.notify(StateError, &Error{Code: ErrCodeWebSocket, Message: reason, CloseCode: code})
	case closeTransient:
		t.log.Warn("connection lost", "code", code, "reason", reason)
		t.scheduleRetry()
	}
}

// scheduleRetry arms the backoff timer for the next reconnect attempt,
// or gives up with ErrCodeMaxReconnectExceeded past the cap.
func (t *transport) scheduleRetry() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.attempt++
	attempt := t.attempt
	if attempt > t.policy.MaxReconnectAttempts {
		t.state = StateError
		t.mu.Unlock()
		t.notify(StateError, newError(ErrCodeMaxReconnectExceeded,
			"giving up after %d reconnect attempts", attempt-1))
		return
	}
	delay := t.policy.ReconnectBaseDelay << (attempt - 1)
	t.state = StateConnecting
	t.retryTimer = time.AfterFunc(delay, t.redial)
	t.mu.Unlock()

	t.log.Debug("reconnect scheduled", "attempt", attempt, "delay", delay)
	t.notify(StateConnecting, nil)
}

func (t *transport) redial() {
	t.mu.Lock()
	if t.closed || t.state != StateConnecting {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), t.dialer.HandshakeTimeout)
	defer cancel()
	t.dial(ctx, true)
}

func (t *transport) setState(s ConnectionState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *transport) notify(s ConnectionState, err *Error) {
	if t.onState != nil {
		t.onState(s, err)
	}
}

func truncateForLog(data []byte) string {
	const max = 500
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
