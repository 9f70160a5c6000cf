package nextevi

import (
	"context"

	"github.com/gorilla/websocket"
)

// Connect validates config, acquires the audio devices, opens the
// socket, negotiates session settings and starts streaming. Any failure
// past validation rolls the attempt fully back, so no socket or device
// leaks from a partial connect.
//
// Calling Connect while a session is connecting or active is an
// idempotent no-op.
func (c *Client) Connect(ctx context.Context, config *ConnectConfig) error {
	// Pre-flight: nothing is acquired before validation passes.
	if err := config.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.phase != phaseIdle {
		c.mu.Unlock()
		c.cfg.log.Debug("connect ignored: session already active")
		return nil
	}
	c.phase = phaseConnecting
	gen := c.gen
	c.mu.Unlock()

	cfg := *config
	cfg.Settings = cfg.Settings.withDefaults()
	cfg.Policy = cfg.Policy.withDefaults()

	tr := newTransport(
		func(sessionID string) string { return cfg.endpointURL(c.cfg.baseURL, sessionID) },
		cfg.Policy,
		c.cfg.handshakeTimeout,
		c.cfg.log,
	)
	bridge := newAudioBridge(
		c.cfg.io,
		cfg.Settings.format(),
		func(frame []byte) { tr.send(websocket.BinaryMessage, frame) },
		c.conv.SetTTSPlaying,
		c.cfg.log,
	)

	tr.onState = func(s ConnectionState, err *Error) {
		c.conv.SetConnectionState(s, err)
	}
	tr.onFrame = func(messageType int, data []byte) {
		c.route(bridge, messageType, data)
	}
	// Reconnection reuses the last-known session configuration. Buffered
	// audio is not replayed.
	tr.onReconnected = func() {
		c.resendSettings()
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return newError(ErrCodeConnectFailed, "connect canceled by disconnect")
	}
	c.tr = tr
	c.bridge = bridge
	c.active = &cfg
	c.mu.Unlock()

	// Audio first: a refused microphone prompt costs no socket. Capture
	// frames produced before the socket opens are dropped by the
	// transport's not-connected no-op send.
	if err := bridge.start(ctx); err != nil {
		c.abortConnect(ctx, tr, bridge)
		return err
	}
	// io.Start may have suspended on a permission prompt. A Disconnect
	// that landed meanwhile ran cleanup against a device that was still
	// being acquired; this attempt is the only owner that sees it started.
	if c.canceled(gen) {
		c.abortConnect(ctx, tr, bridge)
		return newError(ErrCodeConnectFailed, "connect canceled by disconnect")
	}
	if err := tr.open(ctx); err != nil {
		c.abortConnect(ctx, tr, bridge)
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.abortConnect(ctx, tr, bridge)
		return newError(ErrCodeConnectFailed, "connect canceled by disconnect")
	}
	c.phase = phaseActive
	c.mu.Unlock()

	tr.sendJSON(cfg.settingsFrame())
	c.conv.SetRecording(true)
	c.conv.AppendSystem("Connected to voice session")
	return nil
}

func (c *Client) canceled(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen != gen
}

// abortConnect rolls one Connect attempt back through its own handles.
// The shared fields may already belong to nobody (or to a newer attempt)
// when a Disconnect raced this one, so teardown always targets the
// attempt's own transport and bridge, both idempotent.
func (c *Client) abortConnect(ctx context.Context, tr *transport, bridge *audioBridge) {
	c.mu.Lock()
	owned := c.tr == tr
	if owned {
		c.tr, c.bridge, c.active = nil, nil, nil
		c.phase = phaseIdle
	}
	c.mu.Unlock()

	tr.close("connect aborted")
	bridge.clearPlayback()
	if err := bridge.stop(ctx); err != nil {
		c.cfg.log.Warn("audio teardown failed", "err", err)
	}
	if owned {
		c.conv.SetRecording(false)
	}
}

// Disconnect tears the session down: socket, audio devices, backoff
// timers and registered handlers, then resets the conversation state.
// It is best-effort, never fails, and is safe to call at any point in
// the lifecycle, including mid-Connect and twice in a row.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	idle := c.phase == phaseIdle && c.tr == nil
	c.mu.Unlock()
	if idle {
		return nil
	}
	c.cleanup(ctx)
	c.conv.Reset()
	return nil
}

// cleanup is the idempotent teardown behind Disconnect. Bumping gen
// cancels any Connect currently suspended in device acquisition or dial.
func (c *Client) cleanup(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	tr, bridge := c.tr, c.bridge
	c.tr, c.bridge, c.active = nil, nil, nil
	c.phase = phaseIdle
	c.mu.Unlock()

	if tr != nil {
		tr.close("client disconnect")
	}
	if bridge != nil {
		bridge.clearPlayback()
		if err := bridge.stop(ctx); err != nil {
			c.cfg.log.Warn("audio teardown failed", "err", err)
		}
	}
	c.conv.SetRecording(false)
}

// SendTextMessage appends a synthetic final user message to the
// conversation. Test/debug path; no audio is involved.
func (c *Client) SendTextMessage(content string) {
	if content == "" {
		return
	}
	c.conv.AppendUserText(content)
}

// SendSessionSettings renegotiates audio format and idle policy on the
// open session. A no-op when disconnected.
func (c *Client) SendSessionSettings(settings SessionSettings, policy SessionPolicy) {
	c.mu.Lock()
	if c.active != nil {
		c.active.Settings = settings.withDefaults()
		c.active.Policy = policy.withDefaults()
	}
	c.mu.Unlock()
	c.resendSettings()
}

func (c *Client) resendSettings() {
	c.mu.Lock()
	tr := c.tr
	var frame any
	if c.active != nil {
		frame = c.active.settingsFrame()
	}
	c.mu.Unlock()
	if tr == nil || frame == nil {
		return
	}
	tr.sendJSON(frame)
}

// ClearMessages empties the conversation log without touching connection
// or audio state.
func (c *Client) ClearMessages() {
	c.conv.ClearMessages()
}

// route is the event router: binary frames go straight to playback,
// textual frames decode into typed events. Malformed or unrecognized
// frames are logged and dropped; they never crash an active session.
func (c *Client) route(bridge *audioBridge, messageType int, data []byte) {
	if messageType == websocket.BinaryMessage {
		bridge.enqueuePlayback(data)
		return
	}

	ev, err := decodeEvent(data)
	if err != nil {
		c.cfg.log.Warn("dropping inbound frame", "err", err)
		return
	}
	if ev == nil {
		// status frame, debug only
		c.cfg.log.Debug("status frame", "content", truncateForLog(data))
		return
	}

	switch e := ev.(type) {
	case TTSAudioEvent:
		bridge.enqueuePlayback(e.Audio)
	case InterruptionEvent:
		bridge.clearPlayback()
		c.conv.Apply(e)
	default:
		c.conv.Apply(ev)
	}
}
