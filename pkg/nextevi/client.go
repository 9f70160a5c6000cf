package nextevi

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/NextAI-Inc/nextevi-go/pkg/audioio"
)

// DefaultBaseURL is the default WebSocket endpoint.
const DefaultBaseURL = "wss://api.nextevi.com/v1/voice"

// defaultHandshakeTimeout bounds socket establishment.
const defaultHandshakeTimeout = 10 * time.Second

type connPhase int

const (
	phaseIdle connPhase = iota
	phaseConnecting
	phaseActive
)

// Client holds one voice session at a time: it owns lifecycle
// sequencing and hands the conversation state to callers through
// snapshots and subscriptions.
type Client struct {
	cfg  clientConfig
	conv *Conversation

	mu     sync.Mutex
	phase  connPhase
	active *ConnectConfig
	tr     *transport
	bridge *audioBridge

	// gen is bumped by every cleanup. A Connect that suspended (dial,
	// permission prompt) re-checks it afterwards: a mismatch means a
	// Disconnect raced the attempt and the attempt must roll back the
	// resources it acquired meanwhile.
	gen uint64
}

type clientConfig struct {
	baseURL          string
	log              *slog.Logger
	io               audioio.Capability
	handshakeTimeout time.Duration
}

// Option configures the Client.
type Option func(*clientConfig)

// WithBaseURL sets the WebSocket endpoint.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *clientConfig) {
		c.log = log
	}
}

// WithAudioIO sets the audio capture/playback collaborator. Defaults to
// audioio.Noop, the right choice for environments without audio devices.
func WithAudioIO(io audioio.Capability) Option {
	return func(c *clientConfig) {
		c.io = io
	}
}

// WithHandshakeTimeout bounds socket establishment. Defaults to 10s.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.handshakeTimeout = d
	}
}

// NewClient creates a voice session client.
func NewClient(opts ...Option) *Client {
	cfg := clientConfig{
		baseURL:          DefaultBaseURL,
		log:              slog.Default(),
		io:               audioio.Noop{},
		handshakeTimeout: defaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		cfg:  cfg,
		conv: NewConversation(),
	}
}

// State returns a snapshot of the current voice state.
func (c *Client) State() VoiceState {
	return c.conv.Snapshot()
}

// Messages returns a copy of the conversation log.
func (c *Client) Messages() []Message {
	return c.conv.Snapshot().Messages
}

// ConnectionState returns the current transport status.
func (c *Client) ConnectionState() ConnectionState {
	return c.conv.Snapshot().Connection
}

// Recording reports whether microphone capture is live.
func (c *Client) Recording() bool {
	return c.conv.Snapshot().Recording
}

// TTSPlaying reports whether synthesized audio is playing.
func (c *Client) TTSPlaying() bool {
	return c.conv.Snapshot().TTSPlaying
}

// WaitingForResponse reports whether a user turn awaits the assistant.
func (c *Client) WaitingForResponse() bool {
	return c.conv.Snapshot().WaitingForResponse
}

// LastError returns the last fatal error, if any.
func (c *Client) LastError() *Error {
	return c.conv.Snapshot().Err
}

// IdleWarning returns the current idle-timeout snapshot, if any.
func (c *Client) IdleWarning() *IdleWarning {
	return c.conv.Snapshot().IdleWarning
}

// Metadata returns the server-reported connection metadata, if received.
func (c *Client) Metadata() *ConnectionMetadata {
	return c.conv.Snapshot().Metadata
}

// SessionID returns the session id of the current connection attempt, or
// "" when disconnected.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tr == nil {
		return ""
	}
	return c.tr.currentSessionID()
}

// Subscribe registers fn to receive a snapshot after every state change.
// It returns an unsubscribe function.
func (c *Client) Subscribe(fn func(VoiceState)) func() {
	return c.conv.Subscribe(fn)
}

// Updates returns an iterator over state snapshots, one per change, until
// ctx is canceled or the consumer breaks. Slow consumers drop
// intermediate snapshots rather than blocking the session.
func (c *Client) Updates(ctx context.Context) iter.Seq[VoiceState] {
	return func(yield func(VoiceState) bool) {
		ch := make(chan VoiceState, 16)
		unsub := c.conv.Subscribe(func(s VoiceState) {
			select {
			case ch <- s:
			default:
			}
		})
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-ch:
				if !yield(s) {
					return
				}
			}
		}
	}
}
