package nextevi

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConnectionState represents the transport connection status.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

// String returns the string representation of the state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Role identifies who a conversation message belongs to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleError     Role = "error"
	RoleWarning   Role = "warning"
)

// Message is one entry in the conversation log.
//
// Messages are append-only and ordered by creation. At most one message
// per role lane has Streaming set at any instant; a final event for that
// lane finalizes the streaming message in place instead of appending a
// duplicate.
type Message struct {
	ID        string
	Role      Role
	Text      string
	CreatedAt time.Time
	Streaming bool
	Final     bool

	// Attached metadata, all optional.
	Confidence float64
	Words      []WordTiming
	Emotions   []EmotionScore
	Turn       *TurnResult
}

// VoiceState is the externally observed snapshot of a session. It is
// rebuilt by applying events to prior state and never mutated outside
// the Conversation's apply step.
type VoiceState struct {
	Connection         ConnectionState
	Messages           []Message
	Recording          bool
	TTSPlaying         bool
	WaitingForResponse bool
	Err                *Error
	IdleWarning        *IdleWarning
	Metadata           *ConnectionMetadata
}

// Conversation owns the message log and derived flags. All mutation goes
// through its apply/signal entry points, one at a time under a single
// lock, so no two events are ever applied concurrently.
type Conversation struct {
	mu      sync.Mutex
	state   VoiceState
	subs    map[int]func(VoiceState)
	nextSub int
	now     func() time.Time
	newID   func() string
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{
		subs:  make(map[int]func(VoiceState)),
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// Snapshot returns a copy of the current state. The message slice is
// copied so callers can hold it across further events.
func (c *Conversation) Snapshot() VoiceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Conversation) snapshotLocked() VoiceState {
	s := c.state
	s.Messages = make([]Message, len(c.state.Messages))
	copy(s.Messages, c.state.Messages)
	return s
}

// Subscribe registers fn to be called with a snapshot after every state
// change. It returns an unsubscribe function. Callbacks run on the
// mutating goroutine, after the lock is released, so they may call back
// into the Conversation.
func (c *Conversation) Subscribe(fn func(VoiceState)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// mutate runs fn under the lock, then notifies subscribers with the
// resulting snapshot.
func (c *Conversation) mutate(fn func()) {
	c.mu.Lock()
	fn()
	var snap VoiceState
	var fns []func(VoiceState)
	if len(c.subs) > 0 {
		snap = c.snapshotLocked()
		fns = make([]func(VoiceState), 0, len(c.subs))
		for _, f := range c.subs {
			fns = append(fns, f)
		}
	}
	c.mu.Unlock()
	for _, f := range fns {
		f(snap)
	}
}

// Apply folds one inbound event into the state. It is a total function:
// every Event variant has an arm, and unhandled variants are no-ops.
func (c *Conversation) Apply(ev Event) {
	c.mutate(func() { c.applyLocked(ev) })
}

func (c *Conversation) applyLocked(ev Event) {
	switch e := ev.(type) {
	case TranscriptionEvent:
		c.applyTranscription(e)
	case LLMChunkEvent:
		c.applyLLMChunk(e)
	case EmotionEvent:
		c.applyEmotions(e)
	case MetadataEvent:
		md := e.Metadata
		c.state.Metadata = &md
	case ServerErrorEvent:
		err := newError(ErrCodeServerError, "%s", e.Message)
		if e.Code != "" {
			err.Message = fmt.Sprintf("%s (%s)", e.Message, e.Code)
		}
		c.state.Err = err
		c.appendLocked(Message{Role: RoleError, Text: e.Message, Final: true})
	case InterruptionEvent:
		c.state.TTSPlaying = false
	case SystemNoticeEvent:
		c.appendLocked(Message{Role: RoleSystem, Text: e.Text, Final: true})
	case TurnCompleteEvent:
		c.applyTurnComplete(e)
	case IdleWarningEvent:
		c.applyIdleWarning(e)
	case TTSAudioEvent:
		// Audio never touches the log; the bridge owns playback.
	}
}

// applyTranscription updates the user streaming lane.
func (c *Conversation) applyTranscription(e TranscriptionEvent) {
	if e.Text == "" {
		return
	}
	if e.Final {
		m := c.streamingLocked(RoleUser)
		if m == nil {
			m = c.appendLocked(Message{Role: RoleUser})
		}
		m.Text = e.Text
		m.Streaming = false
		m.Final = true
		m.Confidence = e.Confidence
		m.Words = e.Words
		c.state.WaitingForResponse = true
		return
	}
	m := c.streamingLocked(RoleUser)
	if m == nil {
		m = c.appendLocked(Message{Role: RoleUser, Streaming: true})
	}
	m.Text = e.Text
}

// applyLLMChunk updates the assistant streaming lane. LLM chunks are
// deltas: non-final chunks accumulate, the final chunk closes the lane.
func (c *Conversation) applyLLMChunk(e LLMChunkEvent) {
	m := c.streamingLocked(RoleAssistant)
	if m == nil {
		if e.Final {
			c.state.WaitingForResponse = false
			if e.Text == "" {
				return
			}
		} else if e.Text == "" {
			return
		}
		m = c.appendLocked(Message{Role: RoleAssistant, Streaming: true})
	}
	m.Text += e.Text
	if e.Final {
		m.Streaming = false
		m.Final = true
		c.state.WaitingForResponse = false
	}
}

// applyEmotions attaches the batch to the most recent user message that
// does not yet carry emotions. Best effort: with no such message the
// batch is dropped.
func (c *Conversation) applyEmotions(e EmotionEvent) {
	if len(e.Emotions) == 0 {
		return
	}
	for i := len(c.state.Messages) - 1; i >= 0; i-- {
		m := &c.state.Messages[i]
		if m.Role == RoleUser && len(m.Emotions) == 0 {
			m.Emotions = e.Emotions
			return
		}
	}
}

// applyTurnComplete attaches turn metadata to the most recent user
// message without it. Best effort: no match appends nothing.
func (c *Conversation) applyTurnComplete(e TurnCompleteEvent) {
	for i := len(c.state.Messages) - 1; i >= 0; i-- {
		m := &c.state.Messages[i]
		if m.Role == RoleUser && m.Turn == nil {
			r := e.Result
			m.Turn = &r
			return
		}
	}
}

func (c *Conversation) applyIdleWarning(e IdleWarningEvent) {
	c.state.IdleWarning = &IdleWarning{
		Remaining: e.Remaining,
		Final:     e.Final,
		At:        c.now(),
	}
	text := fmt.Sprintf("Session will close in %s due to inactivity", e.Remaining)
	if e.Final {
		text = fmt.Sprintf("Final warning: session closes in %s", e.Remaining)
	}
	c.appendLocked(Message{Role: RoleWarning, Text: text, Final: true})
}

// streamingLocked returns the open streaming message for the role lane.
func (c *Conversation) streamingLocked(role Role) *Message {
	for i := len(c.state.Messages) - 1; i >= 0; i-- {
		m := &c.state.Messages[i]
		if m.Role == role && m.Streaming {
			return m
		}
	}
	return nil
}

func (c *Conversation) appendLocked(m Message) *Message {
	if m.ID == "" {
		m.ID = c.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = c.now()
	}
	c.state.Messages = append(c.state.Messages, m)
	return &c.state.Messages[len(c.state.Messages)-1]
}

// SetConnectionState records a transport state transition. Entering
// Connected clears any pending error; leaving to Disconnected clears the
// idle-warning snapshot.
func (c *Conversation) SetConnectionState(s ConnectionState, err *Error) {
	c.mutate(func() {
		c.state.Connection = s
		switch s {
		case StateConnected:
			c.state.Err = nil
			c.state.IdleWarning = nil
		case StateDisconnected:
			c.state.IdleWarning = nil
		}
		if err != nil {
			c.state.Err = err
			c.appendLocked(Message{Role: RoleError, Text: err.Message, Final: true})
		}
	})
}

// SetRecording records whether microphone capture is live.
func (c *Conversation) SetRecording(on bool) {
	c.mutate(func() { c.state.Recording = on })
}

// SetTTSPlaying records playback start/stop signals from the audio bridge.
func (c *Conversation) SetTTSPlaying(on bool) {
	c.mutate(func() { c.state.TTSPlaying = on })
}

// AppendSystem appends a system-role message.
func (c *Conversation) AppendSystem(text string) {
	c.mutate(func() {
		c.appendLocked(Message{Role: RoleSystem, Text: text, Final: true})
	})
}

// AppendUserText appends a synthetic final user message (the test/debug
// text-input path) and flags the session as waiting for a response.
func (c *Conversation) AppendUserText(text string) {
	c.mutate(func() {
		c.appendLocked(Message{Role: RoleUser, Text: text, Final: true})
		c.state.WaitingForResponse = true
	})
}

// ClearMessages empties the message log. Connection and audio flags are
// untouched.
func (c *Conversation) ClearMessages() {
	c.mutate(func() { c.state.Messages = nil })
}

// Reset returns the conversation to its initial state. Used on disconnect.
func (c *Conversation) Reset() {
	c.mutate(func() { c.state = VoiceState{} })
}
