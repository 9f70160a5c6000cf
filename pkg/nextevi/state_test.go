package nextevi

import (
	"fmt"
	"testing"
	"time"
)

func newTestConversation() *Conversation {
	c := NewConversation()
	var n int
	c.newID = func() string {
		n++
		return fmt.Sprintf("msg-%d", n)
	}
	return c
}

func TestStreamingCoalescing(t *testing.T) {
	c := newTestConversation()

	c.Apply(TranscriptionEvent{Text: "hel"})
	c.Apply(TranscriptionEvent{Text: "hello"})
	c.Apply(TranscriptionEvent{Text: "hello wor"})

	s := c.Snapshot()
	if len(s.Messages) != 1 {
		t.Fatalf("want one streaming message, got %d", len(s.Messages))
	}
	m := s.Messages[0]
	if !m.Streaming || m.Final {
		t.Errorf("got %+v", m)
	}
	if m.Text != "hello wor" {
		t.Errorf("text=%q", m.Text)
	}
	id := m.ID

	c.Apply(TranscriptionEvent{Text: "hello world", Final: true, Confidence: 0.9})
	s = c.Snapshot()
	if len(s.Messages) != 1 {
		t.Fatalf("finalization must not append, got %d messages", len(s.Messages))
	}
	m = s.Messages[0]
	if m.ID != id {
		t.Errorf("finalized a different message: %q != %q", m.ID, id)
	}
	if m.Streaming || !m.Final || m.Text != "hello world" || m.Confidence != 0.9 {
		t.Errorf("got %+v", m)
	}
	if !s.WaitingForResponse {
		t.Error("final transcript must set WaitingForResponse")
	}
}

func TestTranscriptionEmptyText(t *testing.T) {
	c := newTestConversation()
	c.Apply(TranscriptionEvent{Text: ""})
	c.Apply(TranscriptionEvent{Text: "", Final: true})
	if got := len(c.Snapshot().Messages); got != 0 {
		t.Errorf("empty transcripts must not append, got %d", got)
	}
}

func TestLLMChunkStreaming(t *testing.T) {
	c := newTestConversation()
	c.Apply(TranscriptionEvent{Text: "question", Final: true})

	c.Apply(LLMChunkEvent{Text: "The answer"})
	c.Apply(LLMChunkEvent{Text: " is 42."})

	s := c.Snapshot()
	if len(s.Messages) != 2 {
		t.Fatalf("messages=%d", len(s.Messages))
	}
	m := s.Messages[1]
	if m.Role != RoleAssistant || !m.Streaming {
		t.Errorf("got %+v", m)
	}
	if m.Text != "The answer is 42." {
		t.Errorf("text=%q", m.Text)
	}
	if !s.WaitingForResponse {
		t.Error("waiting must hold until the reply finalizes")
	}

	c.Apply(LLMChunkEvent{Final: true})
	s = c.Snapshot()
	if len(s.Messages) != 2 {
		t.Fatalf("finalization must not append, got %d", len(s.Messages))
	}
	if s.Messages[1].Streaming || !s.Messages[1].Final {
		t.Errorf("got %+v", s.Messages[1])
	}
	if s.WaitingForResponse {
		t.Error("final chunk must clear WaitingForResponse")
	}
}

func TestLLMFinalWithoutLane(t *testing.T) {
	c := newTestConversation()
	c.Apply(TranscriptionEvent{Text: "q", Final: true})
	c.Apply(LLMChunkEvent{Final: true, Text: "done"})

	s := c.Snapshot()
	if s.WaitingForResponse {
		t.Error("want WaitingForResponse cleared")
	}
	if len(s.Messages) != 2 || !s.Messages[1].Final || s.Messages[1].Text != "done" {
		t.Errorf("messages=%+v", s.Messages)
	}
}

func TestEmotionBestEffortAttachment(t *testing.T) {
	c := newTestConversation()
	c.Apply(TranscriptionEvent{Text: "hello", Final: true})

	batch := []EmotionScore{{Emotion: "joy", Score: 0.7}}
	c.Apply(EmotionEvent{Emotions: batch})

	s := c.Snapshot()
	if len(s.Messages[0].Emotions) != 1 || s.Messages[0].Emotions[0].Emotion != "joy" {
		t.Errorf("emotions=%v", s.Messages[0].Emotions)
	}

	// A second batch with no unattached user message leaves the log as is.
	c.Apply(EmotionEvent{Emotions: []EmotionScore{{Emotion: "anger", Score: 0.9}}})
	s2 := c.Snapshot()
	if len(s2.Messages) != len(s.Messages) {
		t.Error("second batch must not append")
	}
	if s2.Messages[0].Emotions[0].Emotion != "joy" {
		t.Error("second batch must not overwrite")
	}
}

func TestEmotionNoUserMessage(t *testing.T) {
	c := newTestConversation()
	c.Apply(EmotionEvent{Emotions: []EmotionScore{{Emotion: "joy", Score: 1}}})
	if got := len(c.Snapshot().Messages); got != 0 {
		t.Errorf("dropped batch must not append, got %d", got)
	}
}

func TestTurnCompleteAttachment(t *testing.T) {
	c := newTestConversation()
	c.Apply(TurnCompleteEvent{Result: TurnResult{IsComplete: true}})
	if got := len(c.Snapshot().Messages); got != 0 {
		t.Errorf("no match must not append, got %d", got)
	}

	c.Apply(TranscriptionEvent{Text: "hello", Final: true})
	c.Apply(TurnCompleteEvent{Result: TurnResult{IsComplete: true, Confidence: 0.8}, Transcript: "hello"})

	m := c.Snapshot().Messages[0]
	if m.Turn == nil || !m.Turn.IsComplete || m.Turn.Confidence != 0.8 {
		t.Errorf("turn=%+v", m.Turn)
	}
}

func TestInterruption(t *testing.T) {
	c := newTestConversation()
	c.SetTTSPlaying(true)
	c.Apply(InterruptionEvent{})
	if c.Snapshot().TTSPlaying {
		t.Error("interruption must stop TTS")
	}
}

func TestSystemNotice(t *testing.T) {
	c := newTestConversation()
	c.Apply(SystemNoticeEvent{Text: "hangup soon", Kind: SystemKindHangup})
	s := c.Snapshot()
	if len(s.Messages) != 1 || s.Messages[0].Role != RoleSystem {
		t.Errorf("messages=%+v", s.Messages)
	}
}

func TestServerError(t *testing.T) {
	c := newTestConversation()
	c.Apply(ServerErrorEvent{Message: "backend exploded", Code: "E1"})
	s := c.Snapshot()
	if s.Err == nil || s.Err.Code != ErrCodeServerError {
		t.Errorf("err=%v", s.Err)
	}
	if len(s.Messages) != 1 || s.Messages[0].Role != RoleError {
		t.Errorf("fatal errors must be visible in the log: %+v", s.Messages)
	}
}

func TestIdleWarningTransitions(t *testing.T) {
	c := newTestConversation()

	c.Apply(IdleWarningEvent{Remaining: 30 * time.Second})
	s := c.Snapshot()
	if s.IdleWarning == nil || s.IdleWarning.Final {
		t.Fatalf("idle=%+v", s.IdleWarning)
	}
	if len(s.Messages) != 1 || s.Messages[0].Role != RoleWarning {
		t.Errorf("messages=%+v", s.Messages)
	}

	c.Apply(IdleWarningEvent{Remaining: 5 * time.Second, Final: true})
	s = c.Snapshot()
	if !s.IdleWarning.Final {
		t.Error("want final warning flagged")
	}

	// A Connected transition clears the idle snapshot entirely.
	c.SetConnectionState(StateConnected, nil)
	if c.Snapshot().IdleWarning != nil {
		t.Error("connected must clear idle warning")
	}
}

func TestConnectionStateChanges(t *testing.T) {
	c := newTestConversation()

	c.SetConnectionState(StateError, newError(ErrCodeMaxReconnectExceeded, "gone"))
	s := c.Snapshot()
	if s.Connection != StateError || s.Err == nil {
		t.Errorf("state=%v err=%v", s.Connection, s.Err)
	}
	if len(s.Messages) != 1 || s.Messages[0].Role != RoleError {
		t.Errorf("messages=%+v", s.Messages)
	}

	c.SetConnectionState(StateConnected, nil)
	s = c.Snapshot()
	if s.Err != nil {
		t.Error("connected must clear the pending error")
	}

	c.Apply(IdleWarningEvent{Remaining: time.Second})
	c.SetConnectionState(StateDisconnected, nil)
	if c.Snapshot().IdleWarning != nil {
		t.Error("disconnected must clear idle warning")
	}
}

func TestClearMessagesAndReset(t *testing.T) {
	c := newTestConversation()
	c.SetConnectionState(StateConnected, nil)
	c.SetRecording(true)
	c.Apply(TranscriptionEvent{Text: "hello", Final: true})

	c.ClearMessages()
	s := c.Snapshot()
	if len(s.Messages) != 0 {
		t.Error("clear must empty the log")
	}
	if s.Connection != StateConnected || !s.Recording {
		t.Error("clear must not touch connection or audio state")
	}

	c.Reset()
	s = c.Snapshot()
	if s.Connection != StateDisconnected || s.Recording || len(s.Messages) != 0 {
		t.Errorf("reset state=%+v", s)
	}
}

func TestSubscribe(t *testing.T) {
	c := newTestConversation()

	var got []int
	unsub := c.Subscribe(func(s VoiceState) {
		got = append(got, len(s.Messages))
	})

	c.Apply(TranscriptionEvent{Text: "a", Final: true})
	c.AppendSystem("b")
	unsub()
	c.AppendSystem("c")

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("notifications=%v", got)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	c := newTestConversation()
	c.Apply(TranscriptionEvent{Text: "hello", Final: true})

	s := c.Snapshot()
	s.Messages[0].Text = "mutated"

	if c.Snapshot().Messages[0].Text != "hello" {
		t.Error("snapshot mutation leaked into the conversation")
	}
}

func TestConnectionStateString(t *testing.T) {
	cases := map[ConnectionState]string{
		StateDisconnected:   "disconnected",
		StateConnecting:     "connecting",
		StateConnected:      "connected",
		StateError:          "error",
		ConnectionState(99): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d: got %q want %q", state, got, want)
		}
	}
}
