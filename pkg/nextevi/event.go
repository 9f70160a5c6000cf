package nextevi

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Event is one inbound server event, decoded into exactly one variant of
// a closed union. Adding a new server message type means adding a variant
// here and an arm in decodeEvent and Conversation.apply; unknown
// discriminators never reach either.
type Event interface {
	eventType() string
}

// TranscriptionEvent is a partial or final speech-recognition result.
type TranscriptionEvent struct {
	Text        string
	Confidence  float64
	Final       bool
	SpeechFinal bool
	Words       []WordTiming
	Kind        string // metadata.event_type, when present
}

// TTSAudioEvent carries one block of synthesized PCM16 audio.
type TTSAudioEvent struct {
	Audio   []byte
	ChunkID string
	Last    bool
}

// LLMChunkEvent is a streaming slice of the assistant's reply.
type LLMChunkEvent struct {
	Text         string
	Final        bool
	GenerationID string
	ChunkIndex   int
}

// EmotionEvent is a batch of detected emotions for a recent utterance.
type EmotionEvent struct {
	Emotions []EmotionScore
}

// MetadataEvent reports the established connection's server-side metadata.
type MetadataEvent struct {
	Metadata ConnectionMetadata
}

// ServerErrorEvent is an application-level error frame from the backend.
type ServerErrorEvent struct {
	Message string
	Code    string
}

// InterruptionEvent tells the client to stop TTS playback immediately.
type InterruptionEvent struct{}

// SystemNoticeEvent is a server-generated notice for the conversation log.
type SystemNoticeEvent struct {
	Text string
	Kind string // SystemKind*
}

// TurnCompleteEvent is the backend's turn-detection verdict for the most
// recent user utterance.
type TurnCompleteEvent struct {
	Result     TurnResult
	Transcript string
}

// IdleWarningEvent warns that the session will be closed for inactivity.
type IdleWarningEvent struct {
	Remaining time.Duration
	Final     bool
}

func (TranscriptionEvent) eventType() string { return msgTypeTranscription }
func (TTSAudioEvent) eventType() string      { return msgTypeTTSChunk }
func (LLMChunkEvent) eventType() string      { return msgTypeLLMResponseChunk }
func (EmotionEvent) eventType() string       { return msgTypeEmotionUpdate }
func (MetadataEvent) eventType() string      { return msgTypeConnectionMetadata }
func (ServerErrorEvent) eventType() string   { return msgTypeError }
func (InterruptionEvent) eventType() string  { return msgTypeTTSInterruption }
func (SystemNoticeEvent) eventType() string  { return msgTypeSystemMessage }
func (TurnCompleteEvent) eventType() string  { return msgTypeTurnComplete }
func (IdleWarningEvent) eventType() string   { return msgTypeIdleWarning }

// decodeEvent parses one textual control frame into its Event variant.
// It is a pure mapping with field-level defaulting; it returns an
// *Error with ErrCodeUnknownMessageType for unparseable frames and
// unrecognized discriminators, which callers log and drop.
func decodeEvent(data []byte) (Event, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, wrapError(ErrCodeUnknownMessageType, "unparseable frame", err)
	}

	switch msg.Type {
	case msgTypeTranscription:
		ev := TranscriptionEvent{
			Text:        msg.Transcript,
			Confidence:  msg.Confidence,
			Final:       msg.IsFinal,
			SpeechFinal: msg.IsSpeechFinal,
			Words:       msg.Words,
		}
		if msg.Metadata != nil {
			ev.Kind = msg.Metadata.EventType
		}
		return ev, nil

	case msgTypeTTSChunk:
		audio, err := base64.StdEncoding.DecodeString(msg.Content)
		if err != nil {
			return nil, wrapError(ErrCodeUnknownMessageType, "bad tts_chunk payload", err)
		}
		return TTSAudioEvent{Audio: audio, ChunkID: msg.ChunkID, Last: msg.IsLast}, nil

	case msgTypeLLMResponseChunk:
		return LLMChunkEvent{
			Text:         msg.Content,
			Final:        msg.IsFinal,
			GenerationID: msg.GenerationID,
			ChunkIndex:   msg.ChunkIndex,
		}, nil

	case msgTypeEmotionUpdate:
		emotions := make([]EmotionScore, 0, len(msg.TopEmotions))
		for _, e := range msg.TopEmotions {
			emotions = append(emotions, EmotionScore{Emotion: e.Emotion, Score: e.score()})
		}
		return EmotionEvent{Emotions: emotions}, nil

	case msgTypeConnectionMetadata:
		return MetadataEvent{Metadata: ConnectionMetadata{
			ConnectionID: msg.ConnectionID,
			Status:       msg.Status,
			Config:       msg.Config,
			ProjectID:    msg.ProjectID,
			ConfigID:     msg.ConfigID,
		}}, nil

	case msgTypeError:
		return ServerErrorEvent{Message: msg.ErrorMessage, Code: msg.ErrorCode}, nil

	case msgTypeTTSInterruption:
		return InterruptionEvent{}, nil

	case msgTypeSystemMessage:
		return SystemNoticeEvent{Text: msg.Content, Kind: msg.MessageType}, nil

	case msgTypeTurnComplete:
		ev := TurnCompleteEvent{Transcript: msg.Transcript}
		if msg.TurnResult != nil {
			ev.Result = *msg.TurnResult
		}
		return ev, nil

	case msgTypeIdleWarning:
		return IdleWarningEvent{
			Remaining: time.Duration(msg.TimeRemaining * float64(time.Second)),
			Final:     msg.WarningType == IdleWarningFinal,
		}, nil

	case msgTypeStatus:
		// Debug-only frame; decoded for the log, never routed.
		return nil, nil

	default:
		return nil, newError(ErrCodeUnknownMessageType, "unknown message type %q", msg.Type)
	}
}
