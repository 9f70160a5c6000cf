package nextevi

import (
	"encoding/json"
	"time"
)

// Inbound message discriminators (server to client).
const (
	msgTypeTranscription      = "transcription"
	msgTypeTTSChunk           = "tts_chunk"
	msgTypeLLMResponseChunk   = "llm_response_chunk"
	msgTypeEmotionUpdate      = "emotion_update"
	msgTypeConnectionMetadata = "connection_metadata"
	msgTypeError              = "error"
	msgTypeTTSInterruption    = "tts_interruption"
	msgTypeSystemMessage      = "system_message"
	msgTypeTurnComplete       = "turn_complete"
	msgTypeIdleWarning        = "idle_warning"
	msgTypeStatus             = "status"
)

// Outbound message discriminators (client to server).
const (
	msgTypeSessionSettings = "session_settings"
)

// System message kinds carried by system_message frames.
const (
	SystemKindInitial = "initial"
	SystemKindWarning = "warning"
	SystemKindHangup  = "hangup"
)

// Idle warning kinds carried by idle_warning frames.
const (
	IdleWarningOrdinary = "warning"
	IdleWarningFinal    = "final_warning"
)

// serverMessage is the flat decode target for inbound control frames.
// The server sends snake_case fields; only the fields relevant to the
// frame's type are populated.
type serverMessage struct {
	Type string `json:"type"`

	// transcription
	Transcript    string         `json:"transcript,omitzero"`
	Confidence    float64        `json:"confidence,omitzero"`
	IsFinal       bool           `json:"is_final,omitzero"`
	IsSpeechFinal bool           `json:"is_speech_final,omitzero"`
	Words         []WordTiming   `json:"words,omitzero"`
	Metadata      *eventMetadata `json:"metadata,omitzero"`

	// tts_chunk, llm_response_chunk, system_message (shared field)
	Content string `json:"content,omitzero"`

	// tts_chunk
	ChunkID string `json:"chunk_id,omitzero"`
	IsLast  bool   `json:"is_last,omitzero"`

	// llm_response_chunk
	GenerationID string `json:"generation_id,omitzero"`
	ChunkIndex   int    `json:"chunk_index,omitzero"`

	// emotion_update
	TopEmotions []wireEmotion `json:"top_emotions,omitzero"`

	// connection_metadata
	ConnectionID string          `json:"connection_id,omitzero"`
	Status       string          `json:"status,omitzero"`
	Config       json.RawMessage `json:"config,omitzero"`
	ProjectID    string          `json:"project_id,omitzero"`
	ConfigID     string          `json:"config_id,omitzero"`

	// error
	ErrorMessage string `json:"error_message,omitzero"`
	ErrorCode    string `json:"error_code,omitzero"`

	// system_message
	MessageType string `json:"message_type,omitzero"`

	// turn_complete
	TurnResult *TurnResult `json:"turn_result,omitzero"`

	// idle_warning
	TimeRemaining float64 `json:"time_remaining,omitzero"`
	WarningType   string  `json:"warning_type,omitzero"`
}

type eventMetadata struct {
	EventType string `json:"event_type,omitzero"`
}

// wireEmotion tolerates both "percentage" and "confidence" score fields.
type wireEmotion struct {
	Emotion    string  `json:"emotion"`
	Percentage float64 `json:"percentage,omitzero"`
	Confidence float64 `json:"confidence,omitzero"`
}

func (w wireEmotion) score() float64 {
	if w.Percentage != 0 {
		return w.Percentage
	}
	return w.Confidence
}

// WordTiming is a per-word transcription timing.
type WordTiming struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// EmotionScore is one detected emotion with its score.
type EmotionScore struct {
	Emotion string  `json:"emotion"`
	Score   float64 `json:"score"`
}

// TurnResult is the backend's turn-detection verdict.
type TurnResult struct {
	IsComplete     bool     `json:"is_complete"`
	Confidence     float64  `json:"confidence"`
	Reasons        []string `json:"reasons,omitzero"`
	ProcessingTime float64  `json:"processing_time,omitzero"`
}

// ConnectionMetadata is the server-side view of an established connection.
type ConnectionMetadata struct {
	ConnectionID string          `json:"connection_id"`
	Status       string          `json:"status"`
	Config       json.RawMessage `json:"config,omitzero"`
	ProjectID    string          `json:"project_id,omitzero"`
	ConfigID     string          `json:"config_id,omitzero"`
}

// sessionSettingsFrame is the control frame sent right after the socket
// opens and again after a reconnect.
type sessionSettingsFrame struct {
	Type        string               `json:"type"`
	SampleRate  int                  `json:"sample_rate"`
	Channels    int                  `json:"channels"`
	Encoding    string               `json:"encoding"`
	IdleTimeout *idleTimeoutSettings `json:"idle_timeout,omitempty"`
}

type idleTimeoutSettings struct {
	WarningTimeout int  `json:"warning_timeout"`
	HangupTimeout  int  `json:"hangup_timeout"`
	Enabled        bool `json:"enabled"`
}

// IdleWarning is the current idle-timeout snapshot derived from
// idle_warning frames.
type IdleWarning struct {
	// Remaining is the time left before the server hangs up.
	Remaining time.Duration

	// Final distinguishes a final_warning from an ordinary warning.
	Final bool

	// At is when the warning was received.
	At time.Time
}
