package nextevi

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	ErrCodeInvalidConfig        = "invalid_config"
	ErrCodeConnectFailed        = "connect_failed"
	ErrCodeConnectTimeout       = "connect_timeout"
	ErrCodeAlreadyConnected     = "already_connected"
	ErrCodeConnectInProgress    = "connect_in_progress"
	ErrCodeAudioInitFailed      = "audio_init_failed"
	ErrCodeMicAccessDenied      = "microphone_access_denied"
	ErrCodeWebSocket            = "websocket_error"
	ErrCodeServerError          = "server_error"
	ErrCodeMaxReconnectExceeded = "max_reconnect_exceeded"
	ErrCodeUnknownMessageType   = "unknown_message_type"
)

// Error is the uniform error type surfaced by the SDK.
type Error struct {
	// Code is one of the ErrCode* constants.
	Code string

	// Message is the human-readable error message.
	Message string

	// CloseCode is the WebSocket close code, when the error originated
	// from a transport closure.
	CloseCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("nextevi: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("nextevi: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error terminates the session (as opposed to
// benign guard results and transient transport hiccups).
func (e *Error) Fatal() bool {
	switch e.Code {
	case ErrCodeAlreadyConnected, ErrCodeConnectInProgress, ErrCodeUnknownMessageType:
		return false
	}
	return true
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ErrorCode returns the SDK error code in err's chain, or "" when err is
// not an SDK error.
func ErrorCode(err error) string {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}
