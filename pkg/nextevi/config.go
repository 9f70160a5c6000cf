package nextevi

import (
	"net/url"
	"strings"
	"time"

	"github.com/NextAI-Inc/nextevi-go/pkg/audio/pcm"
)

// SessionPolicy controls idle timeouts and the reconnect cap for one
// connection attempt. It is immutable for the lifetime of the attempt.
type SessionPolicy struct {
	// IdleWarningTimeout is how long the session may sit idle before the
	// server sends an idle warning. Zero leaves the server default.
	IdleWarningTimeout time.Duration `yaml:"idle_warning_timeout,omitempty"`

	// IdleHangupTimeout is how long before the server hangs up an idle
	// session. Zero leaves the server default.
	IdleHangupTimeout time.Duration `yaml:"idle_hangup_timeout,omitempty"`

	// IdleEnabled turns the idle-timeout mechanism on.
	IdleEnabled bool `yaml:"idle_enabled,omitempty"`

	// MaxReconnectAttempts bounds automatic reconnection after abnormal
	// closure. Defaults to 3.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts,omitempty"`

	// ReconnectBaseDelay is the first backoff delay; attempt n waits
	// base << (n-1). Defaults to 1s.
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay,omitempty"`
}

func (p SessionPolicy) withDefaults() SessionPolicy {
	if p.MaxReconnectAttempts == 0 {
		p.MaxReconnectAttempts = 3
	}
	if p.ReconnectBaseDelay == 0 {
		p.ReconnectBaseDelay = time.Second
	}
	return p
}

// SessionSettings describes the audio format negotiated with the server.
type SessionSettings struct {
	SampleRate int    `yaml:"sample_rate,omitempty"`
	Channels   int    `yaml:"channels,omitempty"`
	Encoding   string `yaml:"encoding,omitempty"`
}

func (s SessionSettings) withDefaults() SessionSettings {
	if s.SampleRate == 0 {
		s.SampleRate = 16000
	}
	if s.Channels == 0 {
		s.Channels = 1
	}
	if s.Encoding == "" {
		s.Encoding = "linear16"
	}
	return s
}

func (s SessionSettings) format() pcm.Format {
	return pcm.Format{Rate: s.SampleRate, Channels: s.Channels}
}

// ConnectConfig is the validated configuration handed to Connect.
// Authentication is either an APIKey/ProjectID pair or a bearer Token.
type ConnectConfig struct {
	// ConfigID selects the voice configuration on the backend. Required.
	ConfigID string `yaml:"config_id"`

	// APIKey + ProjectID authentication.
	APIKey    string `yaml:"api_key,omitempty"`
	ProjectID string `yaml:"project_id,omitempty"`

	// Token is bearer-token authentication, alternative to APIKey.
	Token string `yaml:"token,omitempty"`

	Settings SessionSettings `yaml:"settings,omitempty"`
	Policy   SessionPolicy   `yaml:"policy,omitempty"`
}

func (c *ConnectConfig) validate() error {
	if c == nil {
		return newError(ErrCodeInvalidConfig, "config is required")
	}
	if c.ConfigID == "" {
		return newError(ErrCodeInvalidConfig, "config_id is required")
	}
	switch {
	case c.Token != "":
	case c.APIKey != "" && c.ProjectID != "":
	case c.APIKey != "":
		return newError(ErrCodeInvalidConfig, "project_id is required with api_key")
	default:
		return newError(ErrCodeInvalidConfig, "either token or api_key/project_id is required")
	}
	return nil
}

// endpointURL builds the WebSocket URL for one attempt: the per-attempt
// session id goes in the path, credentials and config id in the query.
func (c *ConnectConfig) endpointURL(base, sessionID string) string {
	q := url.Values{}
	q.Set("config_id", c.ConfigID)
	if c.Token != "" {
		q.Set("token", c.Token)
	} else {
		q.Set("api_key", c.APIKey)
		q.Set("project_id", c.ProjectID)
	}
	return strings.TrimRight(base, "/") + "/" + sessionID + "?" + q.Encode()
}

// settingsFrame builds the session_settings control frame.
func (c *ConnectConfig) settingsFrame() sessionSettingsFrame {
	s := c.Settings.withDefaults()
	frame := sessionSettingsFrame{
		Type:       msgTypeSessionSettings,
		SampleRate: s.SampleRate,
		Channels:   s.Channels,
		Encoding:   s.Encoding,
	}
	p := c.Policy
	if p.IdleEnabled || p.IdleWarningTimeout > 0 || p.IdleHangupTimeout > 0 {
		frame.IdleTimeout = &idleTimeoutSettings{
			WarningTimeout: int(p.IdleWarningTimeout / time.Second),
			HangupTimeout:  int(p.IdleHangupTimeout / time.Second),
			Enabled:        p.IdleEnabled,
		}
	}
	return frame
}
