package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for transcript rendering.
type Theme struct {
	User      lipgloss.Color // speaker: the local user
	Assistant lipgloss.Color // speaker: the remote assistant
	Accent    lipgloss.Color // status and system lines
	Alert     lipgloss.Color // errors and warnings
	Dim       lipgloss.Color // metadata, partial text
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	User:      lipgloss.Color("#00ff9f"),
	Assistant: lipgloss.Color("#58a6ff"),
	Accent:    lipgloss.Color("#d2a8ff"),
	Alert:     lipgloss.Color("#ff7b72"),
	Dim:       lipgloss.Color("#6e7681"),
}

// TranscriptStyles holds per-role styles derived from a theme.
type TranscriptStyles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Meta      lipgloss.Style
	Partial   lipgloss.Style
}

// NewTranscriptStyles creates styles from a theme.
func NewTranscriptStyles(t Theme) TranscriptStyles {
	return TranscriptStyles{
		User:      lipgloss.NewStyle().Bold(true).Foreground(t.User),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(t.Assistant),
		System:    lipgloss.NewStyle().Foreground(t.Accent),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
		Warning:   lipgloss.NewStyle().Foreground(t.Alert),
		Meta:      lipgloss.NewStyle().Foreground(t.Dim),
		Partial:   lipgloss.NewStyle().Faint(true).Foreground(t.Dim),
	}
}

// Line renders one transcript line with a role tag and text.
func (s TranscriptStyles) Line(role, text string) string {
	var tag lipgloss.Style
	switch role {
	case "user":
		tag = s.User
	case "assistant":
		tag = s.Assistant
	case "system":
		tag = s.System
	case "error":
		tag = s.Error
	case "warning":
		tag = s.Warning
	default:
		tag = s.Meta
	}
	return fmt.Sprintf("%s %s", tag.Render(fmt.Sprintf("%-9s", role)), text)
}

// PartialLine renders an in-flight line that will be replaced.
func (s TranscriptStyles) PartialLine(role, text string) string {
	return fmt.Sprintf("%s %s", s.Meta.Render(fmt.Sprintf("%-9s", role)), s.Partial.Render(text))
}

// Status renders a one-line session status banner.
func (s TranscriptStyles) Status(state string, recording, playing bool) string {
	parts := []string{state}
	if recording {
		parts = append(parts, "mic")
	}
	if playing {
		parts = append(parts, "speaking")
	}
	return s.Meta.Render("[" + strings.Join(parts, " | ") + "]")
}
