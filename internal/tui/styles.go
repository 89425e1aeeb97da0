package tui

import "github.com/charmbracelet/lipgloss"

// Color palette - keeping it minimal and accessible.
var (
	ColorPrimary = lipgloss.Color("39")  // Blue
	ColorSuccess = lipgloss.Color("34")  // Green
	ColorWarning = lipgloss.Color("214") // Orange
	ColorMuted   = lipgloss.Color("240") // Dark gray
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	RetryStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	NoRetryStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)
)

// Renderer applies styles only when enabled, so piped output stays plain.
type Renderer struct {
	enabled bool
}

// NewRenderer creates a Renderer. Pass IsInteractive() for terminal output.
func NewRenderer(enabled bool) Renderer {
	return Renderer{enabled: enabled}
}

func (r Renderer) Header(s string) string { return r.render(HeaderStyle, s) }
func (r Renderer) Muted(s string) string  { return r.render(MutedStyle, s) }

// Actions colors an action list by whether it retries.
func (r Renderer) Actions(s string, retries bool) string {
	if retries {
		return r.render(RetryStyle, s)
	}
	return r.render(NoRetryStyle, s)
}

func (r Renderer) render(style lipgloss.Style, s string) string {
	if !r.enabled {
		return s
	}
	return style.Render(s)
}
