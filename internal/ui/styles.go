package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Color palette - consistent across all TUI components
var (
	Green  = lipgloss.Color("10") // success, user
	Red    = lipgloss.Color("9")  // error
	Grey   = lipgloss.Color("8")  // muted text
	Blue   = lipgloss.Color("4")  // headers, borders
	Cyan   = lipgloss.Color("12") // assistant
	Yellow = lipgloss.Color("11") // warnings
	White  = lipgloss.Color("15") // header text
)

// Status indicators
const (
	SuccessIcon = "✓"
	FailIcon    = "✗"
	PromptIcon  = "❯"
)

// Styles returns styled text helpers bound to a renderer
type Styles struct {
	renderer *lipgloss.Renderer

	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Border    lipgloss.Style
}

// NewStyles creates a new Styles instance for the given output
func NewStyles(output *os.File) *Styles {
	r := lipgloss.NewRenderer(output)
	if !ColorEnabled(output) {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Styles{
		renderer:  r,
		Title:     r.NewStyle().Bold(true).Foreground(White),
		Subtitle:  r.NewStyle().Foreground(Grey),
		Success:   r.NewStyle().Foreground(Green),
		Error:     r.NewStyle().Foreground(Red),
		Warning:   r.NewStyle().Foreground(Yellow),
		Muted:     r.NewStyle().Foreground(Grey),
		Bold:      r.NewStyle().Bold(true),
		User:      r.NewStyle().Foreground(Green).Bold(true),
		Assistant: r.NewStyle().Foreground(Cyan),
		System:    r.NewStyle().Foreground(Grey).Italic(true),
		Border:    r.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(Blue),
	}
}

// DefaultStyles returns styles for stderr (default TUI output)
func DefaultStyles() *Styles {
	return NewStyles(os.Stderr)
}

// PlainStyles renders every style without escape codes.
func PlainStyles() *Styles {
	s := NewStyles(os.Stderr)
	s.renderer.SetColorProfile(termenv.Ascii)
	return s
}

// ColorEnabled reports whether f is a terminal and NO_COLOR is unset.
func ColorEnabled(f *os.File) bool {
	if f == nil || termenv.EnvNoColor() {
		return false
	}
	return IsTerminal(f)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// FormatResult returns a styled success/fail result
func (s *Styles) FormatResult(success bool, msg string) string {
	if success {
		return s.Success.Render(SuccessIcon+" ") + msg
	}
	return s.Error.Render(FailIcon+" ") + msg
}

// Truncate shortens s to maxWidth display cells with an ellipsis.
func Truncate(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}
