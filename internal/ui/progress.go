package ui

import (
	"fmt"
	"strings"
	"time"
)

// StreamingIndicator renders a consistent streaming status line
type StreamingIndicator struct {
	Spinner    string // spinner.View() output
	Phase      string // "Waiting", "Responding", "Cancelling"
	Backend    string
	Elapsed    time.Duration
	Fragments  int  // 0 = don't show
	ShowCancel bool // show "(esc to cancel)"
}

// Render returns the formatted streaming indicator string
func (s StreamingIndicator) Render(styles *Styles) string {
	var b strings.Builder

	if s.Spinner != "" {
		b.WriteString(s.Spinner)
		b.WriteString(" ")
	}
	b.WriteString(s.Phase)
	b.WriteString("...")

	if s.Backend != "" {
		b.WriteString(" ")
		b.WriteString(s.Backend)
		b.WriteString(" |")
	}
	if s.Fragments > 0 {
		fmt.Fprintf(&b, " %d chunks |", s.Fragments)
	}

	fmt.Fprintf(&b, " %.1fs", s.Elapsed.Seconds())

	if s.ShowCancel {
		b.WriteString(" ")
		b.WriteString(styles.Muted.Render("(esc to cancel)"))
	}

	return b.String()
}
