package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/floatchat/floatchat/internal/llm"
)

// SnapshotVersion is written into every snapshot.
const SnapshotVersion = 1

// Snapshot is the serialized form of one agent's conversation.
type Snapshot struct {
	Version  int                  `json:"version"`
	ID       string               `json:"id"`
	Backend  string               `json:"backend"`
	Prompt   string               `json:"prompt,omitempty"`
	Config   llm.GenerationConfig `json:"config"`
	SavedAt  time.Time            `json:"saved_at"`
	Messages []llm.Message        `json:"messages"`
}

// Marshal encodes the snapshot as indented JSON.
func (s Snapshot) Marshal() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}

// ParseSnapshot decodes a snapshot produced by Marshal.
func ParseSnapshot(data string) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	if snap.Version > SnapshotVersion {
		return Snapshot{}, fmt.Errorf("parse snapshot: unsupported version %d", snap.Version)
	}
	for i, msg := range snap.Messages {
		if msg.Content == "" {
			return Snapshot{}, fmt.Errorf("parse snapshot: message %d is empty", i)
		}
	}
	return snap, nil
}

// ExportOptions configures session export.
type ExportOptions struct {
	IncludeSystem bool // Include system prompt in export
}

// escapeTableCell escapes special characters for markdown table cells.
func escapeTableCell(s string) string {
	// Replace pipe characters and newlines which break tables
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// ExportToMarkdown renders a snapshot as a readable markdown transcript.
func ExportToMarkdown(snap Snapshot, opts ExportOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Session: %s\n\n", escapeTableCell(ShortID(snap.ID)))

	b.WriteString("## Setup\n\n")
	b.WriteString("| | |\n")
	b.WriteString("|---|---|\n")
	fmt.Fprintf(&b, "| **Backend** | %s |\n", escapeTableCell(snap.Backend))
	if snap.Config.Model != "" {
		fmt.Fprintf(&b, "| **Model** | %s |\n", escapeTableCell(snap.Config.Model))
	}
	fmt.Fprintf(&b, "| **Temperature** | %g |\n", snap.Config.Temperature)
	if !snap.SavedAt.IsZero() {
		fmt.Fprintf(&b, "| **Saved** | %s |\n", snap.SavedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	b.WriteString("\n")

	user, assistant := countTurns(snap.Messages)
	b.WriteString("## Metrics\n\n")
	b.WriteString("| Messages | Turns |\n")
	b.WriteString("|----------|-------|\n")
	fmt.Fprintf(&b, "| %s | %d user / %d assistant |\n\n", formatCount(len(snap.Messages)), user, assistant)

	b.WriteString("---\n\n")
	b.WriteString("## Conversation\n\n")

	if opts.IncludeSystem && snap.Prompt != "" {
		b.WriteString("### System\n\n")
		b.WriteString(snap.Prompt)
		b.WriteString("\n\n---\n\n")
	}

	for _, msg := range snap.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			if !opts.IncludeSystem {
				continue
			}
			b.WriteString("### System\n\n")
		case llm.RoleUser:
			b.WriteString("### User\n\n")
		case llm.RoleAssistant:
			b.WriteString("### Assistant\n\n")
		default:
			fmt.Fprintf(&b, "### %s\n\n", roleTitle(msg.Role))
		}
		b.WriteString(msg.Content)
		b.WriteString("\n\n---\n\n")
	}

	return b.String()
}

func roleTitle(r llm.Role) string {
	s := r.String()
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func countTurns(messages []llm.Message) (user, assistant int) {
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleUser:
			user++
		case llm.RoleAssistant:
			assistant++
		}
	}
	return user, assistant
}

// formatCount formats a number in compact form (e.g., 1K, 1.2K, 3.4M).
func formatCount(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		val := float64(n) / 1000
		if val == float64(int(val)) {
			return fmt.Sprintf("%dK", int(val))
		}
		return fmt.Sprintf("%.1fK", val)
	}
	val := float64(n) / 1000000
	if val == float64(int(val)) {
		return fmt.Sprintf("%dM", int(val))
	}
	return fmt.Sprintf("%.1fM", val)
}
