package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// debugPreset defines streaming rate configuration.
type debugPreset struct {
	ChunkSize int
	Delay     time.Duration
}

// presets maps variant names to their streaming configurations.
var presets = map[string]debugPreset{
	"fast":     {ChunkSize: 50, Delay: 5 * time.Millisecond},
	"normal":   {ChunkSize: 20, Delay: 20 * time.Millisecond},
	"slow":     {ChunkSize: 10, Delay: 50 * time.Millisecond},
	"realtime": {ChunkSize: 5, Delay: 30 * time.Millisecond},
	"burst":    {ChunkSize: 200, Delay: 100 * time.Millisecond},
}

// debugReply is streamed after the echoed question.
const debugReply = `## Debug backend

This reply is generated locally, no network involved. It streams in small
fragments so the live view, cancellation and history commit can be
exercised without credentials.

- Press **Esc** while this is streaming to cancel the turn.
- A cancelled turn leaves the history unchanged.
- A completed turn appends the question and this answer.

` + "```go" + `
view, err := agent.Chat(ctx, "hello")
for {
	text, ok, err := view.Next()
	// ...
}
` + "```" + `

> Switch to a real backend with ` + "`--backend qwen`" + ` or ` + "`--backend coze`" + `.
`

// DebugProvider streams canned text at a configurable rate. It needs no
// credential.
type DebugProvider struct {
	variant string
	preset  debugPreset
}

// NewDebugProvider creates a debug provider with the specified variant.
// Valid variants: fast, normal, slow, realtime, burst
// Empty string defaults to "normal".
func NewDebugProvider(variant string) *DebugProvider {
	variant = strings.TrimSpace(variant)
	if variant == "" {
		variant = "normal"
	}
	preset, ok := presets[variant]
	if !ok {
		preset = presets["normal"]
	}
	return &DebugProvider{
		variant: variant,
		preset:  preset,
	}
}

// Name returns the provider name with variant.
func (d *DebugProvider) Name() string {
	if d.variant == "" || d.variant == "normal" {
		return "debug"
	}
	return "debug:" + d.variant
}

// Chat streams an echo of the last user message followed by debugReply.
func (d *DebugProvider) Chat(ctx context.Context, cfg GenerationConfig, history []Message) (*Response, error) {
	text := debugText(history)
	chunkSize := d.preset.ChunkSize
	delay := d.preset.Delay

	return startSDKStream(ctx, d.Name(), nil, func(ctx context.Context, emit func(string) bool) error {
		runes := []rune(text)
		for len(runes) > 0 {
			end := min(chunkSize, len(runes))
			chunk := string(runes[:end])
			runes = runes[end:]

			if !emit(chunk) {
				return nil
			}

			if delay > 0 && len(runes) > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
		}
		return nil
	}), nil
}

func debugText(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return fmt.Sprintf("You said: %q\n\n%s", history[i].Content, debugReply)
		}
	}
	return debugReply
}

// DebugVariants returns the preset names in sorted order.
func DebugVariants() []string {
	names := make([]string, 0, len(presets))
	for k := range presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// GetDebugPresets returns a copy of available presets for testing.
func GetDebugPresets() map[string]debugPreset {
	result := make(map[string]debugPreset)
	for k, v := range presets {
		result[k] = v
	}
	return result
}
