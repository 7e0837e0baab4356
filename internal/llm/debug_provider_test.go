package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDebugProviderName(t *testing.T) {
	tests := []struct {
		variant string
		want    string
	}{
		{"", "debug"},
		{"normal", "debug"},
		{"fast", "debug:fast"},
		{"slow", "debug:slow"},
		{"realtime", "debug:realtime"},
		{"burst", "debug:burst"},
		{"unknown", "debug:unknown"}, // Unknown variants still get named
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			p := NewDebugProvider(tt.variant)
			if got := p.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDebugProviderChat(t *testing.T) {
	p := NewDebugProvider("burst")
	resp, err := p.Chat(context.Background(), DefaultGenerationConfig(), NewHistory("").User("ping").Messages())
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	defer resp.Close()

	text, err := drain(t, resp)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}

	elements := []string{
		`You said: "ping"`,
		"## Debug backend",
		"```go",
		"- Press **Esc**",
		"> Switch to a real backend",
	}
	for _, elem := range elements {
		if !strings.Contains(text, elem) {
			t.Errorf("stream output missing expected element: %q", elem)
		}
	}
}

func TestDebugProviderChatCancellation(t *testing.T) {
	p := NewDebugProvider("slow") // Use slow to ensure we can cancel mid-stream
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp, err := p.Chat(ctx, DefaultGenerationConfig(), nil)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	defer resp.Close()

	readCtx, readCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer readCancel()

	fragments := 0
	for {
		msg, err := resp.Next(readCtx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled error, got: %v", err)
			}
			return
		}
		if msg.IsEnd() {
			t.Fatal("stream completed despite cancellation")
		}
		fragments++
		if fragments == 3 {
			cancel()
		}
	}
}

func TestDebugPresets(t *testing.T) {
	presets := GetDebugPresets()

	expectedPresets := []string{"fast", "normal", "slow", "realtime", "burst"}
	for _, name := range expectedPresets {
		preset, ok := presets[name]
		if !ok {
			t.Errorf("missing preset: %s", name)
			continue
		}
		if preset.ChunkSize <= 0 {
			t.Errorf("preset %s has invalid ChunkSize: %d", name, preset.ChunkSize)
		}
		if preset.Delay < 0 {
			t.Errorf("preset %s has invalid Delay: %v", name, preset.Delay)
		}
	}

	if got := DebugVariants(); strings.Join(got, ",") != "burst,fast,normal,realtime,slow" {
		t.Errorf("DebugVariants() = %v", got)
	}
}

func TestDebugProviderUnknownVariant(t *testing.T) {
	// Unknown variants should fall back to normal preset
	p := NewDebugProvider("nonexistent")

	if p.preset.ChunkSize != 20 {
		t.Errorf("expected ChunkSize 20 for unknown variant, got %d", p.preset.ChunkSize)
	}
	if p.preset.Delay != 20*time.Millisecond {
		t.Errorf("expected Delay 20ms for unknown variant, got %v", p.preset.Delay)
	}
}
