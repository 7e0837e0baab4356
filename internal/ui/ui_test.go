package ui

import (
	"strings"
	"testing"
	"time"
)

func TestFindCodeBlocks(t *testing.T) {
	src := "Intro\n\n```go\nfunc main() {}\n```\n\ntext\n\n```\nplain\n```\n"

	blocks := FindCodeBlocks(src)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].Language != "go" {
		t.Errorf("language = %q, want go", blocks[0].Language)
	}
	if got := strings.TrimRight(src[blocks[0].Start:blocks[0].Stop], "\n"); got != "func main() {}" {
		t.Errorf("body = %q", got)
	}
	if blocks[1].Language != "" {
		t.Errorf("language = %q, want empty", blocks[1].Language)
	}
}

func TestFindCodeBlocksUnclosedFence(t *testing.T) {
	src := "```python\nprint('hi')\nx = 1"
	blocks := FindCodeBlocks(src)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	if got := src[blocks[0].Start:blocks[0].Stop]; !strings.HasPrefix(got, "print('hi')") {
		t.Errorf("body = %q", got)
	}
}

func TestHighlightCodeBlocks(t *testing.T) {
	src := "Here:\n\n```go\npackage main\n\nfunc main() {}\n```\n\nDone."
	out := HighlightCodeBlocks(src)

	if out == src {
		t.Fatal("expected go block to be highlighted")
	}
	if !strings.Contains(out, "\x1b[") {
		t.Fatal("expected ANSI escapes in output")
	}
	if got := StripANSI(out); got != src {
		t.Errorf("stripped output differs from source:\n%q\n%q", got, src)
	}
}

func TestHighlightCodeBlocksLeavesUnknownLanguages(t *testing.T) {
	src := "```nosuchlang\nkeep me\n```\n\nno code here"
	if got := HighlightCodeBlocks(src); got != src {
		t.Errorf("got %q, want unchanged", got)
	}
	plain := "just *markdown*"
	if got := HighlightCodeBlocks(plain); got != plain {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestHighlighterNil(t *testing.T) {
	if h := NewHighlighter(""); h != nil {
		t.Fatal("empty language should have no highlighter")
	}
	var h *Highlighter
	if got := h.Highlight("x := 1"); got != "x := 1" {
		t.Errorf("nil highlighter changed input: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"你好世界你好", 7, "你好..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestANSILen(t *testing.T) {
	if got := ANSILen("\x1b[1mbold\x1b[0m"); got != 4 {
		t.Errorf("ANSILen = %d, want 4", got)
	}
}

func TestStreamingIndicator(t *testing.T) {
	out := StreamingIndicator{
		Spinner:    "•",
		Phase:      "Responding",
		Backend:    "qwen",
		Elapsed:    1500 * time.Millisecond,
		Fragments:  3,
		ShowCancel: true,
	}.Render(PlainStyles())

	plain := StripANSI(out)
	for _, want := range []string{"• Responding...", "qwen", "3 chunks", "1.5s", "esc to cancel"} {
		if !strings.Contains(plain, want) {
			t.Errorf("indicator %q missing %q", plain, want)
		}
	}
}

func TestFormatResult(t *testing.T) {
	s := PlainStyles()
	if got := StripANSI(s.FormatResult(true, "ok")); got != SuccessIcon+" ok" {
		t.Errorf("got %q", got)
	}
	if got := StripANSI(s.FormatResult(false, "bad")); got != FailIcon+" bad" {
		t.Errorf("got %q", got)
	}
}

func TestWizardConfig(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "sk-test")
	t.Setenv("OPENAI_API_KEY", "")
	backends := detectAvailableBackends()

	cfg, err := wizardConfig(backends, "qwen", "")
	if err != nil {
		t.Fatalf("wizardConfig: %v", err)
	}
	if cfg.Backend != "qwen" || cfg.Model != "qwen-turbo" {
		t.Errorf("got backend=%q model=%q", cfg.Backend, cfg.Model)
	}
	if cfg.Backends["qwen"].APIKey != "${DASHSCOPE_API_KEY}" {
		t.Errorf("api key reference = %q", cfg.Backends["qwen"].APIKey)
	}

	cfg, err = wizardConfig(backends, "debug", "")
	if err != nil {
		t.Fatalf("debug: %v", err)
	}
	if len(cfg.Backends) != 0 {
		t.Errorf("debug needs no credential, got %v", cfg.Backends)
	}

	if _, err := wizardConfig(backends, "openai", ""); err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("expected missing credential hint, got %v", err)
	}
	if _, err := wizardConfig(backends, "nope", ""); err == nil {
		t.Error("expected unknown backend error")
	}
}

func TestBackendSelectOptionsAvailableFirst(t *testing.T) {
	backends := []backendOption{
		{name: "A", value: "a", envVar: "A_KEY"},
		{name: "B", value: "b", available: true},
	}
	opts := backendSelectOptions(backends)
	if len(opts) != 2 || opts[0].Value != "b" {
		t.Fatalf("unexpected order: %+v", opts)
	}
}
