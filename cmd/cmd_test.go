package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floatchat/floatchat/internal/agent"
	"github.com/floatchat/floatchat/internal/exitcode"
	"github.com/floatchat/floatchat/internal/llm"
	"github.com/floatchat/floatchat/internal/logging"
	"github.com/floatchat/floatchat/internal/ui"
)

func TestRunREPL(t *testing.T) {
	p := llm.NewMockProvider("mock").
		AddTextResponse("first answer").
		AddError(&llm.ProviderError{Provider: "mock", Code: "4000", Message: "quota exceeded"}).
		AddTextResponse("third answer")
	a := agent.New(p)

	in := strings.NewReader("hello\n\n/history\nfails\nagain\n/quit\nnever sent\n")
	var out bytes.Buffer
	require.NoError(t, runREPL(t.Context(), a, in, &out, ui.PlainStyles()))

	got := ui.StripANSI(out.String())
	assert.Contains(t, got, "first answer")
	assert.Contains(t, got, "2 messages (1 user, 1 assistant)")
	assert.Contains(t, got, "quota exceeded")
	assert.Contains(t, got, "third answer")
	assert.NotContains(t, got, "never sent")

	history := a.History()
	require.Len(t, history, 4)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, "again", history[2].Content)
	assert.Equal(t, 3, len(p.Requests))
}

func TestRunREPLEndOfInput(t *testing.T) {
	a := agent.New(llm.NewMockProvider("mock"))
	var out bytes.Buffer
	require.NoError(t, runREPL(t.Context(), a, strings.NewReader(""), &out, ui.PlainStyles()))
	assert.Empty(t, a.History())
}

func TestStreamTurnCancelled(t *testing.T) {
	p := llm.NewMockProvider("mock")
	release := p.AddHeldTurn("discard me")
	a := agent.New(p)

	done := make(chan error, 1)
	var out bytes.Buffer
	go func() { done <- streamTurn(t.Context(), a, "q", &out, ui.PlainStyles()) }()

	require.Eventually(t, func() bool {
		return a.Status() == agent.StatusBusy && a.Cancel()
	}, time.Second, 5*time.Millisecond)
	release()

	require.NoError(t, <-done)
	assert.Contains(t, out.String(), "(reply discarded)")
	assert.Empty(t, a.History())
	assert.True(t, a.Usable())
}

func TestRunAskPlain(t *testing.T) {
	p := llm.NewMockProvider("mock").AddTextResponse("Paris is the capital.")
	a := agent.New(p, agent.WithPrompt("geography"))

	var out, status bytes.Buffer
	require.NoError(t, runAsk(t.Context(), a, "capital of France?", &out, &status, true))
	assert.Equal(t, "Paris is the capital.\n", out.String())
	assert.Empty(t, status.String())

	req, ok := p.LastRequest()
	require.True(t, ok)
	require.Len(t, req.History, 2)
	assert.Equal(t, llm.RoleSystem, req.History[0].Role)
}

func TestRunAskHighlighted(t *testing.T) {
	p := llm.NewMockProvider("mock").AddTextResponse("Use:\n\n```go\nfmt.Println(1)\n```\n")
	a := agent.New(p)

	var out, status bytes.Buffer
	require.NoError(t, runAsk(t.Context(), a, "print", &out, &status, false))
	assert.Contains(t, ui.StripANSI(out.String()), "fmt.Println(1)")
}

func TestRunAskExitCodes(t *testing.T) {
	tests := []struct {
		name string
		turn func(*llm.MockProvider)
		want int
	}{
		{"config", func(p *llm.MockProvider) { p.AddChatError(&llm.ConfigError{Provider: "mock", EnvVar: "MOCK_KEY"}) }, exitcode.Config},
		{"transport", func(p *llm.MockProvider) {
			p.AddError(&llm.TransportError{Provider: "mock", Err: errors.New("reset")}, "partial")
		}, exitcode.Transport},
		{"provider", func(p *llm.MockProvider) { p.AddError(&llm.ProviderError{Provider: "mock", Message: "bad bot"}) }, exitcode.Provider},
		{"parse", func(p *llm.MockProvider) { p.AddError(&llm.ParseError{Provider: "mock", Err: errors.New("bad json")}) }, exitcode.Parse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := llm.NewMockProvider("mock")
			tt.turn(p)
			a := agent.New(p)

			var out, status bytes.Buffer
			err := runAsk(t.Context(), a, "q", &out, &status, true)
			require.Error(t, err)
			assert.Equal(t, tt.want, exitcode.For(err))
			require.NoError(t, a.Wait(t.Context()))
			assert.Empty(t, a.History())
		})
	}
}

func TestRunAskContextCancelled(t *testing.T) {
	p := llm.NewMockProvider("mock")
	release := p.AddHeldTurn("slow")
	defer release()
	a := agent.New(p)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	var out, status bytes.Buffer
	err := runAsk(ctx, a, "q", &out, &status, false)
	require.Error(t, err)
	assert.Equal(t, exitcode.Cancelled, exitcode.For(err))
}

func TestAskQuestion(t *testing.T) {
	q, err := askQuestion([]string{"what", "is", "go?"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "what is go?", q)

	dir := t.TempDir()
	path := filepath.Join(dir, "stdin")
	require.NoError(t, os.WriteFile(path, []byte("  from a pipe\n"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	q, err = askQuestion(nil, f)
	require.NoError(t, err)
	assert.Equal(t, "from a pipe", q)

	_, err = askQuestion([]string{"  "}, nil)
	require.Error(t, err)
	assert.Equal(t, exitcode.Usage, exitcode.For(err))
}

func TestSuggestBackend(t *testing.T) {
	assert.Equal(t, "qwen", suggestBackend("qwn"))
	assert.Equal(t, "anthropic", suggestBackend("anthro"))
	assert.Empty(t, suggestBackend(""))
	assert.Empty(t, suggestBackend("zzzzzz"))
}

func TestPrintBackends(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "")
	t.Setenv("COZE_ACCESS_TOKEN", "token")

	var out bytes.Buffer
	printBackends(&out, ui.PlainStyles(), "coze", map[string]bool{"openai": true})
	got := ui.StripANSI(out.String())

	assert.Contains(t, got, ui.PromptIcon+" coze")
	assert.Contains(t, got, "DASHSCOPE_API_KEY not set")
	assert.Contains(t, got, ui.SuccessIcon+" OPENAI_API_KEY")
	assert.Contains(t, got, "debug:slow")
	assert.Contains(t, got, "no credential needed")
}

func TestNewAgentFromConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: debug:fast\nsystem_prompt: be terse\nmax_history: 4\n"), 0o600))

	configPath = path
	t.Cleanup(func() { configPath = "" })

	cfg, err := loadConfig(&backendFlags{model: "canned"})
	require.NoError(t, err)
	a, err := newAgent(cfg, logging.Discard(), "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", a.ID())
	assert.Equal(t, "be terse", a.Prompt())
	assert.Equal(t, "canned", a.Config().Model)

	var out, status bytes.Buffer
	require.NoError(t, runAsk(t.Context(), a, "ping", &out, &status, true))
	assert.Contains(t, out.String(), "Debug backend")

	cfg.Backend = "qwn"
	_, err = newAgent(cfg, logging.Discard(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "qwen"`)
	assert.Equal(t, exitcode.Config, exitcode.For(err))
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("temperature: 5\n"), 0o600))

	configPath = path
	t.Cleanup(func() { configPath = "" })

	_, err := loadConfig(nil)
	require.Error(t, err)
	assert.Equal(t, exitcode.Config, exitcode.For(err))
}
