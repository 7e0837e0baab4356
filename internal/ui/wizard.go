package ui

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/floatchat/floatchat/internal/config"
)

// backendOption represents a backend choice in the setup wizard
type backendOption struct {
	name      string
	value     string
	envVar    string // empty when no credential is needed
	model     string // suggested default model
	available bool
}

// detectAvailableBackends checks which backends have credentials configured
func detectAvailableBackends() []backendOption {
	options := []backendOption{
		{name: "Qwen (DashScope)", value: "qwen", envVar: "DASHSCOPE_API_KEY", model: "qwen-turbo"},
		{name: "Coze bot", value: "coze", envVar: "COZE_ACCESS_TOKEN"},
		{name: "OpenRouter", value: "openrouter", envVar: "OPENROUTER_API_KEY", model: "openrouter/auto"},
		{name: "OpenAI", value: "openai", envVar: "OPENAI_API_KEY", model: "gpt-4o-mini"},
		{name: "Anthropic", value: "anthropic", envVar: "ANTHROPIC_API_KEY", model: "claude-sonnet-4-5"},
		{name: "Gemini", value: "gemini", envVar: "GEMINI_API_KEY", model: "gemini-2.5-flash"},
		{name: "Debug - offline canned replies", value: "debug"},
	}
	for i := range options {
		options[i].available = options[i].envVar == "" || os.Getenv(options[i].envVar) != ""
	}
	return options
}

func (o backendOption) label() string {
	switch {
	case o.envVar == "":
		return o.name + " ✓"
	case o.available:
		return fmt.Sprintf("%s - %s ✓", o.name, o.envVar)
	}
	return fmt.Sprintf("%s - %s (not set)", o.name, o.envVar)
}

// backendSelectOptions lists available backends first.
func backendSelectOptions(backends []backendOption) []huh.Option[string] {
	var available, unavailable []huh.Option[string]
	for _, b := range backends {
		opt := huh.NewOption(b.label(), b.value)
		if b.available {
			available = append(available, opt)
		} else {
			unavailable = append(unavailable, opt)
		}
	}
	return append(available, unavailable...)
}

// RunSetupWizard asks for a backend and model, writes the global config
// and returns it.
func RunSetupWizard() (*config.Config, error) {
	var out io.Writer = os.Stderr
	tty, ttyErr := getTTY()
	if ttyErr == nil {
		defer tty.Close()
		out = tty
	}
	fmt.Fprint(out, "Welcome to floatchat! Let's get you set up.\n\n")

	backends := detectAvailableBackends()

	var backend, model string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which backend do you want to chat with?").
				Description("Backends marked ✓ have a credential in the environment").
				Options(backendSelectOptions(backends)...).
				Value(&backend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Model").
				Description("Leave empty for the backend default. For Coze this is the bot id.").
				Value(&model),
		),
	)
	if ttyErr == nil {
		form = form.WithInput(tty).WithOutput(tty)
	}
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, fmt.Errorf("setup cancelled")
		}
		return nil, err
	}

	cfg, err := wizardConfig(backends, backend, model)
	if err != nil {
		return nil, err
	}
	if err := config.WriteGlobal(cfg); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(out, "Config saved to %s\n\n", config.GlobalPath())
	return cfg, nil
}

// wizardConfig builds the config for the chosen backend. A backend
// without its credential is rejected with a hint.
func wizardConfig(backends []backendOption, backend, model string) (*config.Config, error) {
	var selected *backendOption
	for i := range backends {
		if backends[i].value == backend {
			selected = &backends[i]
			break
		}
	}
	if selected == nil {
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
	if !selected.available {
		return nil, fmt.Errorf("backend %s is not configured\n\nset %s and run setup again", selected.name, selected.envVar)
	}

	cfg := config.Default()
	cfg.Backend = selected.value
	cfg.Model = model
	if cfg.Model == "" {
		cfg.Model = selected.model
	}
	if selected.envVar != "" {
		cfg.Backends = map[string]config.BackendConfig{
			selected.value: {APIKey: "${" + selected.envVar + "}"},
		}
	}
	return cfg, nil
}

func getTTY() (*os.File, error) {
	return os.OpenFile("/dev/tty", os.O_RDWR, 0)
}
