package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/floatchat/floatchat/internal/agent"
	"github.com/floatchat/floatchat/internal/config"
	"github.com/floatchat/floatchat/internal/exitcode"
	"github.com/floatchat/floatchat/internal/llm"
	"github.com/floatchat/floatchat/internal/logging"
	"github.com/floatchat/floatchat/internal/ui"
)

var (
	configPath string
	logLevel   string
	logFile    string
)

// registry holds every backend the CLI can build.
var registry = llm.DefaultRegistry()

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: global and project floatchat.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return exitcode.ExitError{Code: exitcode.Usage, Message: err.Error()}
	})
}

var rootCmd = &cobra.Command{
	Use:   "floatchat",
	Short: "Chat with LLM backends from the terminal",
	Long: `floatchat streams conversations with Coze, Qwen and other LLM backends.

Examples:
  floatchat chat                        # line-based chat
  floatchat chat --tui                  # full-screen chat
  floatchat chat --backend debug        # offline canned replies
  floatchat ask "what is a goroutine?"
  floatchat serve --addr :8787          # WebSocket server
  floatchat init                        # write a config file`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceErrors:     true,
	SilenceUsage:      true,
}

// Execute runs the root command and exits with a code derived from the
// returned error.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	code := exitcode.For(err)
	if code != exitcode.Cancelled {
		fmt.Fprintln(os.Stderr, ui.DefaultStyles().FormatResult(false, err.Error()))
	}
	os.Exit(code)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// backendFlags are shared by commands that talk to a backend.
type backendFlags struct {
	backend string
	model   string
	prompt  string
}

func (f *backendFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.backend, "backend", "b", "", "Backend to use (see 'floatchat backends')")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Model name, or bot id for coze")
	cmd.Flags().StringVarP(&f.prompt, "prompt", "p", "", "System prompt")
	_ = cmd.RegisterFlagCompletionFunc("backend", backendFlagCompletion)
}

// loadConfig loads the configuration and applies command-line overrides.
func loadConfig(flags *backendFlags) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, exitcode.ExitError{Code: exitcode.Config, Message: err.Error()}
	}
	if flags != nil {
		cfg.ApplyOverrides(flags.backend, flags.model, flags.prompt)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, exitcode.ExitError{Code: exitcode.Config, Message: fmt.Sprintf("invalid config: %v", err)}
	}
	return cfg, nil
}

// setupLogger builds the logger for cfg. Interactive commands keep stderr
// quiet unless a log file or level was asked for.
func setupLogger(cfg *config.Config, interactive bool) (*slog.Logger, func() error, error) {
	if interactive && cfg.LogFile == "" && logLevel == "" {
		return logging.Discard(), func() error { return nil }, nil
	}
	log, closeFn, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, exitcode.ExitError{Code: exitcode.Config, Message: err.Error()}
	}
	return log, closeFn, nil
}

// newProvider builds the configured backend, suggesting a name when the
// backend is unknown.
func newProvider(cfg *config.Config, log *slog.Logger) (llm.Provider, error) {
	opts, err := cfg.ProviderOptions(cfg.Backend)
	if err != nil {
		return nil, exitcode.ExitError{Code: exitcode.Config, Message: err.Error()}
	}
	opts.Logger = log.With("backend", cfg.Backend)
	p, err := registry.New(cfg.Backend, opts)
	if err != nil {
		if suggestion := suggestBackend(cfg.Backend); suggestion != "" {
			return nil, fmt.Errorf("%w (did you mean %q?)", err, suggestion)
		}
		return nil, err
	}
	return p, nil
}

// newAgent builds an agent for cfg. id may be empty.
func newAgent(cfg *config.Config, log *slog.Logger, id string) (*agent.Agent, error) {
	p, err := newProvider(cfg, log)
	if err != nil {
		return nil, err
	}
	opts := []agent.Option{
		agent.WithPrompt(cfg.SystemPrompt),
		agent.WithMaxHistory(cfg.MaxHistory),
		agent.WithConfig(cfg.Generation()),
		agent.WithLogger(log),
	}
	if id != "" {
		opts = append(opts, agent.WithID(id))
	}
	return agent.New(p, opts...), nil
}

// maybeRunSetup runs the setup wizard the first time an interactive
// command starts with no configuration at all.
func maybeRunSetup() error {
	if configPath != "" || config.Exists() || os.Getenv("FLOATCHAT_BACKEND") != "" {
		return nil
	}
	if !ui.IsTerminal(os.Stdin) || !ui.IsTerminal(os.Stderr) {
		return nil
	}
	_, err := ui.RunSetupWizard()
	return err
}
