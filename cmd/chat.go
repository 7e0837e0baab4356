package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/floatchat/floatchat/internal/agent"
	"github.com/floatchat/floatchat/internal/tui"
	"github.com/floatchat/floatchat/internal/ui"
)

var (
	chatFlags backendFlags
	chatTUI   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Chat with the configured backend.

By default chat reads one message per line and streams each reply. Lines
starting with / are commands, type /help to list them. Ctrl+C while a reply
streams discards it; Ctrl+C at the prompt exits.

Examples:
  floatchat chat
  floatchat chat --tui
  floatchat chat --backend coze --model <bot-id>
  floatchat chat --backend debug:slow     # offline, slow canned replies`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatFlags.register(chatCmd)
	chatCmd.Flags().BoolVar(&chatTUI, "tui", false, "Use the full-screen interface")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := maybeRunSetup(); err != nil {
		return err
	}
	cfg, err := loadConfig(&chatFlags)
	if err != nil {
		return err
	}
	log, closeLog, err := setupLogger(cfg, true)
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := newAgent(cfg, log, "")
	if err != nil {
		return err
	}
	log.Info("chat started", "agent", a.ID(), "backend", a.Backend())

	if chatTUI {
		ctx, stop := signalContext()
		defer stop()
		return tui.Run(ctx, a, ui.DefaultStyles())
	}

	// SIGINT cancels the running turn, or ends the session when idle.
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				if !a.Cancel() {
					stop()
					return
				}
			}
		}
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "Chatting with %s. Type /help for commands, /quit to exit.\n", a.Backend())
	return runREPL(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout(), ui.NewStyles(os.Stdout))
}

// runREPL reads one message per line from in and streams each reply to
// out until in is exhausted, ctx is cancelled or /quit is entered.
func runREPL(ctx context.Context, a *agent.Agent, in io.Reader, out io.Writer, styles *ui.Styles) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, styles.User.Render(ui.PromptIcon)+" ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		if tui.IsCommand(line) {
			res, err := tui.ExecuteCommand(a, line)
			if err != nil {
				fmt.Fprintln(out, styles.FormatResult(false, err.Error()))
				continue
			}
			if res.Quit {
				return nil
			}
			if res.Output != "" {
				fmt.Fprintln(out, res.Output)
			}
			continue
		}

		if err := streamTurn(ctx, a, line, out, styles); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(out, styles.FormatResult(false, err.Error()))
		}
	}
}

// streamTurn runs one turn and prints fragments as they arrive. A
// cancelled turn prints a notice and is not an error.
func streamTurn(ctx context.Context, a *agent.Agent, query string, out io.Writer, styles *ui.Styles) error {
	view, err := a.Chat(ctx, query)
	if err != nil {
		return err
	}
	reply, err := view.Collect(ctx, func(text string) {
		fmt.Fprint(out, styles.Assistant.Render(text))
	})
	if reply != "" {
		fmt.Fprintln(out)
	}
	// ctx errors leave the watcher still draining
	if werr := a.Wait(ctx); err == nil {
		err = werr
	}
	if errors.Is(err, agent.ErrCancelled) {
		fmt.Fprintln(out, styles.Muted.Render("(reply discarded)"))
		return nil
	}
	return err
}
