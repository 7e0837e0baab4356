package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/floatchat/floatchat/internal/agent"
	"github.com/floatchat/floatchat/internal/exitcode"
	"github.com/floatchat/floatchat/internal/ui"
)

var (
	askFlags backendFlags
	askText  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and stream the answer",
	Long: `Send one question to the configured backend and print the reply.

The exit code reflects the failure kind: 3 configuration, 4 transport,
5 backend error, 6 malformed stream, 130 interrupted.

Examples:
  floatchat ask "What is the capital of France?"
  floatchat ask --backend coze --model <bot-id> "hello"
  echo "summarise this" | floatchat ask
  floatchat ask --text "list 5 languages"    # raw streaming output`,
	RunE: func(cmd *cobra.Command, args []string) error {
		question, err := askQuestion(args, os.Stdin)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(&askFlags)
		if err != nil {
			return err
		}
		log, closeLog, err := setupLogger(cfg, false)
		if err != nil {
			return err
		}
		defer closeLog()

		a, err := newAgent(cfg, log, "")
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		plain := askText || !term.IsTerminal(int(os.Stdout.Fd()))
		return runAsk(ctx, a, question, cmd.OutOrStdout(), os.Stderr, plain)
	},
}

func init() {
	askFlags.register(askCmd)
	askCmd.Flags().BoolVarP(&askText, "text", "t", false, "Stream raw text instead of highlighting the finished reply")
	rootCmd.AddCommand(askCmd)
}

// askQuestion joins the arguments, or reads the question from a piped
// stdin when there are none.
func askQuestion(args []string, stdin *os.File) (string, error) {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" && stdin != nil && !term.IsTerminal(int(stdin.Fd())) {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" {
		return "", exitcode.ExitError{Code: exitcode.Usage, Message: "a question is required"}
	}
	return question, nil
}

// runAsk runs one turn. Plain mode streams fragments to out as they
// arrive; otherwise a progress line is drawn on status and the finished
// reply is printed with highlighted code blocks.
func runAsk(ctx context.Context, a *agent.Agent, question string, out, status io.Writer, plain bool) error {
	view, err := a.Chat(ctx, question)
	if err != nil {
		return err
	}

	if plain {
		reply, err := view.Collect(ctx, func(text string) {
			fmt.Fprint(out, text)
		})
		if reply != "" {
			fmt.Fprintln(out)
		}
		return err
	}

	styles := ui.DefaultStyles()
	indicator := ui.StreamingIndicator{Phase: "Waiting", Backend: a.Backend()}
	start := time.Now()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var reply strings.Builder
	draw := func() {
		indicator.Elapsed = time.Since(start)
		fmt.Fprintf(status, "\r\x1b[K%s", indicator.Render(styles))
	}
	clearLine := func() { fmt.Fprint(status, "\r\x1b[K") }

	for {
		text, ok, err := view.Next()
		switch {
		case !ok:
			select {
			case <-ctx.Done():
				clearLine()
				// the watcher rolls the turn back and reports it on the view
				_, werr := view.Collect(context.Background(), nil)
				if werr == nil {
					werr = ctx.Err()
				}
				return werr
			case <-view.Updates():
			case <-ticker.C:
				draw()
			}
			continue
		case err != nil:
			clearLine()
			return err
		case text == "":
			clearLine()
			width := 100
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
				width = w
			}
			fmt.Fprintln(out, wordwrap.String(ui.HighlightCodeBlocks(reply.String()), width))
			return nil
		}
		reply.WriteString(text)
		indicator.Phase = "Responding"
		indicator.Fragments++
	}
}
