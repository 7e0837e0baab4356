package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/floatchat/floatchat/internal/ui"
)

// backendEnv names the credential each backend reads when no api_key is
// configured.
var backendEnv = map[string]string{
	"coze":       "COZE_ACCESS_TOKEN",
	"qwen":       "DASHSCOPE_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List available backends",
	Long: `List the registered backends and whether a credential is available.

A credential counts as available when the config file sets an api_key for
the backend or its environment variable is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		configured := make(map[string]bool)
		for name, bc := range cfg.Backends {
			configured[strings.ToLower(name)] = bc.APIKey != ""
		}
		printBackends(cmd.OutOrStdout(), ui.NewStyles(os.Stdout), cfg.Backend, configured)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}

func printBackends(w io.Writer, styles *ui.Styles, current string, configured map[string]bool) {
	for _, name := range registry.Names() {
		base, _, _ := strings.Cut(name, ":")
		envVar := backendEnv[base]

		var status string
		switch {
		case envVar == "":
			status = styles.Muted.Render("no credential needed")
		case configured[base] || os.Getenv(envVar) != "":
			status = styles.Success.Render(ui.SuccessIcon + " " + envVar)
		default:
			status = styles.Warning.Render(envVar + " not set")
		}

		marker := "  "
		if name == current {
			marker = styles.Bold.Render(ui.PromptIcon) + " "
		}
		fmt.Fprintf(w, "%s%-16s %s\n", marker, name, status)
	}
}

// suggestBackend returns the closest registered backend name, or "".
func suggestBackend(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	matches := fuzzy.Find(name, registry.Names())
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

// backendFlagCompletion completes --backend values.
func backendFlagCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, name := range registry.Names() {
		if strings.HasPrefix(name, toComplete) {
			out = append(out, name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
