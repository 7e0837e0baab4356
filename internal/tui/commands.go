package tui

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/floatchat/floatchat/internal/agent"
	"github.com/floatchat/floatchat/internal/llm"
	"github.com/floatchat/floatchat/internal/session"
)

// Command represents a slash command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
}

// AllCommands returns all available slash commands
func AllCommands() []Command {
	return []Command{
		{Name: "help", Aliases: []string{"h", "?"}, Description: "Show available commands", Usage: "/help"},
		{Name: "clear", Aliases: []string{"c"}, Description: "Clear conversation history", Usage: "/clear"},
		{Name: "quit", Aliases: []string{"q", "exit"}, Description: "Exit chat", Usage: "/quit"},
		{Name: "model", Aliases: []string{"m"}, Description: "Show or switch the model", Usage: "/model [name]"},
		{Name: "system", Description: "Show or set the system prompt", Usage: "/system [prompt]"},
		{Name: "temperature", Aliases: []string{"temp"}, Description: "Show or set the sampling temperature", Usage: "/temperature [0-2]"},
		{Name: "save", Description: "Save the conversation as JSON", Usage: "/save [path]"},
		{Name: "load", Description: "Load a conversation saved with /save", Usage: "/load <path>"},
		{Name: "export", Description: "Export the conversation as markdown", Usage: "/export [path]"},
		{Name: "history", Description: "Show message counts", Usage: "/history"},
	}
}

// CommandSource implements fuzzy.Source for command searching
type CommandSource []Command

func (c CommandSource) String(i int) string { return c[i].Name }

func (c CommandSource) Len() int { return len(c) }

// FilterCommands returns commands matching the query using fuzzy search
func FilterCommands(query string) []Command {
	commands := AllCommands()
	query = strings.ToLower(strings.TrimPrefix(query, "/"))
	if query == "" {
		return commands
	}

	for _, cmd := range commands {
		if cmd.Name == query {
			return []Command{cmd}
		}
		for _, alias := range cmd.Aliases {
			if alias == query {
				return []Command{cmd}
			}
		}
	}

	var result []Command
	for _, match := range fuzzy.FindFrom(query, CommandSource(commands)) {
		result = append(result, commands[match.Index])
	}
	return result
}

// IsCommand reports whether input is a slash command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// CommandResult is the outcome of a slash command.
type CommandResult struct {
	Output string
	Quit   bool
}

// ExecuteCommand runs a slash command against a. Lifecycle commands fail
// with agent.ErrBusy while a turn is running.
func ExecuteCommand(a *agent.Agent, input string) (CommandResult, error) {
	fields := strings.Fields(strings.TrimSpace(input))
	if len(fields) == 0 {
		return CommandResult{}, nil
	}
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), fields[0]))

	cmd, err := resolveCommand(name)
	if err != nil {
		return CommandResult{}, err
	}

	switch cmd.Name {
	case "help":
		return CommandResult{Output: helpText()}, nil
	case "quit":
		return CommandResult{Quit: true}, nil
	case "clear":
		if err := a.ClearHistory(); err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Output: "History cleared."}, nil
	case "model":
		if rest == "" {
			model := a.Config().Model
			if model == "" {
				model = "(backend default)"
			}
			return CommandResult{Output: fmt.Sprintf("Backend: %s, model: %s", a.Backend(), model)}, nil
		}
		if err := a.SetConfig(func(c *llm.GenerationConfig) { c.Model = rest }); err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Output: "Model set to " + rest}, nil
	case "system":
		if rest == "" {
			return CommandResult{Output: "System prompt: " + a.Prompt()}, nil
		}
		if err := a.SetPrompt(rest); err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Output: "System prompt updated."}, nil
	case "temperature":
		if rest == "" {
			return CommandResult{Output: fmt.Sprintf("Temperature: %g", a.Config().Temperature)}, nil
		}
		t, err := strconv.ParseFloat(rest, 32)
		if err != nil || t < 0 || t > 2 {
			return CommandResult{}, fmt.Errorf("temperature must be a number between 0 and 2")
		}
		if err := a.SetConfig(func(c *llm.GenerationConfig) { c.Temperature = float32(t) }); err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Output: fmt.Sprintf("Temperature set to %g", t)}, nil
	case "save":
		return saveConversation(a, rest)
	case "load":
		return loadConversation(a, rest)
	case "export":
		return exportConversation(a, rest)
	case "history":
		history := a.History()
		user, assistant := 0, 0
		for _, msg := range history {
			switch msg.Role {
			case llm.RoleUser:
				user++
			case llm.RoleAssistant:
				assistant++
			}
		}
		return CommandResult{Output: fmt.Sprintf("%d messages (%d user, %d assistant)", len(history), user, assistant)}, nil
	}
	return CommandResult{}, fmt.Errorf("command /%s is not implemented", cmd.Name)
}

// resolveCommand matches a name, alias or unique prefix.
func resolveCommand(name string) (Command, error) {
	for _, c := range AllCommands() {
		if c.Name == name {
			return c, nil
		}
		for _, alias := range c.Aliases {
			if alias == name {
				return c, nil
			}
		}
	}

	var matches []Command
	for _, c := range AllCommands() {
		if strings.HasPrefix(c.Name, name) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		if suggestions := FilterCommands(name); len(suggestions) > 0 {
			return Command{}, fmt.Errorf("unknown command /%s, did you mean /%s?", name, suggestions[0].Name)
		}
		return Command{}, fmt.Errorf("unknown command /%s, type /help for available commands", name)
	}
	names := make([]string, 0, len(matches))
	for _, c := range matches {
		names = append(names, "/"+c.Name)
	}
	return Command{}, fmt.Errorf("ambiguous command /%s, did you mean: %s?", name, strings.Join(names, ", "))
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, c := range AllCommands() {
		fmt.Fprintf(&b, "  %-20s %s\n", c.Usage, c.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func defaultPath(a *agent.Agent, ext string) string {
	return fmt.Sprintf("floatchat-%s.%s", session.ShortID(a.ID()), ext)
}

func saveConversation(a *agent.Agent, path string) (CommandResult, error) {
	data, err := a.Save()
	if err != nil {
		return CommandResult{}, err
	}
	if path == "" {
		path = defaultPath(a, "json")
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return CommandResult{}, fmt.Errorf("write %s: %w", path, err)
	}
	return CommandResult{Output: "Saved to " + path}, nil
}

func loadConversation(a *agent.Agent, path string) (CommandResult, error) {
	if path == "" {
		return CommandResult{}, errors.New("usage: /load <path>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return CommandResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := a.Restore(string(data)); err != nil {
		return CommandResult{}, err
	}
	return CommandResult{Output: fmt.Sprintf("Loaded %d messages from %s", len(a.History()), path)}, nil
}

func exportConversation(a *agent.Agent, path string) (CommandResult, error) {
	data, err := a.Save()
	if err != nil {
		return CommandResult{}, err
	}
	snap, err := session.ParseSnapshot(data)
	if err != nil {
		return CommandResult{}, fmt.Errorf("nothing to export: %w", err)
	}
	md := session.ExportToMarkdown(snap, session.ExportOptions{})
	if path == "" {
		path = defaultPath(a, "md")
	}
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return CommandResult{}, fmt.Errorf("write %s: %w", path, err)
	}
	return CommandResult{Output: "Exported to " + path}, nil
}
