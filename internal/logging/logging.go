// Package logging builds the slog loggers used across floatchat.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

const timeFormat = "2006-01-02 15:04:05.000Z07:00"

// ParseLevel parses debug, info, warn or error. An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
}

// New returns a tint logger writing to w. Colour is disabled unless w is
// a terminal.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(newHandler(w, level, !isTerminal(w)))
}

func newHandler(w io.Writer, level slog.Level, noColor bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: timeFormat,
		NoColor:    noColor,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})
}

// Open appends to the log file at path. The returned close function must
// be called on exit.
func Open(path string, level slog.Level) (*slog.Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(newHandler(f, level, true)), f.Close, nil
}

// Setup picks the destination for the CLI: the log file when path is set,
// otherwise stderr.
func Setup(levelName, path string) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(levelName)
	if err != nil {
		return nil, nil, err
	}
	if path != "" {
		return Open(path, level)
	}
	return New(os.Stderr, level), func() error { return nil }, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
