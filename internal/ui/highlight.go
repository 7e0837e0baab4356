package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/x/ansi"
)

// highlighterCache caches highlighters by language name; lexer lookup walks
// every registered lexer.
var (
	highlighterCache   = make(map[string]*Highlighter)
	highlighterCacheMu sync.RWMutex
)

// Highlighter applies syntax highlighting for one language.
type Highlighter struct {
	lexer chroma.Lexer
	style *chroma.Style
}

// NewHighlighter returns a highlighter for a fenced code block language
// tag such as "go" or "python". It returns nil for unknown languages.
func NewHighlighter(lang string) *Highlighter {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return nil
	}

	highlighterCacheMu.RLock()
	h, ok := highlighterCache[lang]
	highlighterCacheMu.RUnlock()
	if ok {
		return h
	}

	if lexer := lexers.Get(lang); lexer != nil {
		style := styles.Get("monokai")
		if style == nil {
			style = styles.Fallback
		}
		h = &Highlighter{lexer: chroma.Coalesce(lexer), style: style}
	}

	highlighterCacheMu.Lock()
	highlighterCache[lang] = h
	highlighterCacheMu.Unlock()
	return h
}

// Highlight colours code with true-colour foreground escapes, keeping line
// breaks where they were. A nil highlighter returns code unchanged.
func (h *Highlighter) Highlight(code string) string {
	if h == nil {
		return code
	}
	iterator, err := h.lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	formatter := &noBgFormatter{style: h.style}
	if err := formatter.Format(&buf, iterator); err != nil {
		return code
	}
	out := buf.String()
	// lexers may add a trailing newline
	if !strings.HasSuffix(code, "\n") {
		out = strings.TrimSuffix(out, "\n")
	}
	return out
}

// noBgFormatter is a Chroma formatter that applies only foreground colors.
// Escapes never span a newline so the output can be split into lines.
type noBgFormatter struct {
	style *chroma.Style
}

func (f *noBgFormatter) Format(w io.Writer, iterator chroma.Iterator) error {
	for token := iterator(); token != chroma.EOF; token = iterator() {
		entry := f.style.Get(token.Type)

		var codes []string
		if entry.Colour.IsSet() {
			codes = append(codes, fmt.Sprintf("38;2;%d;%d;%d", entry.Colour.Red(), entry.Colour.Green(), entry.Colour.Blue()))
		}
		if entry.Bold == chroma.Yes {
			codes = append(codes, "1")
		}
		if entry.Italic == chroma.Yes {
			codes = append(codes, "3")
		}
		if entry.Underline == chroma.Yes {
			codes = append(codes, "4")
		}

		for i, part := range strings.Split(token.Value, "\n") {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if part == "" {
				continue
			}
			var err error
			if len(codes) > 0 {
				_, err = fmt.Fprintf(w, "\x1b[%sm%s\x1b[0m", strings.Join(codes, ";"), part)
			} else {
				_, err = io.WriteString(w, part)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// StripANSI removes all ANSI escape codes from a string
func StripANSI(s string) string {
	return ansi.Strip(s)
}

// ANSILen returns the display width of a string, ignoring ANSI codes
func ANSILen(s string) int {
	return ansi.StringWidth(s)
}
