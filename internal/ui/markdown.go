package ui

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock locates the body of a fenced code block inside a markdown
// source. Start and Stop are byte offsets; the fences are excluded.
type CodeBlock struct {
	Language string
	Start    int
	Stop     int
}

var markdownParser = goldmark.New().Parser()

// FindCodeBlocks returns the fenced code blocks of src in document order.
// An unclosed fence runs to the end of src, which is what a reply that is
// still streaming looks like.
func FindCodeBlocks(src string) []CodeBlock {
	source := []byte(src)
	doc := markdownParser.Parse(text.NewReader(source))

	var blocks []CodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := fenced.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		blocks = append(blocks, CodeBlock{
			Language: string(fenced.Language(source)),
			Start:    lines.At(0).Start,
			Stop:     lines.At(lines.Len() - 1).Stop,
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// HighlightCodeBlocks syntax-highlights every fenced code block with a
// known language and leaves the rest of the markdown untouched.
func HighlightCodeBlocks(src string) string {
	blocks := FindCodeBlocks(src)
	if len(blocks) == 0 {
		return src
	}

	var b strings.Builder
	b.Grow(len(src))
	last := 0
	for _, block := range blocks {
		h := NewHighlighter(block.Language)
		if h == nil {
			continue
		}
		b.WriteString(src[last:block.Start])
		b.WriteString(h.Highlight(src[block.Start:block.Stop]))
		last = block.Stop
	}
	b.WriteString(src[last:])
	return b.String()
}
