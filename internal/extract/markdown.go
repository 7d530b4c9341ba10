package extract

import (
	"context"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Markdown extracts plain text from Markdown files via the goldmark AST.
type Markdown struct{}

func NewMarkdown() *Markdown { return &Markdown{} }

func (m *Markdown) CanHandle(source string) bool {
	return hasExt(source, ".md", ".markdown")
}

func (m *Markdown) Extract(ctx context.Context, source string) (*Content, error) {
	src, err := os.ReadFile(source)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var title string
	var b strings.Builder
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if title == "" && node.Level == 1 {
				title = string(nodeText(node, src))
			}
			b.WriteString("\n")
		case *ast.Paragraph, *ast.ListItem, *ast.Blockquote:
			b.WriteString("\n")
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteString("\n")
			} else {
				b.WriteString(" ")
			}
		case *ast.CodeBlock:
			writeLines(&b, node, src)
		case *ast.FencedCodeBlock:
			writeLines(&b, node, src)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = titleFromPath(source)
	}
	return &Content{SourceRef: source, Title: title, RawText: collapseBlankLines(b.String())}, nil
}

func nodeText(n ast.Node, src []byte) []byte {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
		}
	}
	return []byte(b.String())
}

func writeLines(b *strings.Builder, n ast.Node, src []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	b.WriteString("\n")
}
