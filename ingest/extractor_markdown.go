package ingest

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// ExtractMarkdown converts markdown to plain text by walking the goldmark
// AST: inline formatting markers are dropped, block boundaries become blank
// lines, code blocks are kept verbatim.
func ExtractMarkdown(source []byte) string {
	parser := goldmark.New().Parser()
	doc := parser.Parse(gmtext.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.(type) {
			case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.Blockquote:
				buf.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.AutoLink:
			buf.Write(v.URL(source))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
			buf.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})

	return NormalizeText(buf.String())
}
