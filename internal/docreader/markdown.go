package docreader

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// markdownParser pre-flattens markdown into a plain text stream so the
// Chunker's word-buffer algorithm only ever sees prose, never markdown
// syntax.
var markdownParser = goldmark.New(goldmark.WithExtensions(extension.Table))

// FlattenMarkdown walks a markdown document's AST and emits its text
// content (headings, paragraph text, list items, table cells) joined by
// single spaces, discarding formatting syntax and link/image targets.
func FlattenMarkdown(content []byte) string {
	if len(content) == 0 {
		return ""
	}

	reader := text.NewReader(content)
	doc := markdownParser.Parser().Parse(reader)

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindText:
			t := n.(*ast.Text)
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.Write(t.Segment.Value(content))
		case ast.KindString:
			s := n.(*ast.String)
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.Write(s.Value)
		case ast.KindCodeSpan, ast.KindFencedCodeBlock, ast.KindCodeBlock:
			// Code content is not prose; excluded from the flattened stream.
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(sb.String()), " ")
}
