package goldmark

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// walker renders one document. Blocks are collected as rendered strings
// and joined with blank lines.
type walker struct {
	s      styles
	source []byte
}

func (r *Renderer) render(source []byte, width int) string {
	doc := r.parser.Parse(text.NewReader(source))
	w := walker{s: r.styles, source: source}
	return strings.Join(w.blocks(doc, width), "\n\n")
}

func (w walker) blocks(parent ast.Node, width int) []string {
	var out []string
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if s := w.block(n, width); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (w walker) block(node ast.Node, width int) string {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return wrap(w.inline(n), width)
	case *ast.Heading:
		return wrap(w.s.heading.Render(w.inline(n)), width)
	case *ast.FencedCodeBlock:
		code := w.code(n)
		if lang := string(n.Language(w.source)); lang != "" {
			return w.s.muted.Render(lang) + "\n" + code
		}
		return code
	case *ast.CodeBlock:
		return w.code(n)
	case *ast.List:
		return w.list(n, width)
	case *ast.Blockquote:
		return w.quote(n, width)
	case *ast.ThematicBreak:
		return w.s.muted.Render(strings.Repeat("─", min(width, 40)))
	case *ast.HTMLBlock:
		return strings.TrimRight(w.lines(n), "\n")
	default:
		return strings.Join(w.blocks(n, width), "\n\n")
	}
}

// code renders a code block verbatim behind a gutter.
func (w walker) code(n ast.Node) string {
	gutter := w.s.muted.Render("│") + " "
	raw := strings.TrimRight(w.lines(n), "\n")
	rows := strings.Split(raw, "\n")
	for i, row := range rows {
		rows[i] = gutter + w.s.codeBlock.Render(row)
	}
	return strings.Join(rows, "\n")
}

func (w walker) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := range lines.Len() {
		seg := lines.At(i)
		b.Write(seg.Value(w.source))
	}
	return b.String()
}

func (w walker) quote(n *ast.Blockquote, width int) string {
	bar := w.s.muted.Render("▌") + " "
	inner := strings.Join(w.blocks(n, max(width-2, 10)), "\n\n")
	rows := strings.Split(inner, "\n")
	for i, row := range rows {
		rows[i] = bar + row
	}
	return strings.Join(rows, "\n")
}

func (w walker) list(n *ast.List, width int) string {
	var rows []string
	num := n.Start
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		marker := "- "
		if n.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		rows = append(rows, w.item(item, marker, width)...)
	}
	return strings.Join(rows, "\n")
}

// item renders a list item with continuation lines aligned under its text.
// Nested lists are indented by the marker width.
func (w walker) item(item *ast.ListItem, marker string, width int) []string {
	indent := strings.Repeat(" ", len(marker))
	inner := max(width-len(marker), 10)
	var rows []string
	first := true
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		var body string
		if list, ok := c.(*ast.List); ok {
			body = w.list(list, inner)
		} else {
			body = w.block(c, inner)
		}
		for _, row := range strings.Split(body, "\n") {
			if first {
				rows = append(rows, marker+row)
				first = false
				continue
			}
			rows = append(rows, indent+row)
		}
	}
	if first {
		rows = append(rows, strings.TrimRight(marker, " "))
	}
	return rows
}

// inline collects the styled text of a block's inline children.
func (w walker) inline(n ast.Node) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.writeInline(&b, c)
	}
	return b.String()
}

func (w walker) writeInline(b *strings.Builder, node ast.Node) {
	switch n := node.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(w.source))
		switch {
		case n.HardLineBreak():
			b.WriteByte('\n')
		case n.SoftLineBreak():
			b.WriteByte(' ')
		}
	case *ast.String:
		b.Write(n.Value)
	case *ast.Emphasis:
		style := w.s.bold
		if n.Level == 1 {
			style = w.s.italic
		}
		b.WriteString(style.Render(w.inline(n)))
	case *ast.CodeSpan:
		b.WriteString(w.s.code.Render(w.inline(n)))
	case *ast.Link:
		b.WriteString(w.s.link.Render(w.inline(n)))
		b.WriteString(" " + w.s.muted.Render("("+string(n.Destination)+")"))
	case *ast.Image:
		b.WriteString(w.s.link.Render(w.inline(n)))
		b.WriteString(" " + w.s.muted.Render("("+string(n.Destination)+")"))
	case *ast.AutoLink:
		b.WriteString(w.s.link.Render(string(n.URL(w.source))))
	case *ast.RawHTML:
		for i := range n.Segments.Len() {
			seg := n.Segments.At(i)
			b.Write(seg.Value(w.source))
		}
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.writeInline(b, c)
		}
	}
}

func wrap(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}
