// Package goldmark renders assistant markdown to ANSI-styled terminal output
// using goldmark for parsing and lipgloss for styling.
package goldmark

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/chatstream"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
)

const defaultWidth = 80

// Renderer converts markdown to terminal text. A Renderer is safe for
// concurrent use; each Render call walks its own document.
type Renderer struct {
	parser parser.Parser
	styles styles
}

// New creates a Renderer styled with theme.
func New(theme chatstream.Theme) *Renderer {
	return &Renderer{
		parser: goldmark.DefaultParser(),
		styles: newStyles(theme),
	}
}

// Render parses markdown source and returns styled output. Paragraphs and
// list items are word-wrapped to width. Code blocks keep their line breaks.
func (r *Renderer) Render(source string, width int) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	return r.render([]byte(source), width)
}

// Render is a convenience for New(theme).Render(source, width).
func Render(source string, width int, theme chatstream.Theme) string {
	return New(theme).Render(source, width)
}

type styles struct {
	bold      lipgloss.Style
	italic    lipgloss.Style
	heading   lipgloss.Style
	muted     lipgloss.Style
	link      lipgloss.Style
	code      lipgloss.Style
	codeBlock lipgloss.Style
}

func newStyles(t chatstream.Theme) styles {
	return styles{
		bold:      lipgloss.NewStyle().Bold(true),
		italic:    lipgloss.NewStyle().Italic(true),
		heading:   lipgloss.NewStyle().Foreground(ansiColor(t.Accent)).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true),
		link:      lipgloss.NewStyle().Underline(true),
		code:      lipgloss.NewStyle().Foreground(ansiColor(t.Accent)),
		codeBlock: lipgloss.NewStyle().Background(ansiColor(t.CodeBg)),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}
