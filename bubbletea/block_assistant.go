package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/chatstream/goldmark"
)

var _ MessageBlock = (*AssistantTextBlock)(nil)

// AssistantTextBlock renders the streamed reply as markdown. Text up to the
// last paragraph break is rendered once per width and cached; only the open
// paragraph is rendered again after each fragment.
type AssistantTextBlock struct {
	renderer *goldmark.Renderer
	content  strings.Builder

	stable      string
	stableCache map[int]string
}

// NewAssistantTextBlock creates an empty block.
func NewAssistantTextBlock(renderer *goldmark.Renderer) *AssistantTextBlock {
	return &AssistantTextBlock{
		renderer:    renderer,
		stableCache: make(map[int]string),
	}
}

// Append adds a fragment to the reply.
func (b *AssistantTextBlock) Append(fragment string) {
	b.content.WriteString(fragment)
	b.advanceStable()
}

// Text returns the raw reply received so far.
func (b *AssistantTextBlock) Text() string { return b.content.String() }

func (b *AssistantTextBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *AssistantTextBlock) View(width int) string {
	head := b.renderStable(width)
	tail := strings.TrimPrefix(b.content.String(), b.stable)
	tail = strings.TrimLeft(tail, "\n")
	if strings.TrimSpace(tail) == "" {
		return head
	}
	if openFence(tail) {
		tail += "\n```"
	}
	rendered := b.renderer.Render(tail, width)
	if head == "" {
		return rendered
	}
	return strings.TrimRight(head, "\n") + "\n\n" + rendered
}

// advanceStable moves the cached prefix to the last paragraph break that is
// outside a fenced code block.
func (b *AssistantTextBlock) advanceStable() {
	raw := b.content.String()
	end := len(raw)
	for {
		idx := strings.LastIndex(raw[:end], "\n\n")
		if idx <= len(b.stable) {
			return
		}
		if prefix := raw[:idx]; !openFence(prefix) {
			b.stable = prefix
			clear(b.stableCache)
			return
		}
		end = idx
	}
}

func (b *AssistantTextBlock) renderStable(width int) string {
	if b.stable == "" || width <= 0 {
		return ""
	}
	if out, ok := b.stableCache[width]; ok {
		return out
	}
	out := b.renderer.Render(b.stable, width)
	b.stableCache[width] = out
	return out
}

// openFence reports whether s ends inside a fenced code block. Triple
// backticks inside inline code are counted too.
func openFence(s string) bool {
	return strings.Count(s, "```")%2 == 1
}
