package bubbletea

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/chatstream"
)

var _ MessageBlock = (*NoticeBlock)(nil)

// NoticeBlock renders the guidance for a failed turn. Throttling and quota
// notices use the warning style; other failures use the error style.
type NoticeBlock struct {
	outcome chatstream.Outcome
	styles  Styles
}

// NewNoticeBlock creates a NoticeBlock for outcome.
func NewNoticeBlock(outcome chatstream.Outcome, styles Styles) *NoticeBlock {
	return &NoticeBlock{outcome: outcome, styles: styles}
}

// Outcome returns the outcome the notice describes.
func (b *NoticeBlock) Outcome() chatstream.Outcome { return b.outcome }

func (b *NoticeBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *NoticeBlock) View(width int) string {
	style := b.styles.Error
	if b.outcome.RetractsUserTurn() {
		style = b.styles.Warning
	}
	return lipgloss.NewStyle().Width(width).Render(style.Render("! " + b.outcome.Notice()))
}
