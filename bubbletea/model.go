package bubbletea

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/chatstream"
	"github.com/fwojciec/chatstream/goldmark"
	"github.com/mattn/go-runewidth"
)

var _ tea.Model = Model{}

// Model is the Bubble Tea model for the chat widget.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	run        TurnFunc
	transcript *chatstream.Transcript
	styles     Styles
	renderer   *goldmark.Renderer

	blocks []MessageBlock

	// Blocks of the turn in flight. user is nil when no turn is running.
	user   *UserMessageBlock
	answer *AssistantTextBlock

	running  bool
	cancel   context.CancelFunc
	updateCh chan chatstream.Update
	doneCh   chan chatstream.Result
	last     chatstream.Outcome
	ready    bool
}

// New creates a Model that runs turns with run and records completed
// exchanges, and cancelled ones whose partial reply was kept, in transcript.
func New(run TurnFunc, transcript *chatstream.Transcript, theme chatstream.Theme) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	if transcript == nil {
		transcript = &chatstream.Transcript{}
	}
	return Model{
		Input:      ti,
		run:        run,
		transcript: transcript,
		styles:     NewStyles(theme),
		renderer:   goldmark.New(theme),
	}
}

// Running returns whether a turn is in flight.
func (m Model) Running() bool { return m.running }

// LastOutcome returns the outcome of the most recent turn.
func (m Model) LastOutcome() chatstream.Outcome { return m.last }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case UpdateMsg:
		m = m.applyUpdate(msg.Update)
		m.refresh()
		if m.updateCh != nil {
			return m, listenForUpdate(m.updateCh, m.doneCh)
		}
		return m, nil

	case TurnDoneMsg:
		m = m.resolve(msg.Result)
		m.refresh()
		return m, m.Input.Focus()
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)
	if !m.running {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	var b strings.Builder
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) resize(msg tea.WindowSizeMsg) Model {
	// One line each for status and input plus two separators.
	height := max(msg.Height-4, 1)
	if !m.ready {
		m.Viewport = viewport.New(msg.Width, height)
		m.blocks = m.transcriptBlocks()
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = height
	}
	m.Input.Width = msg.Width
	m.refresh()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyEnter:
		if m.running {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submit(text)
	}

	if m.running {
		return m, nil
	}
	// Character keys go to the input only so that letters used for
	// viewport scrolling can still be typed.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if msg.Type != tea.KeyRunes {
		m.Viewport, cmd = m.Viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.Input.Blur()
	m.blocks = dropNotices(m.blocks)

	m.user = NewUserMessageBlock(text, m.styles)
	m.answer = nil
	m.blocks = append(m.blocks, m.user)
	m.refresh()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.updateCh = make(chan chatstream.Update, 256)
	m.doneCh = make(chan chatstream.Result, 1)
	m.running = true

	req := m.transcript.Request(text)
	return m, tea.Batch(
		startTurn(ctx, m.run, req, m.updateCh, m.doneCh),
		listenForUpdate(m.updateCh, m.doneCh),
	)
}

func (m Model) applyUpdate(u chatstream.Update) Model {
	if !m.running {
		return m
	}
	if m.answer == nil {
		m.answer = NewAssistantTextBlock(m.renderer)
		m.blocks = append(m.blocks, m.answer)
	}
	m.answer.Append(u.Fragment)
	return m
}

// resolve settles the visible conversation for the finished turn.
func (m Model) resolve(res chatstream.Result) Model {
	if m.user == nil {
		return m
	}
	if m.cancel != nil {
		m.cancel()
	}
	out := res.Outcome
	switch {
	case out.Kind == chatstream.OutcomeCompleted:
		m.transcript.Record(m.user.Text(), res.Message)
	case out.RetractsUserTurn():
		m.blocks = remove(m.blocks, m.answer, m.user)
		m.Input.SetValue(m.user.Text())
		m.blocks = append(m.blocks, NewNoticeBlock(out, m.styles))
	case out.Failed():
		m.blocks = remove(m.blocks, m.answer)
		m.Input.SetValue(m.user.Text())
		m.blocks = append(m.blocks, NewNoticeBlock(out, m.styles))
	case out.Kind == chatstream.OutcomeCancelled && res.Message.Text != "":
		// Kept partial reply.
		m.transcript.Record(m.user.Text(), res.Message)
	case out.Kind == chatstream.OutcomeCancelled:
		// Nothing was kept; the message goes back to the input.
		m.blocks = remove(m.blocks, m.answer, m.user)
		m.Input.SetValue(m.user.Text())
	}

	m.last = out
	m.running = false
	m.cancel = nil
	m.updateCh = nil
	m.doneCh = nil
	m.user = nil
	m.answer = nil
	return m
}

func (m Model) transcriptBlocks() []MessageBlock {
	var blocks []MessageBlock
	for _, turn := range m.transcript.Turns {
		switch turn.Role {
		case chatstream.RoleUser:
			blocks = append(blocks, NewUserMessageBlock(turn.Content, m.styles))
		case chatstream.RoleAssistant:
			b := NewAssistantTextBlock(m.renderer)
			b.Append(turn.Content)
			blocks = append(blocks, b)
		}
	}
	return blocks
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()
}

func (m Model) renderContent() string {
	views := make([]string, 0, len(m.blocks))
	for _, b := range m.blocks {
		views = append(views, b.View(m.Viewport.Width))
	}
	return strings.Join(views, "\n\n")
}

func (m Model) statusLine() string {
	status, style := "Enter to send, Ctrl+C to quit", m.styles.Muted
	switch {
	case m.running:
		status, style = "Generating... Ctrl+C to stop", m.styles.Accent
	case m.last.Kind == chatstream.OutcomeCompleted:
		status, style = "Done. Enter to send, Ctrl+C to quit", m.styles.Success
	}
	if w := m.Viewport.Width; w > 0 {
		status = runewidth.Truncate(status, w, "…")
	}
	return style.Render(status)
}

func remove(blocks []MessageBlock, targets ...MessageBlock) []MessageBlock {
	out := make([]MessageBlock, 0, len(blocks))
	for _, b := range blocks {
		drop := false
		for _, t := range targets {
			if t != nil && b == t {
				drop = true
			}
		}
		if !drop {
			out = append(out, b)
		}
	}
	return out
}

func dropNotices(blocks []MessageBlock) []MessageBlock {
	out := make([]MessageBlock, 0, len(blocks))
	for _, b := range blocks {
		if _, ok := b.(*NoticeBlock); !ok {
			out = append(out, b)
		}
	}
	return out
}

// startTurn runs the turn in a goroutine and signals completion.
func startTurn(ctx context.Context, run TurnFunc, req chatstream.Request, updateCh chan<- chatstream.Update, doneCh chan<- chatstream.Result) tea.Cmd {
	return func() tea.Msg {
		res := run(ctx, req, func(u chatstream.Update) {
			select {
			case updateCh <- u:
			case <-ctx.Done():
			}
		})
		close(updateCh)
		doneCh <- res
		return nil
	}
}

// listenForUpdate waits for the next update. When the channel closes it
// reads the result from doneCh and returns TurnDoneMsg.
func listenForUpdate(ch <-chan chatstream.Update, doneCh <-chan chatstream.Result) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return TurnDoneMsg{Result: <-doneCh}
		}
		return UpdateMsg{Update: u}
	}
}
