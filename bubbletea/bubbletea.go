// Package bubbletea provides a Bubble Tea chat widget driven by a
// chatstream Controller.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/chatstream"
)

// TurnFunc runs one chat turn. The onUpdate callback is called for each
// accepted fragment. The function blocks until the turn resolves.
type TurnFunc func(ctx context.Context, req chatstream.Request, onUpdate func(chatstream.Update)) chatstream.Result

// ControllerTurn adapts a Controller to a TurnFunc. opts are applied to
// every turn.
func ControllerTurn(c *chatstream.Controller, opts ...chatstream.RunOption) TurnFunc {
	return func(ctx context.Context, req chatstream.Request, onUpdate func(chatstream.Update)) chatstream.Result {
		runOpts := append([]chatstream.RunOption{chatstream.WithUpdateHandler(onUpdate)}, opts...)
		return c.RunTurn(ctx, req, runOpts...)
	}
}

// Run creates and runs the Bubble Tea program. It blocks until the program
// exits. The context is used for graceful shutdown: when cancelled, the
// program quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// UpdateMsg delivers a streamed update to the model.
type UpdateMsg struct {
	Update chatstream.Update
}

// TurnDoneMsg signals that a turn has resolved.
type TurnDoneMsg struct {
	Result chatstream.Result
}
