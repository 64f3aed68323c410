package chatstream

import (
	"context"
	"sync"
	"time"
)

// Session is one request/response exchange. It owns the pending frame
// buffer and the assembled message for its lifetime; both are released when
// the session reaches a terminal state.
type Session struct {
	ID        string
	CreatedAt time.Time

	buffer  FrameBuffer
	message *Assembler
	cancel  context.CancelCauseFunc
	done    chan struct{}

	mu      sync.Mutex
	state   SessionState
	outcome Outcome
}

func newSession(id string, cancel context.CancelCauseFunc) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		message:   NewAssembler(id),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// State returns the current state. Safe for concurrent use.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outcome returns the terminal outcome once the session has finished.
func (s *Session) Outcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.state.Terminal()
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Cancel aborts the session. It is a no-op once the session has finished.
func (s *Session) Cancel() {
	s.cancel(context.Canceled)
}

func (s *Session) supersede() {
	s.cancel(ErrSuperseded)
}

// setState moves the session forward. Terminal states are final.
func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = state
}

// finish records the outcome, releases per-session buffers and closes Done.
func (s *Session) finish(o Outcome) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.outcome = o
	switch o.Kind {
	case OutcomeCompleted:
		s.state = StateCompleted
	case OutcomeCancelled:
		s.state = StateCancelled
	default:
		s.state = StateFailed
	}
	s.mu.Unlock()

	s.message.Freeze()
	s.buffer = FrameBuffer{}
	close(s.done)
}
