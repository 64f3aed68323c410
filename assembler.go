package chatstream

import (
	"slices"
	"strings"
)

// Update is delivered to observers after every accepted fragment.
type Update struct {
	SessionID string
	Fragment  string // the fragment just accepted
	Text      string // concatenation of all accepted fragments
}

// Assembler folds payload fragments into one growing assistant message.
// Fragments are never rewritten or removed once accepted.
//
// Assembler is owned by a single session and is not safe for concurrent use.
type Assembler struct {
	sessionID string
	fragments []string
	text      strings.Builder
	frozen    bool
	observers []func(Update)
}

// NewAssembler creates an empty Assembler tagged with sessionID.
func NewAssembler(sessionID string) *Assembler {
	return &Assembler{sessionID: sessionID}
}

// Observe registers fn to be called synchronously after every accepted
// fragment.
func (a *Assembler) Observe(fn func(Update)) {
	if fn != nil {
		a.observers = append(a.observers, fn)
	}
}

// Accept appends fragment and returns the full text so far.
func (a *Assembler) Accept(fragment string) (string, error) {
	if a.frozen {
		return a.text.String(), ErrMessageFrozen
	}
	a.fragments = append(a.fragments, fragment)
	a.text.WriteString(fragment)
	snapshot := a.text.String()
	for _, fn := range a.observers {
		fn(Update{SessionID: a.sessionID, Fragment: fragment, Text: snapshot})
	}
	return snapshot, nil
}

// Text returns the concatenation of accepted fragments.
func (a *Assembler) Text() string {
	return a.text.String()
}

// Fragments returns a copy of the accepted fragments in order.
func (a *Assembler) Fragments() []string {
	return slices.Clone(a.fragments)
}

// Len returns the number of accepted fragments.
func (a *Assembler) Len() int {
	return len(a.fragments)
}

// Freeze finalizes the message. Subsequent Accept calls fail with
// ErrMessageFrozen and observers are released.
func (a *Assembler) Freeze() {
	a.frozen = true
	a.observers = nil
}

// Frozen reports whether Freeze has been called.
func (a *Assembler) Frozen() bool {
	return a.frozen
}

// Message returns an immutable copy of the assembled message.
func (a *Assembler) Message() Message {
	return Message{Fragments: a.Fragments(), Text: a.Text()}
}
