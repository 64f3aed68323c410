package chatstream

import (
	"fmt"
	"strings"
)

// Request carries one chat turn to a Transport: the prior transcript, the
// new user text and caller-supplied context. Transports decide how these
// map onto their wire format.
type Request struct {
	Turns       []Turn // prior turns, oldest first
	UserMessage string
	Context     string // system/persona instructions
	ClientID    string // optional
	UserID      string // optional
}

// Messages returns the prior turns followed by the new user turn.
// The returned slice never aliases r.Turns.
func (r Request) Messages() []Turn {
	msgs := make([]Turn, 0, len(r.Turns)+1)
	msgs = append(msgs, r.Turns...)
	return append(msgs, Turn{Role: RoleUser, Content: r.UserMessage})
}

// Validate checks universal constraints on Request.
// Transports may apply additional backend-specific validation.
func (r Request) Validate() error {
	if strings.TrimSpace(r.UserMessage) == "" {
		return fmt.Errorf("user message must not be empty: %w", ErrValidation)
	}
	for i, t := range r.Turns {
		if !t.Role.Valid() {
			return fmt.Errorf("turn %d: unknown role %q: %w", i, t.Role, ErrValidation)
		}
	}
	return nil
}
