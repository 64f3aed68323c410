package chatstream

import "time"

// Turn is one entry of a chat transcript.
type Turn struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// UserTurn returns a Turn authored by the user.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// AssistantTurn returns a Turn authored by the assistant.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

// Message is the assembled assistant reply of one session. A Message handed
// to the caller is never mutated afterwards.
type Message struct {
	Fragments []string
	Text      string
}

// Turn converts the message into an assistant Turn for a transcript.
func (m Message) Turn() Turn {
	return AssistantTurn(m.Text)
}
