package chatstream

// Transcript is the in-memory conversation of a chat widget. Only completed
// exchanges are recorded, so a transcript never holds a user turn without
// its answer.
type Transcript struct {
	Context string
	Turns   []Turn
}

// Request builds the Request for the next user message.
func (t Transcript) Request(userMessage string) Request {
	return Request{Turns: t.Turns, UserMessage: userMessage, Context: t.Context}
}

// Record appends a completed exchange.
func (t *Transcript) Record(user string, reply Message) {
	t.Turns = append(t.Turns, UserTurn(user), reply.Turn())
}
