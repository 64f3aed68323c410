package chatstream

// Event is a sealed interface representing one decoded stream line.
// Events are consumed immediately by the Controller and never retained.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventPayload carries an incremental piece of assistant text.
type EventPayload struct {
	Fragment string
}

func (EventPayload) event() {}

// EventTerminator signals intentional end of stream.
type EventTerminator struct{}

func (EventTerminator) event() {}

// EventIgnorable is a keep-alive, comment, non-data field or a payload
// without text.
type EventIgnorable struct{}

func (EventIgnorable) event() {}

// EventMalformed is a data line whose payload failed structural decoding.
// RawLine is the complete line as received so it can be re-queued.
type EventMalformed struct {
	RawLine string
}

func (EventMalformed) event() {}

// Interface compliance checks.
var (
	_ Event = EventPayload{}
	_ Event = EventTerminator{}
	_ Event = EventIgnorable{}
	_ Event = EventMalformed{}
)
