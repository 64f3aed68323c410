package chatstream

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	payloadPrefix = "data:"
	commentPrefix = ":"

	// DoneToken is the payload value that signals normal termination.
	DoneToken = "[DONE]"
)

// ErrNoFragment is returned by a FragmentParser when a structurally valid
// payload carries no text.
var ErrNoFragment = errors.New("payload has no fragment")

// FragmentParser extracts the incremental text from a payload. It returns
// ErrNoFragment for valid payloads without text and any other error when
// the payload is not valid structured data.
type FragmentParser interface {
	ParseFragment(data string) (string, error)
}

// FragmentParserFunc adapts a function to FragmentParser.
type FragmentParserFunc func(data string) (string, error)

// ParseFragment calls f.
func (f FragmentParserFunc) ParseFragment(data string) (string, error) {
	return f(data)
}

// Decoder interprets complete lines as stream events.
type Decoder struct {
	parser FragmentParser
}

// NewDecoder returns a Decoder using parser, or DeltaParser when nil.
func NewDecoder(parser FragmentParser) *Decoder {
	if parser == nil {
		parser = DeltaParser
	}
	return &Decoder{parser: parser}
}

// Decode classifies one line.
func (d *Decoder) Decode(line string) Event {
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, commentPrefix) {
		return EventIgnorable{}
	}
	data, ok := payloadData(line)
	if !ok {
		// event:, id:, retry: and unknown fields carry no text.
		return EventIgnorable{}
	}
	if data == DoneToken {
		return EventTerminator{}
	}
	fragment, err := d.parser.ParseFragment(data)
	switch {
	case errors.Is(err, ErrNoFragment):
		return EventIgnorable{}
	case err != nil:
		return EventMalformed{RawLine: line}
	case fragment == "":
		return EventIgnorable{}
	}
	return EventPayload{Fragment: fragment}
}

// IsPayloadLine reports whether line carries the payload marker.
func IsPayloadLine(line string) bool {
	return strings.HasPrefix(line, payloadPrefix)
}

func payloadData(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, payloadPrefix)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// deltaPayload covers the two common delta shapes: a bare {"delta": "..."}
// and the chat-completions {"choices":[{"delta":{"content":"..."}}]}.
type deltaPayload struct {
	Delta   json.RawMessage `json:"delta"`
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// DeltaParser is the default FragmentParser.
var DeltaParser FragmentParser = FragmentParserFunc(parseDelta)

// ErrInvalidPayload is returned by DeltaParser for payloads that are not
// valid JSON.
var ErrInvalidPayload = errors.New("payload is not valid JSON")

func parseDelta(data string) (string, error) {
	raw := []byte(data)
	if !json.Valid(raw) {
		return "", ErrInvalidPayload
	}
	var p deltaPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		// Valid JSON of an unexpected shape carries no text for us.
		return "", ErrNoFragment
	}
	if len(p.Delta) > 0 {
		var s string
		if json.Unmarshal(p.Delta, &s) == nil {
			return s, nil
		}
	}
	if len(p.Choices) > 0 && p.Choices[0].Delta.Content != nil {
		return *p.Choices[0].Delta.Content, nil
	}
	return "", ErrNoFragment
}
