package anthropic

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fwojciec/chatstream"
)

const doneFrame = "data: " + chatstream.DoneToken + "\n\n"

// stream re-frames Messages API events as generic data: frames. It reads
// exactly one API event per refill so back-pressure follows the caller.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	pending []byte
	err     error // returned once pending is drained
}

var _ io.ReadCloser = (*stream)(nil)

func newStream(body io.ReadCloser) *stream {
	return &stream{body: body, scanner: bufio.NewScanner(body)}
}

// Read returns re-framed bytes. A stream error event surfaces as a wrapped
// [*chatstream.StatusError].
func (s *stream) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.advance()
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Close closes the underlying HTTP response body.
func (s *stream) Close() error {
	return s.body.Close()
}

// advance consumes one API event.
func (s *stream) advance() {
	eventType, data, err := s.readSSEEvent()
	if err == io.EOF {
		// message_stop ends a complete reply; plain EOF means the
		// connection dropped mid-answer.
		s.err = fmt.Errorf("anthropic: %w", io.ErrUnexpectedEOF)
		return
	}
	if err != nil {
		s.err = err
		return
	}

	switch eventType {
	case "content_block_delta":
		s.pending, s.err = handleContentBlockDelta(data)
	case "message_stop":
		s.pending = []byte(doneFrame)
		s.err = io.EOF
	case "error":
		s.err = handleError(data)
	default:
		// message_start, content_block_start, ping, message_delta and
		// unknown events carry no text.
	}
}

// readSSEEvent reads lines until a complete SSE event is assembled.
// Returns the event type and the data payload.
func (s *stream) readSSEEvent() (string, string, error) {
	var eventType string
	var dataBuf strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			// Empty line signals end of event.
			if dataBuf.Len() > 0 {
				return eventType, dataBuf.String(), nil
			}
			continue
		}

		if v, ok := strings.CutPrefix(line, "event:"); ok {
			eventType = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(line, "data:"); ok {
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimPrefix(v, " "))
		}
		// Ignore comments (lines starting with ':') and unknown fields.
	}

	if err := s.scanner.Err(); err != nil {
		return "", "", fmt.Errorf("anthropic: %w", err)
	}
	if dataBuf.Len() > 0 {
		return eventType, dataBuf.String(), nil
	}
	return "", "", io.EOF
}

type deltaFrame struct {
	Delta string `json:"delta"`
}

func handleContentBlockDelta(data string) ([]byte, error) {
	var evt sseContentBlockDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, fmt.Errorf("anthropic: failed to parse content_block_delta: %w", err)
	}
	if evt.Delta.Type != "text_delta" || evt.Delta.Text == "" {
		return nil, nil
	}
	payload, err := json.Marshal(deltaFrame{Delta: evt.Delta.Text})
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	return append(frame, "\n\n"...), nil
}

func handleError(data string) error {
	var evt sseError
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("anthropic: failed to parse error event: %w", err)
	}
	code, ok := errorStatus[evt.Error.Type]
	if !ok {
		code = http.StatusInternalServerError
	}
	return fmt.Errorf("anthropic: %s: %w", evt.Error.Type, &chatstream.StatusError{StatusCode: code, Message: evt.Error.Message})
}
