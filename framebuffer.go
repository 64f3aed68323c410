package chatstream

import (
	"iter"
	"strings"
)

// FrameBuffer accumulates decoded text and splits it into complete lines.
// Its tail always holds exactly the text not yet resolved into a line.
//
// FrameBuffer is owned by a single session and is not safe for concurrent use.
type FrameBuffer struct {
	tail string
}

// Push appends text to the tail and returns an iterator over every complete
// line now available. Lines are extracted lazily as the iterator advances,
// so a Requeue issued by the consumer is joined with the next line. A
// trailing carriage return is stripped from each line.
//
// Consumers that stop early leave the remaining lines in the tail; they are
// returned by the next Push.
func (b *FrameBuffer) Push(text string) iter.Seq[string] {
	b.tail += text
	return func(yield func(string) bool) {
		for {
			line, ok := b.next()
			if !ok {
				return
			}
			if !yield(line) {
				return
			}
		}
	}
}

// next extracts the next complete line from the tail.
func (b *FrameBuffer) next() (string, bool) {
	idx := strings.IndexByte(b.tail, '\n')
	if idx < 0 {
		return "", false
	}
	line := b.tail[:idx]
	b.tail = b.tail[idx+1:]
	return strings.TrimSuffix(line, "\r"), true
}

// Requeue puts raw back at the front of the tail without a terminator, so it
// becomes the prefix of the next extracted line.
func (b *FrameBuffer) Requeue(raw string) {
	b.tail = raw + b.tail
}

// Flush returns the unterminated remainder and empties the buffer. It is
// called once the transport signals end of stream.
func (b *FrameBuffer) Flush() (string, bool) {
	rest := strings.TrimSuffix(b.tail, "\r")
	b.tail = ""
	return rest, rest != ""
}

// Len returns the number of pending bytes.
func (b *FrameBuffer) Len() int {
	return len(b.tail)
}

// Pending returns the pending tail.
func (b *FrameBuffer) Pending() string {
	return b.tail
}
