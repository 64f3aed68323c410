package mock

import (
	"io"
	"sync"
)

var _ io.ReadCloser = (*ChunkBody)(nil)

// ChunkBody is a response body that yields one scripted chunk per Read,
// mirroring how a network stream delivers bytes at arbitrary boundaries.
// After the last chunk it returns io.EOF, or blocks until Close when Hang
// was called. Reads after Close return io.ErrClosedPipe.
type ChunkBody struct {
	mu     sync.Mutex
	chunks [][]byte
	hang   bool
	closes int
	closed chan struct{}
}

// NewChunkBody returns a body that yields chunks in order.
func NewChunkBody(chunks ...string) *ChunkBody {
	b := &ChunkBody{closed: make(chan struct{})}
	for _, c := range chunks {
		b.chunks = append(b.chunks, []byte(c))
	}
	return b
}

// Hang makes the body block after its last chunk instead of signalling
// end of stream, as a connection the server keeps open does.
func (b *ChunkBody) Hang() *ChunkBody {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hang = true
	return b
}

// Read copies the next chunk into p. A chunk larger than p is split across
// reads.
func (b *ChunkBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	if b.closes > 0 {
		b.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	if len(b.chunks) > 0 {
		n := copy(p, b.chunks[0])
		if n == len(b.chunks[0]) {
			b.chunks = b.chunks[1:]
		} else {
			b.chunks[0] = b.chunks[0][n:]
		}
		b.mu.Unlock()
		return n, nil
	}
	hang := b.hang
	b.mu.Unlock()
	if !hang {
		return 0, io.EOF
	}
	<-b.closed
	return 0, io.ErrClosedPipe
}

// Close releases a blocked Read. Every call is counted.
func (b *ChunkBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	if b.closes == 1 {
		close(b.closed)
	}
	return nil
}

// Closes returns how many times Close was called.
func (b *ChunkBody) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

// Remaining returns the number of chunks not yet read.
func (b *ChunkBody) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}
