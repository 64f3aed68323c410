package chatstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	defaultMaxPending = 1 << 20
	defaultChunkSize  = 4096
)

// Controller drives chat turns against a Transport, one session at a time.
// A chat widget owns one Controller; starting a new turn cancels the
// previous one.
type Controller struct {
	transport  Transport
	decoder    *Decoder
	logger     *slog.Logger
	maxPending int
	chunkSize  int

	mu     sync.Mutex
	active *Session
}

// Option configures a [Controller].
type Option func(*Controller)

// WithFragmentParser sets how payload data is turned into text.
// Defaults to [DeltaParser].
func WithFragmentParser(p FragmentParser) Option {
	return func(c *Controller) { c.decoder = NewDecoder(p) }
}

// WithLogger sets the logger. Defaults to discarding all output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMaxPending bounds the bytes held in the frame buffer without forming
// a decodable event. Exceeding it fails the session as a transport failure.
func WithMaxPending(n int) Option {
	return func(c *Controller) { c.maxPending = n }
}

// WithChunkSize sets the maximum number of bytes read per chunk.
func WithChunkSize(n int) Option {
	return func(c *Controller) { c.chunkSize = n }
}

// NewController creates a Controller for transport.
func NewController(transport Transport, opts ...Option) *Controller {
	c := &Controller{
		transport:  transport,
		decoder:    NewDecoder(nil),
		logger:     slog.New(slog.DiscardHandler),
		maxPending: defaultMaxPending,
		chunkSize:  defaultChunkSize,
	}
	for _, o := range opts {
		o(c)
	}
	if c.maxPending <= 0 {
		c.maxPending = defaultMaxPending
	}
	if c.chunkSize <= 0 {
		c.chunkSize = defaultChunkSize
	}
	return c
}

// RunOption configures a single RunTurn invocation.
type RunOption func(*runConfig)

type runConfig struct {
	onUpdate    func(Update)
	sessionID   string
	keepPartial bool
}

// WithUpdateHandler sets a callback that receives the growing message after
// every accepted fragment. It runs on the streaming goroutine and must not
// block for long.
func WithUpdateHandler(h func(Update)) RunOption {
	return func(c *runConfig) { c.onUpdate = h }
}

// WithSessionID sets the session correlation token. A random UUID is used
// when empty or not set.
func WithSessionID(id string) RunOption {
	return func(c *runConfig) { c.sessionID = id }
}

// WithKeepPartialOnCancel returns the text assembled so far when the turn
// is cancelled. By default cancelled turns return an empty message.
func WithKeepPartialOnCancel() RunOption {
	return func(c *runConfig) { c.keepPartial = true }
}

// Result is the terminal resolution of a turn.
type Result struct {
	SessionID string
	Outcome   Outcome
	Message   Message
}

// RunTurn sends req and streams the reply until the backend finishes, the
// turn fails, or ctx is cancelled. Any turn still running on this Controller
// is cancelled, and has resolved, before req is sent. RunTurn resolves
// exactly once.
func (c *Controller) RunTurn(ctx context.Context, req Request, opts ...RunOption) Result {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	id := cfg.sessionID
	if id == "" {
		id = uuid.NewString()
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s := newSession(id, cancel)
	if prev := c.swap(s); prev != nil {
		prev.supersede()
		<-prev.Done()
	}
	defer c.release(s)

	logger := c.logger.With("session_id", id)
	outcome := c.run(ctx, s, req, cfg, logger)

	var msg Message
	if outcome.Kind == OutcomeCompleted || (outcome.Kind == OutcomeCancelled && cfg.keepPartial) {
		msg = s.message.Message()
	}
	s.finish(outcome)
	logOutcome(logger.With("elapsed", time.Since(s.CreatedAt)), outcome, s.message.Len())
	return Result{SessionID: id, Outcome: outcome, Message: msg}
}

// Cancel aborts the active turn, if any.
func (c *Controller) Cancel() {
	if s := c.Active(); s != nil {
		s.Cancel()
	}
}

// Active returns the session currently owned by the Controller, or nil.
func (c *Controller) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) swap(s *Session) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.active
	c.active = s
	return prev
}

func (c *Controller) release(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == s {
		c.active = nil
	}
}

func (c *Controller) run(ctx context.Context, s *Session, req Request, cfg runConfig, logger *slog.Logger) Outcome {
	if err := ctx.Err(); err != nil {
		return Classify(ctx, err)
	}
	if err := req.Validate(); err != nil {
		return Outcome{Kind: OutcomeTransportFailure, Err: fmt.Errorf("chatstream: %w", err)}
	}

	s.setState(StateSending)
	logger.Debug("opening stream", "turns", len(req.Turns))
	body, err := c.transport.Open(ctx, req)
	if err != nil {
		return Classify(ctx, err)
	}

	closeBody := sync.OnceValue(body.Close)
	stop := context.AfterFunc(ctx, func() { _ = closeBody() })
	defer func() {
		stop()
		if err := closeBody(); err != nil {
			logger.Debug("closing stream", "error", err)
		}
	}()

	s.setState(StateStreaming)
	s.message.Observe(cfg.onUpdate)
	return Classify(ctx, c.stream(ctx, s, body, logger))
}

// stream reads chunks until a terminator, end of stream or error.
func (c *Controller) stream(ctx context.Context, s *Session, body io.Reader, logger *slog.Logger) error {
	r := transform.NewReader(body, unicode.UTF8.NewDecoder())
	chunk := make([]byte, c.chunkSize)
	var carry string
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			done, cerr := c.consume(ctx, s, string(chunk[:n]), &carry, logger)
			if cerr != nil || done {
				return cerr
			}
		}
		if errors.Is(err, io.EOF) {
			return c.flush(s, &carry, logger)
		}
		if err != nil {
			return fmt.Errorf("chatstream: read stream: %w", err)
		}
	}
}

// consume pushes one chunk and handles every complete line it yields.
// It reports true once a terminator has been decoded.
func (c *Controller) consume(ctx context.Context, s *Session, text string, carry *string, logger *slog.Logger) (bool, error) {
	for line := range s.buffer.Push(text) {
		if ctx.Err() != nil {
			return false, context.Cause(ctx)
		}
		done, err := c.handleLine(s, line, carry, logger)
		if err != nil || done {
			return done, err
		}
	}
	if s.buffer.Len() > c.maxPending {
		return false, fmt.Errorf("chatstream: %d bytes pending: %w", s.buffer.Len(), ErrBufferOverflow)
	}
	return false, nil
}

// handleLine decodes one line. carry holds a previously re-queued malformed
// line, which is always the prefix of line.
func (c *Controller) handleLine(s *Session, line string, carry *string, logger *slog.Logger) (bool, error) {
	if *carry != "" && strings.HasPrefix(strings.TrimPrefix(line, *carry), commentPrefix) {
		// A keep-alive between the halves of a payload is skipped.
		s.buffer.Requeue(*carry)
		return false, nil
	}
	ev := c.decoder.Decode(line)
	if _, ok := ev.(EventMalformed); ok && *carry != "" {
		// A new data line after an unfinished one means the earlier data
		// will never complete.
		if continuation := strings.TrimPrefix(line, *carry); IsPayloadLine(continuation) {
			logger.Warn("dropping undecodable payload", "bytes", len(*carry))
			ev = c.decoder.Decode(continuation)
		}
	}
	*carry = ""

	switch e := ev.(type) {
	case EventPayload:
		if _, err := s.message.Accept(e.Fragment); err != nil {
			return false, err
		}
	case EventTerminator:
		return true, nil
	case EventMalformed:
		s.buffer.Requeue(e.RawLine)
		*carry = e.RawLine
	}
	return false, nil
}

// flush decodes the unterminated remainder at end of stream.
func (c *Controller) flush(s *Session, carry *string, logger *slog.Logger) error {
	rest, ok := s.buffer.Flush()
	if !ok {
		return nil
	}
	if _, err := c.handleLine(s, rest, carry, logger); err != nil {
		return err
	}
	if dropped, ok := s.buffer.Flush(); ok {
		logger.Warn("discarding undecodable tail", "bytes", len(dropped))
	}
	return nil
}

func logOutcome(logger *slog.Logger, o Outcome, fragments int) {
	switch o.Kind {
	case OutcomeCompleted:
		logger.Debug("turn completed", "fragments", fragments)
	case OutcomeCancelled:
		logger.Debug("turn cancelled", "cause", o.Err, "fragments", fragments)
	case OutcomeThrottled, OutcomeQuotaExceeded:
		logger.Warn("turn rejected", "outcome", string(o.Kind), "status", o.StatusCode, "error", o.Err)
	default:
		logger.Error("turn failed", "outcome", string(o.Kind), "error", o.Err, "discarded_fragments", fragments)
	}
}
