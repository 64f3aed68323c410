package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/fwojciec/chatstream"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ chatstream.Transport = (*Client)(nil)

// streamFunc starts a streaming generation. It matches
// genai.Models.GenerateContentStream.
type streamFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

// Client implements [chatstream.Transport] for the Google Gemini API.
type Client struct {
	stream    streamFunc
	model     string
	maxTokens int
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the model ID.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens sets the maximum reply length.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return newClient(gc.Models.GenerateContentStream, opts...), nil
}

func newClient(fn streamFunc, opts ...Option) *Client {
	c := &Client{
		stream:    fn,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open starts generation and waits for the first response so request
// errors such as rate limits surface from Open rather than mid-stream.
func (c *Client) Open(ctx context.Context, req chatstream.Request) (io.ReadCloser, error) {
	seq := c.stream(ctx, c.model, ConvertTurns(req.Messages()), buildConfig(req, c.maxTokens))
	next, stop := iter.Pull2(seq)

	resp, err, ok := next()
	if ok && err != nil {
		stop()
		return nil, fmt.Errorf("gemini: %w", ConvertError(err))
	}

	pr, pw := io.Pipe()
	go pump(pw, resp, ok, next, stop)
	return pr, nil
}

func buildConfig(req chatstream.Request, maxTokens int) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.Context != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.Context}},
		}
	}
	return config
}

// ConvertTurns converts chatstream turns to genai Contents.
// Exported for testing.
func ConvertTurns(turns []chatstream.Turn) []*genai.Content {
	result := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == chatstream.RoleAssistant {
			role = "model"
		}
		result = append(result, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: t.Content}},
		})
	}
	return result
}

// ConvertError maps genai API errors to [*chatstream.StatusError] so they
// classify by HTTP status. Other errors are returned unchanged.
// Exported for testing.
func ConvertError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &chatstream.StatusError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &chatstream.StatusError{StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return err
}
