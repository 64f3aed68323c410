package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fwojciec/chatstream"
	cshttp "github.com/fwojciec/chatstream/http"
)

// Interface compliance check.
var _ chatstream.Transport = (*Client)(nil)

// Client implements [chatstream.Transport] for the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithModel sets the model name.
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

// New creates a new Anthropic [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		maxTokens:  defaultMaxTokens,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open sends a streaming request to the Messages API and returns a body of
// generic data: frames.
func (c *Client) Open(ctx context.Context, req chatstream.Request) (io.ReadCloser, error) {
	body, err := c.buildRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("anthropic: %w", cshttp.ParseStatusError(resp))
	}
	return newStream(resp.Body), nil
}

func (c *Client) buildRequestBody(req chatstream.Request) ([]byte, error) {
	apiReq := apiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Stream:    true,
		System:    convertSystem(req.Context),
		Messages:  convertMessages(req.Messages()),
	}
	if req.UserID != "" {
		apiReq.Metadata = &apiMetadata{UserID: req.UserID}
	}
	return json.Marshal(apiReq)
}

// convertSystem turns the request context into system content blocks with a
// cache breakpoint, since the context is stable across a conversation.
// Returns nil when the context is empty.
func convertSystem(text string) []apiContentBlock {
	if text == "" {
		return nil
	}
	return []apiContentBlock{{Type: "text", Text: text, CacheControl: &apiCacheControl{Type: "ephemeral"}}}
}

// convertMessages maps turns to API messages, merging consecutive turns of
// the same role since the API requires alternation.
func convertMessages(turns []chatstream.Turn) []apiMessage {
	var result []apiMessage
	for _, t := range turns {
		block := apiContentBlock{Type: "text", Text: t.Content}
		if n := len(result); n > 0 && result[n-1].Role == string(t.Role) {
			result[n-1].Content = append(result[n-1].Content, block)
			continue
		}
		result = append(result, apiMessage{Role: string(t.Role), Content: []apiContentBlock{block}})
	}
	return result
}
