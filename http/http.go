// Package http implements [chatstream.Transport] for chat backends that
// accept the chatstream request body over HTTP POST and answer with a
// data:-framed event stream.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fwojciec/chatstream"
	csjson "github.com/fwojciec/chatstream/json"
	"github.com/tidwall/gjson"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 4096

// Interface compliance check.
var _ chatstream.Transport = (*Client)(nil)

// Client POSTs chat requests to a single endpoint.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	header     http.Header
}

// Option configures a [Client].
type Option func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Add(key, value) }
}

// New creates a [Client] for the endpoint at url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: http.DefaultClient,
		header:     make(http.Header),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open sends req and returns the event stream body. Non-success statuses
// are returned as a wrapped [*chatstream.StatusError].
func (c *Client) Open(ctx context.Context, req chatstream.Request) (io.ReadCloser, error) {
	body, err := csjson.MarshalRequest(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("http: %w", ParseStatusError(resp))
	}
	return resp.Body, nil
}

// ParseStatusError reads the error description of a failed response.
// It understands {"error":{"message":...}}, {"error":...} and {"message":...}
// bodies and falls back to the raw text.
func ParseStatusError(resp *http.Response) *chatstream.StatusError {
	se := &chatstream.StatusError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return se
	}
	if gjson.ValidBytes(body) {
		for _, r := range gjson.GetManyBytes(body, "error.message", "error", "message") {
			if r.Type == gjson.String {
				se.Message = r.Str
				return se
			}
		}
	}
	se.Message = strings.TrimSpace(string(body))
	return se
}
