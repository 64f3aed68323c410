package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/chatstream"
	cshttp "github.com/fwojciec/chatstream/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseHandler writes each frame and flushes, so the client sees separate chunks.
func sseHandler(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, f := range frames {
			_, _ = io.WriteString(w, f)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func TestClient_RequestFormat(t *testing.T) {
	t.Parallel()

	var captured []byte
	var header http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = io.ReadAll(r.Body)
		header = r.Header.Clone()
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		sseHandler("data: [DONE]\n\n")(w, r)
	}))
	defer srv.Close()

	client := cshttp.New(srv.URL+"/chat", cshttp.WithAPIKey("secret"), cshttp.WithHeader("X-Feature", "summarize"))
	body, err := client.Open(context.Background(), chatstream.Request{
		Turns:       []chatstream.Turn{{Role: chatstream.RoleUser, Content: "hi"}, {Role: chatstream.RoleAssistant, Content: "hello"}},
		UserMessage: "summarize this",
		Context:     "You summarize text.",
		UserID:      "u-1",
	})
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, "text/event-stream", header.Get("Accept"))
	assert.Equal(t, "Bearer secret", header.Get("Authorization"))
	assert.Equal(t, "summarize", header.Get("X-Feature"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(captured, &got))
	assert.Equal(t, "summarize this", got["userMessage"])
	assert.Equal(t, "You summarize text.", got["context"])
	assert.Equal(t, "u-1", got["userId"])
	assert.NotContains(t, got, "clientId")
	assert.Len(t, got["messages"], 3)
}

func TestClient_NoAPIKey(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	body, err := cshttp.New(srv.URL).Open(context.Background(), chatstream.Request{UserMessage: "hi"})
	require.NoError(t, err)
	require.NoError(t, body.Close())
}

func TestClient_StatusErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		kind    chatstream.OutcomeKind
	}{
		{name: "rate limit", status: 429, body: `{"error":{"message":"slow down"}}`, message: "slow down", kind: chatstream.OutcomeThrottled},
		{name: "quota", status: 402, body: `{"error":"no credits left"}`, message: "no credits left", kind: chatstream.OutcomeQuotaExceeded},
		{name: "server error", status: 500, body: "upstream exploded\n", message: "upstream exploded", kind: chatstream.OutcomeTransportFailure},
		{name: "message field", status: 401, body: `{"message":"bad key"}`, message: "bad key", kind: chatstream.OutcomeTransportFailure},
		{name: "empty body", status: 503, kind: chatstream.OutcomeTransportFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := cshttp.New(srv.URL).Open(context.Background(), chatstream.Request{UserMessage: "hi"})
			require.Error(t, err)

			var se *chatstream.StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.message, se.Message)
			assert.Equal(t, tt.kind, chatstream.Classify(context.Background(), err).Kind)
		})
	}
}

func TestClient_ConnectionError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := cshttp.New(url).Open(context.Background(), chatstream.Request{UserMessage: "hi"})
	require.Error(t, err)
	assert.Equal(t, chatstream.OutcomeTransportFailure, chatstream.Classify(context.Background(), err).Kind)
}

func TestClient_WithController(t *testing.T) {
	t.Parallel()
	t.Run("streams a reply", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(sseHandler(
			": connected\n\n",
			"data: {\"delta\":\"Hel\"}\n\n",
			"data: {\"delta\":\"lo",
			"\"}\n\ndata: [DONE]\n\n",
		))
		defer srv.Close()

		c := chatstream.NewController(cshttp.New(srv.URL))
		var updates []string
		res := c.RunTurn(context.Background(), chatstream.Request{UserMessage: "hi"},
			chatstream.WithUpdateHandler(func(u chatstream.Update) { updates = append(updates, u.Text) }))

		require.Equal(t, chatstream.OutcomeCompleted, res.Outcome.Kind, "%v", res.Outcome.Err)
		assert.Equal(t, "Hello", res.Message.Text)
		assert.Equal(t, []string{"Hel", "Hello"}, updates)
	})

	t.Run("completes on terminator while the server keeps the connection open", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sseHandler("data: {\"delta\":\"a\"}\n\ndata: [DONE]\n\n")(w, r)
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}))
		defer srv.Close()
		defer close(release)

		c := chatstream.NewController(cshttp.New(srv.URL))
		res := c.RunTurn(context.Background(), chatstream.Request{UserMessage: "hi"})
		assert.Equal(t, chatstream.OutcomeCompleted, res.Outcome.Kind)
		assert.Equal(t, "a", res.Message.Text)
	})

	t.Run("cancellation aborts a stalled stream", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sseHandler("data: {\"delta\":\"a\"}\n\n")(w, r)
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		c := chatstream.NewController(cshttp.New(srv.URL))
		time.AfterFunc(50*time.Millisecond, cancel)

		res := c.RunTurn(ctx, chatstream.Request{UserMessage: "hi"})
		assert.Equal(t, chatstream.OutcomeCancelled, res.Outcome.Kind)
		assert.Empty(t, res.Message.Text)
	})

	t.Run("rate limit retracts the turn", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		res := chatstream.NewController(cshttp.New(srv.URL)).RunTurn(context.Background(), chatstream.Request{UserMessage: "hi"})
		assert.Equal(t, chatstream.OutcomeThrottled, res.Outcome.Kind)
		assert.True(t, res.Outcome.RetractsUserTurn())
		assert.NotEmpty(t, res.Outcome.Notice())
	})

	t.Run("long reply", func(t *testing.T) {
		t.Parallel()
		var frames []string
		var want strings.Builder
		for i := range 200 {
			frag := fmt.Sprintf("word%d ", i)
			want.WriteString(frag)
			frames = append(frames, fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\r\n\r\n", frag))
		}
		frames = append(frames, "data: [DONE]\r\n\r\n")
		srv := httptest.NewServer(sseHandler(frames...))
		defer srv.Close()

		res := chatstream.NewController(cshttp.New(srv.URL)).RunTurn(context.Background(), chatstream.Request{UserMessage: "hi"})
		assert.Equal(t, want.String(), res.Message.Text)
	})
}
