package gemini_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"testing"
	"time"

	"github.com/fwojciec/chatstream"
	"github.com/fwojciec/chatstream/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

type step struct {
	resp *genai.GenerateContentResponse
	err  error
}

// scripted returns a stream function yielding steps in order and records
// the arguments it was called with.
func scripted(calls *[]*genai.GenerateContentConfig, steps ...step) func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
		if calls != nil {
			*calls = append(*calls, config)
		}
		return func(yield func(*genai.GenerateContentResponse, error) bool) {
			for _, s := range steps {
				if !yield(s.resp, s.err) {
					return
				}
			}
		}
	}
}

func TestConvertTurns(t *testing.T) {
	t.Parallel()
	got := gemini.ConvertTurns([]chatstream.Turn{
		{Role: chatstream.RoleUser, Content: "Hello"},
		{Role: chatstream.RoleAssistant, Content: "Let me help."},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "user", got[0].Role)
	require.Len(t, got[0].Parts, 1)
	assert.Equal(t, "Hello", got[0].Parts[0].Text)
	assert.Equal(t, "model", got[1].Role)
	assert.Equal(t, "Let me help.", got[1].Parts[0].Text)
}

func TestResponseText(t *testing.T) {
	t.Parallel()
	assert.Empty(t, gemini.ResponseText(nil))
	assert.Empty(t, gemini.ResponseText(&genai.GenerateContentResponse{}))
	assert.Equal(t, "ab", gemini.ResponseText(textResponse(
		&genai.Part{Text: "thinking", Thought: true},
		&genai.Part{Text: "a"},
		&genai.Part{Text: "b"},
	)))
}

func TestConvertError(t *testing.T) {
	t.Parallel()
	t.Run("api error", func(t *testing.T) {
		t.Parallel()
		err := gemini.ConvertError(genai.APIError{Code: http.StatusTooManyRequests, Message: "quota", Status: "RESOURCE_EXHAUSTED"})
		var se *chatstream.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 429, se.StatusCode)
		assert.Equal(t, "quota", se.Message)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		t.Parallel()
		want := errors.New("dial tcp: refused")
		assert.Equal(t, want, gemini.ConvertError(want))
	})
}

func TestClient_Open(t *testing.T) {
	t.Parallel()
	t.Run("re-frames responses", func(t *testing.T) {
		t.Parallel()
		var configs []*genai.GenerateContentConfig
		client := gemini.NewWithStream(scripted(&configs,
			step{resp: textResponse(&genai.Part{Text: "Hel"})},
			step{resp: textResponse()},
			step{resp: textResponse(&genai.Part{Text: "lo"})},
		), gemini.WithMaxTokens(100))

		body, err := client.Open(context.Background(), chatstream.Request{UserMessage: "hi", Context: "Be terse."})
		require.NoError(t, err)
		defer body.Close()

		raw, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "data: {\"delta\":\"Hel\"}\n\ndata: {\"delta\":\"lo\"}\n\ndata: [DONE]\n\n", string(raw))

		require.Len(t, configs, 1)
		assert.Equal(t, int32(100), configs[0].MaxOutputTokens)
		require.NotNil(t, configs[0].SystemInstruction)
		assert.Equal(t, "Be terse.", configs[0].SystemInstruction.Parts[0].Text)
	})

	t.Run("first error fails open", func(t *testing.T) {
		t.Parallel()
		client := gemini.NewWithStream(scripted(nil,
			step{err: genai.APIError{Code: http.StatusPaymentRequired, Message: "billing"}},
		))
		_, err := client.Open(context.Background(), chatstream.Request{UserMessage: "hi"})
		require.Error(t, err)
		assert.Equal(t, chatstream.OutcomeQuotaExceeded, chatstream.Classify(context.Background(), err).Kind)
	})

	t.Run("empty iterator completes", func(t *testing.T) {
		t.Parallel()
		client := gemini.NewWithStream(scripted(nil))
		body, err := client.Open(context.Background(), chatstream.Request{UserMessage: "hi"})
		require.NoError(t, err)
		raw, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "data: [DONE]\n\n", string(raw))
	})
}

func TestClient_WithController(t *testing.T) {
	t.Parallel()
	t.Run("streams a reply", func(t *testing.T) {
		t.Parallel()
		client := gemini.NewWithStream(scripted(nil,
			step{resp: textResponse(&genai.Part{Text: "Hello, "})},
			step{resp: textResponse(&genai.Part{Text: "wörld"})},
		))
		res := chatstream.NewController(client).RunTurn(context.Background(), chatstream.Request{UserMessage: "hi"})
		require.Equal(t, chatstream.OutcomeCompleted, res.Outcome.Kind, "%v", res.Outcome.Err)
		assert.Equal(t, "Hello, wörld", res.Message.Text)
	})

	t.Run("mid-stream error fails the turn", func(t *testing.T) {
		t.Parallel()
		client := gemini.NewWithStream(scripted(nil,
			step{resp: textResponse(&genai.Part{Text: "partial"})},
			step{err: genai.APIError{Code: http.StatusTooManyRequests}},
		))
		res := chatstream.NewController(client).RunTurn(context.Background(), chatstream.Request{UserMessage: "hi"})
		assert.Equal(t, chatstream.OutcomeThrottled, res.Outcome.Kind)
		assert.Empty(t, res.Message.Text)
	})

	t.Run("cancellation stops the generator", func(t *testing.T) {
		t.Parallel()
		stopped := make(chan struct{})
		fn := func(ctx context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
			return func(yield func(*genai.GenerateContentResponse, error) bool) {
				defer close(stopped)
				if !yield(textResponse(&genai.Part{Text: "a"}), nil) {
					return
				}
				<-ctx.Done()
				yield(nil, ctx.Err())
			}
		}
		ctx, cancel := context.WithCancel(context.Background())
		res := chatstream.NewController(gemini.NewWithStream(fn)).RunTurn(ctx, chatstream.Request{UserMessage: "hi"},
			chatstream.WithUpdateHandler(func(chatstream.Update) { cancel() }))

		assert.Equal(t, chatstream.OutcomeCancelled, res.Outcome.Kind)
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("generator still running after cancellation")
		}
	})
}
