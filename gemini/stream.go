package gemini

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/chatstream"
	"google.golang.org/genai"
)

type deltaFrame struct {
	Delta string `json:"delta"`
}

// pump writes one frame per response until the iterator ends, the reader
// goes away or generation fails. It owns next and stop; iter.Pull2
// functions must not be called from more than one goroutine.
func pump(pw *io.PipeWriter, resp *genai.GenerateContentResponse, ok bool, next func() (*genai.GenerateContentResponse, error, bool), stop func()) {
	defer stop()
	var err error
	for ok {
		if err != nil {
			pw.CloseWithError(fmt.Errorf("gemini: %w", ConvertError(err)))
			return
		}
		if text := ResponseText(resp); text != "" {
			if werr := writeFrame(pw, text); werr != nil {
				// Reader closed.
				return
			}
		}
		resp, err, ok = next()
	}
	if _, werr := io.WriteString(pw, "data: "+chatstream.DoneToken+"\n\n"); werr != nil {
		return
	}
	_ = pw.Close()
}

func writeFrame(w io.Writer, text string) error {
	payload, err := json.Marshal(deltaFrame{Delta: text})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// ResponseText concatenates the non-thought text parts of the first
// candidate. Exported for testing.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range content.Parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
