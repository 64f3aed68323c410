// Package gemini implements [chatstream.Transport] for the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK. The SDK's response iterator is
// pulled on a background goroutine that writes each text chunk to a pipe as
// a generic data: frame, so the chatstream Controller reads Gemini replies
// like any other event stream.
package gemini

const (
	defaultModel     = "gemini-2.5-flash"
	defaultMaxTokens = 8192
)
