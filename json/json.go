// Package json implements the chatstream request wire format with
// encoding/json and payload parsing with gjson.
package json

import (
	"encoding/json"
	"fmt"

	"github.com/fwojciec/chatstream"
)

// requestDTO is the outbound request body.
type requestDTO struct {
	Messages    []turnDTO `json:"messages"`
	UserMessage string    `json:"userMessage"`
	Context     string    `json:"context"`
	ClientID    string    `json:"clientId,omitempty"`
	UserID      string    `json:"userId,omitempty"`
}

type turnDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MarshalRequest serializes a Request to the outbound wire format. The
// messages array holds the prior turns followed by the new user turn.
func MarshalRequest(req chatstream.Request) ([]byte, error) {
	msgs := req.Messages()
	dto := requestDTO{
		Messages:    make([]turnDTO, len(msgs)),
		UserMessage: req.UserMessage,
		Context:     req.Context,
		ClientID:    req.ClientID,
		UserID:      req.UserID,
	}
	for i, t := range msgs {
		if !t.Role.Valid() {
			return nil, fmt.Errorf("message %d: unknown role %q", i, t.Role)
		}
		dto.Messages[i] = turnDTO{Role: string(t.Role), Content: t.Content}
	}
	return json.Marshal(dto)
}
