package chatstream

import (
	"context"
	"io"
)

// Transport is a strategy pattern interface for chat backends.
//
// Open sends the request and returns the response body as a byte stream of
// line-framed events. Implementations return a *StatusError for non-success
// statuses so the Controller can classify them. The Controller owns the
// returned body and closes it exactly once.
type Transport interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}
