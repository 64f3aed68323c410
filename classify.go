package chatstream

import (
	"context"
	"errors"
	"net/http"
)

// Classify maps the error that ended a session to an Outcome. Cancellation
// of ctx wins over any status or transport signal. A nil error classifies
// as OutcomeCompleted.
func Classify(ctx context.Context, err error) Outcome {
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		return Outcome{Kind: OutcomeCancelled, Err: cause}
	}
	if err == nil {
		return Outcome{Kind: OutcomeCompleted}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrSuperseded) {
		return Outcome{Kind: OutcomeCancelled, Err: err}
	}
	var se *StatusError
	if errors.As(err, &se) {
		return Outcome{Kind: ClassifyStatus(se.StatusCode), StatusCode: se.StatusCode, Err: err}
	}
	return Outcome{Kind: OutcomeTransportFailure, Err: err}
}

// ClassifyStatus maps an HTTP status code to an OutcomeKind. Unknown
// non-success statuses fall back to OutcomeTransportFailure.
func ClassifyStatus(code int) OutcomeKind {
	switch {
	case code == http.StatusTooManyRequests:
		return OutcomeThrottled
	case code == http.StatusPaymentRequired:
		return OutcomeQuotaExceeded
	case code >= 200 && code < 300:
		return OutcomeCompleted
	default:
		return OutcomeTransportFailure
	}
}
