package chatstream

// OutcomeKind is the terminal classification of a session.
type OutcomeKind string

const (
	OutcomeCompleted        OutcomeKind = "completed"
	OutcomeThrottled        OutcomeKind = "throttled"
	OutcomeQuotaExceeded    OutcomeKind = "quota_exceeded"
	OutcomeTransportFailure OutcomeKind = "transport_failure"
	OutcomeCancelled        OutcomeKind = "cancelled"
)

// Outcome is the single terminal resolution of a session.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int   // HTTP status when the backend supplied one
	Err        error // nil for OutcomeCompleted
}

// Failed reports whether the outcome is one of the failure kinds.
func (o Outcome) Failed() bool {
	switch o.Kind {
	case OutcomeThrottled, OutcomeQuotaExceeded, OutcomeTransportFailure:
		return true
	}
	return false
}

// RetractsUserTurn reports whether the just-sent user turn should be removed
// from the visible transcript so the user can resend it without duplication.
func (o Outcome) RetractsUserTurn() bool {
	return o.Kind == OutcomeThrottled || o.Kind == OutcomeQuotaExceeded
}

// Retryable reports whether resending without external action can succeed.
func (o Outcome) Retryable() bool {
	return o.Kind == OutcomeThrottled || o.Kind == OutcomeTransportFailure
}

// Notice returns user-facing guidance. Completed and cancelled sessions
// produce no notice.
func (o Outcome) Notice() string {
	switch o.Kind {
	case OutcomeThrottled:
		return "Rate limit reached. Please retry shortly."
	case OutcomeQuotaExceeded:
		return "Usage credits exhausted. Add credits to your workspace to continue."
	case OutcomeTransportFailure:
		return "Something went wrong while generating a response. Please try again."
	default:
		return ""
	}
}
