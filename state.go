package chatstream

// SessionState indicates where a Session is in its lifecycle.
type SessionState int

const (
	StateIdle      SessionState = iota // Created, request not yet sent.
	StateSending                       // Transport is being opened.
	StateStreaming                     // Receiving chunks.
	StateCompleted                     // Terminator or natural end of stream.
	StateFailed                        // Classified failure.
	StateCancelled                     // Caller abort or superseded.
)

var stateNames = [...]string{
	StateIdle:      "idle",
	StateSending:   "sending",
	StateStreaming: "streaming",
	StateCompleted: "completed",
	StateFailed:    "failed",
	StateCancelled: "cancelled",
}

func (s SessionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s >= StateCompleted
}
