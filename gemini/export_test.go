package gemini

// NewWithStream creates a Client that uses fn instead of the genai SDK.
var NewWithStream = newClient
