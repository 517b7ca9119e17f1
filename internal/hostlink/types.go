package hostlink

import "encoding/json"

// Message types on the host link.
const (
	TypeHelloRequired = "hello_required"
	TypeHello         = "hello"
	TypeHelloOK       = "hello_ok"
	TypeHelloInvalid  = "hello_invalid"
	TypeCall          = "call"
	TypeResult        = "result"
)

// Message is the envelope for everything sent over the host link.
// Calls flow both ways; each side numbers its own calls and the peer echoes
// the ID in the result.
type Message struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Token   string          `json:"token,omitempty"`
	Session string          `json:"session,omitempty"`
	Version string          `json:"version,omitempty"`
	Method  string          `json:"method,omitempty"`
	Args    []any           `json:"args,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a failed call's reason.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes used in results sent back to the host.
const (
	CodeNotReady   = "not_ready"
	CodeBadRequest = "bad_request"
	CodeFailed     = "failed"
)
