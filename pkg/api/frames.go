package api

import (
	"encoding/json"
	"errors"

	"threadcast/pkg/threads"
)

// Action names accepted over the wire.
const (
	ActionOpenThread   = "open_thread"
	ActionCloseThread  = "close_thread"
	ActionSendMessage  = "send_message"
	ActionFollow       = "follow"
	ActionUnfollow     = "unfollow"
	ActionThreadStatus = "thread_status"
)

// Frame is one inbound action message. Every frame carries its own token;
// connections are not bound to a single thread or user.
type Frame struct {
	Action  string          `json:"action"`
	Token   json.RawMessage `json:"token"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// messagePayload is the body of a send_message frame.
type messagePayload struct {
	Message string `json:"message"`
}

// openPayload is the body of an open_thread frame.
type openPayload struct {
	History []threads.ActivityLogEntry `json:"history,omitempty"`
}

// ack is the per-frame outcome reported back on the caller's connection.
type ack struct {
	Action string `json:"action"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Outcome strings, mirroring the entry layer's response vocabulary.
const (
	outcomeOK           = "ok"
	outcomeBadRequest   = "bad_request"
	outcomeUnauthorized = "unauthorized"
	outcomeForbidden    = "forbidden"
	outcomeServerError  = "server_error"
)

// outcome maps an action error to its wire outcome. Skipped operations
// are successes: the caller got what it asked for, nothing had to change.
func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, threads.ErrSkipped):
		return outcomeOK
	case errors.Is(err, threads.ErrForbidden):
		return outcomeForbidden
	default:
		return outcomeServerError
	}
}
