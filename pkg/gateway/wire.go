package gateway

import (
	"github.com/boristopalov/sciworld/pkg/core"
)

// SessionHeader selects the gateway session a request runs against.
const SessionHeader = "X-Session-ID"

// SessionQuery is the websocket equivalent of SessionHeader.
const SessionQuery = "session"

type ErrorCode string

const (
	CodeBadRequest  ErrorCode = "E_BAD_REQUEST"
	CodeInvalidTask ErrorCode = "E_INVALID_TASK"
	CodeEngine      ErrorCode = "E_ENGINE"
)

type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorResponse is the body of every non-200 response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type LoadRequest struct {
	Name      string `json:"name"`
	Variation int    `json:"variation"`
}

type StepRequest struct {
	Action string `json:"action"`
}

// Websocket frame types.
const (
	FrameTasks  = "tasks"
	FrameLoad   = "load"
	FrameStep   = "step"
	FrameResult = "result"
	FrameError  = "error"
)

// Frame is a websocket request. ID is echoed back on the reply.
type Frame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Variation int    `json:"variation"`
	Action    string `json:"action,omitempty"`
}

// Reply answers exactly one Frame.
type Reply struct {
	Type     string         `json:"type"`
	ID       string         `json:"id,omitempty"`
	Tasks    core.TaskList  `json:"tasks,omitempty"`
	Snapshot *core.Snapshot `json:"snapshot,omitempty"`
	Error    *ErrorBody     `json:"error,omitempty"`
}
