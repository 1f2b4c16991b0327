package core

import "errors"

var (
	// ErrTransport is a network or connection failure talking to the gateway.
	ErrTransport = errors.New("transport error")
	// ErrInvalidTask is an unknown task name or out-of-range variation.
	ErrInvalidTask = errors.New("invalid task")
	// ErrEngine is any other failure raised by the simulation engine.
	ErrEngine = errors.New("engine error")
	// ErrBadRequest is a request the gateway rejected for its shape.
	ErrBadRequest = errors.New("bad request")
)
