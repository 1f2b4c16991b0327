package gateway

import (
	"errors"
	"net/http"

	"github.com/boristopalov/sciworld/pkg/core"
)

// classify maps an error to its HTTP status and envelope code. Request shape
// problems are the caller's fault; everything the engine raises is a 5xx.
func classify(err error) (int, ErrorCode) {
	switch {
	case errors.Is(err, core.ErrBadRequest):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, core.ErrInvalidTask):
		return http.StatusInternalServerError, CodeInvalidTask
	default:
		return http.StatusInternalServerError, CodeEngine
	}
}

// Sentinel converts an envelope code back into the matching error.
func (b ErrorBody) Sentinel() error {
	switch b.Code {
	case CodeBadRequest:
		return core.ErrBadRequest
	case CodeInvalidTask:
		return core.ErrInvalidTask
	default:
		return core.ErrEngine
	}
}
