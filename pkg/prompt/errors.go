package prompt

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTemplateRender marks a template that references a field absent from
	// the data it is rendered against.
	ErrTemplateRender = errors.New("template render error")
	ErrInvalidStyle   = errors.New("invalid prompt style")
	ErrUnknownStyle   = errors.New("unknown prompt style")
)

// RenderError names the template and the placeholders that could not be bound.
type RenderError struct {
	Template string
	Missing  []string
	Err      error
}

func (e *RenderError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("render %s: unbound placeholders %s", e.Template, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("render %s: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTemplateRender}
	}
	return []error{ErrTemplateRender, e.Err}
}
