package provider

import (
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/openai/openai-go/v3"
)

// Error is an upstream failure that carries the HTTP status when one is known.
type Error struct {
	Provider string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s upstream error (status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s upstream error: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus exposes the upstream status to error classification.
func (e *Error) HTTPStatus() int {
	return e.Status
}

// wrapError attaches provider context and the SDK's HTTP status to err.
func wrapError(providerName string, err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}
	out := &Error{Provider: providerName, Err: err}

	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		out.Status = oaiErr.StatusCode
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		out.Status = antErr.StatusCode
	}
	return out
}
