// Package types contains the envelope returned at every tool boundary.
package types

import (
	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// Outcome is a discriminated success/failure result. Exactly one of Data or
// Error is set, and OK tells which.
type Outcome struct {
	OK    bool          `json:"ok"`
	Epoch model.Epoch   `json:"epoch,omitempty"`
	Data  any           `json:"data,omitempty"`
	Error *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload describes a failure to the caller.
type ErrorPayload struct {
	Kind    fault.Kind     `json:"kind"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// Success wraps a result computed against epoch.
func Success(epoch model.Epoch, data any) Outcome {
	return Outcome{OK: true, Epoch: epoch, Data: data}
}

// Failure converts any error into a failure outcome.
func Failure(err error) Outcome {
	return Outcome{
		OK: false,
		Error: &ErrorPayload{
			Kind:    fault.KindOf(err),
			Message: fault.MessageOf(err),
			Context: fault.ContextOf(err),
		},
	}
}

// From builds an Outcome from a (value, error) pair.
func From(epoch model.Epoch, data any, err error) Outcome {
	if err != nil {
		return Failure(err)
	}
	return Success(epoch, data)
}
