// Package fault defines the structured error values returned across layers.
//
// Every error that can reach a caller carries a Kind and optional context.
// Transient kinds (upstream, cache) are recovered locally where possible;
// data-shape and parameter kinds are surfaced as-is.
package fault

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error.
type Kind string

const (
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindValidation          Kind = "validation_error"
	KindInsufficientData    Kind = "insufficient_data"
	KindInvalidParameters   Kind = "invalid_parameters"
	KindCacheUnavailable    Kind = "cache_unavailable"
	KindNoData              Kind = "no_data"
	KindCancelled           Kind = "cancelled"
	KindInternal            Kind = "internal"
)

// Sentinel errors, one per kind, so callers can use errors.Is.
var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrValidation          = errors.New("validation error")
	ErrInsufficientData    = errors.New("insufficient data")
	ErrInvalidParameters   = errors.New("invalid parameters")
	ErrCacheUnavailable    = errors.New("cache unavailable")
	ErrNoData              = errors.New("no data")
	ErrCancelled           = errors.New("cancelled")
	ErrInternal            = errors.New("internal error")
)

var sentinels = map[Kind]error{ //nolint:gochecknoglobals // lookup table
	KindUpstreamUnavailable: ErrUpstreamUnavailable,
	KindValidation:          ErrValidation,
	KindInsufficientData:    ErrInsufficientData,
	KindInvalidParameters:   ErrInvalidParameters,
	KindCacheUnavailable:    ErrCacheUnavailable,
	KindNoData:              ErrNoData,
	KindCancelled:           ErrCancelled,
	KindInternal:            ErrInternal,
}

// Error is a structured error with a kind, the failing operation and context.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Context map[string]any
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// With returns a copy of e with an extra context entry.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	cp.Context[key] = value
	return &cp
}

// New creates an error of the given kind.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid is shorthand for an invalid_parameters error on a named parameter.
func Invalid(op, param, format string, args ...any) *Error {
	return New(KindInvalidParameters, op, format, args...).With("param", param)
}

// KindOf returns the kind of the first *Error in err's chain.
// Context cancellation maps to KindCancelled; anything else is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	if isContextErr(err) {
		return KindCancelled
	}
	return KindInternal
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ContextOf returns the context map of the first *Error in err's chain.
func ContextOf(err error) map[string]any {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Context
	}
	return nil
}

// MessageOf returns a caller-facing message without the kind prefix.
func MessageOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		switch {
		case fe.Message != "" && fe.Err != nil:
			return fe.Message + ": " + fe.Err.Error()
		case fe.Message != "":
			return fe.Message
		case fe.Err != nil:
			return fe.Err.Error()
		}
		return string(fe.Kind)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
