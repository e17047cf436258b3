// Package apperr classifies the ways a sweep can fail so that entry points can
// pick a status code and message without inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the cause of a failed run.
type Kind int

const (
	// KindUnexpected covers anything not classified below.
	KindUnexpected Kind = iota
	// KindConfig means required configuration is missing or invalid.
	KindConfig
	// KindSourceNotFound means the query list could not be found.
	KindSourceNotFound
	// KindUpstream means the search API answered with a failure.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindSourceNotFound:
		return "source_not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "unexpected"
	}
}

// Error carries a Kind alongside the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configf builds a KindConfig error from a format string.
func Configf(format string, args ...any) error {
	return &Error{Kind: KindConfig, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnexpected when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// StatusCode maps an error to the invocation status. Every failure is a 500;
// a nil error is a 200.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
