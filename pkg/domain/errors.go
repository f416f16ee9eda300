package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is against any error returned by the
// fetch strategies or the transcript service.
var (
	// ErrRetrieval: no transcript in the requested language/format, or the
	// remote service failed.
	ErrRetrieval = errors.New("transcript retrieval failed")

	// ErrNotFound: the caption file was absent after a download. Errors of
	// this kind also match ErrRetrieval.
	ErrNotFound = errors.New("caption file not found")

	// ErrTool: the external download/metadata tool failed.
	ErrTool = errors.New("caption tool failed")

	// ErrInvalidRequest: malformed video id, language or format.
	ErrInvalidRequest = errors.New("invalid request")
)

// Error carries one of the kinds above plus a human readable message.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Kind.Error() + ": " + e.Err.Error()
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Kind == ErrNotFound && target == ErrRetrieval
}

// RetrievalError builds an ErrRetrieval error.
func RetrievalError(err error, format string, args ...any) error {
	return &Error{Kind: ErrRetrieval, Msg: fmt.Sprintf(format, args...), Err: err}
}

// NotFoundError builds an ErrNotFound error.
func NotFoundError(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

// ToolError builds an ErrTool error.
func ToolError(err error, format string, args ...any) error {
	return &Error{Kind: ErrTool, Msg: fmt.Sprintf(format, args...), Err: err}
}

// InvalidRequestError builds an ErrInvalidRequest error.
func InvalidRequestError(format string, args ...any) error {
	return &Error{Kind: ErrInvalidRequest, Msg: fmt.Sprintf(format, args...)}
}
