package encoder

import (
	"errors"
	"fmt"
)

// Kind identifies the category of an encoder failure.
type Kind string

const (
	// KindConfiguration means no API key could be resolved.
	KindConfiguration Kind = "configuration"
	// KindInitialization means the underlying API client could not be built.
	KindInitialization Kind = "initialization"
	// KindNotInitialized means the client handle is absent at call time.
	KindNotInitialized Kind = "not_initialized"
	// KindNoEmbeddingReturned means retries were exhausted or the response held no usable embeddings.
	KindNoEmbeddingReturned Kind = "no_embedding_returned"
	// KindCallFailed means a non-provider error ended the call.
	KindCallFailed Kind = "call_failed"
	// KindNotFitted means a local encoder was used before Fit.
	KindNotFitted Kind = "not_fitted"
	// KindEmptyInput means there were no documents to work on.
	KindEmptyInput Kind = "empty_input"
)

// Sentinel values for errors.Is. They match any *Error of the same Kind.
var (
	ErrConfiguration       = &Error{Kind: KindConfiguration}
	ErrInitialization      = &Error{Kind: KindInitialization}
	ErrNotInitialized      = &Error{Kind: KindNotInitialized}
	ErrNoEmbeddingReturned = &Error{Kind: KindNoEmbeddingReturned}
	ErrCallFailed          = &Error{Kind: KindCallFailed}
	ErrNotFitted           = &Error{Kind: KindNotFitted}
	ErrEmptyInput          = &Error{Kind: KindEmptyInput}
)

// Error is the single error type returned by encoders.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s Error: %s", msg, e.Err.Error())
	}
	return msg
}

// Unwrap returns the root cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for Error.
// Two errors match when their kinds are equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
