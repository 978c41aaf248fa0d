package cursor

import (
	"errors"
	"fmt"
)

// Usage errors. They are returned wrapped with call context; match them with
// errors.Is.
var (
	ErrClosed            = errors.New("invalid attempt to read when the reader is closed")
	ErrNoData            = errors.New("there is no data to read")
	ErrOrdinalOutOfRange = errors.New("column ordinal out of range")
	ErrColumnNotFound    = errors.New("could not find specified column in results")
	ErrRowShape          = errors.New("row does not match the column descriptors")
	ErrBufferRange       = errors.New("offset or length outside the buffer")
)

// EngineError is a decoding or server-side fault raised below the reader,
// by a Value getter or by an engine.
type EngineError struct {
	Code    string
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// ProviderError is the public fault returned by accessors when the engine
// failed to produce a value.
type ProviderError struct {
	Op      string
	Ordinal int
	Cause   error
}

func (e *ProviderError) Error() string {
	if e.Ordinal < 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("%s column %d: %v", e.Op, e.Ordinal, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// CanceledError reports that a call was aborted through its context. It
// unwraps to the context error.
type CanceledError struct {
	Op    string
	Cause error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("%s canceled: %v", e.Op, e.Cause)
}

func (e *CanceledError) Unwrap() error {
	return e.Cause
}

// IsCanceled reports whether err came from a cancelled reader call.
func IsCanceled(err error) bool {
	var ce *CanceledError
	return errors.As(err, &ce)
}
