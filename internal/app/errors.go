package app

import (
	"fmt"
	"net/url"
)

// ErrConnection is returned when a database cannot be opened or reached.
// Target is the connection string with its password redacted.
type ErrConnection struct {
	Target string
	Cause  error
}

func (e *ErrConnection) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("connection error: %v", e.Cause)
	}
	return fmt.Sprintf("connection error: %s: %v", e.Target, e.Cause)
}

func (e *ErrConnection) Unwrap() error {
	return e.Cause
}

// ErrQuery wraps a failure to run a statement or read its results.
type ErrQuery struct {
	Query string
	Cause error
}

func (e *ErrQuery) Error() string {
	return fmt.Sprintf("query error: %v", e.Cause)
}

func (e *ErrQuery) Unwrap() error {
	return e.Cause
}

// ErrCatalog wraps a failure to list schemas or tables. Object names what
// was being listed.
type ErrCatalog struct {
	Object string
	Cause  error
}

func (e *ErrCatalog) Error() string {
	return fmt.Sprintf("catalog error: %s: %v", e.Object, e.Cause)
}

func (e *ErrCatalog) Unwrap() error {
	return e.Cause
}

// redact hides the password of a URL-shaped connection string.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return ""
	}
	return u.Redacted()
}
