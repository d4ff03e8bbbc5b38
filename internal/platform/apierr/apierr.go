// Package apierr holds the closed set of error codes that callers of the
// lifecycle layer branch on. Messages are for logs; codes drive behavior.
package apierr

import (
	"errors"
	"fmt"
)

type Code string

const (
	// InsufficientPoint routes the caller to a top-up decision.
	InsufficientPoint Code = "INSUFFICIENT_POINT"
	// ValidationFailed is raised client-side and never reaches the network.
	ValidationFailed Code = "VALIDATION_FAILED"
	// StillProcessing is synthesized when a target is generating or busy.
	StillProcessing Code = "STILL_PROCESSING"
	// NetworkOrServer covers transport failures, non-2xx and malformed bodies.
	NetworkOrServer Code = "NETWORK_OR_SERVER_ERROR"
	// NotFound is used when a key is unknown to the local store.
	NotFound Code = "NOT_FOUND"
)

// Known reports whether c is a member of the closed set.
func (c Code) Known() bool {
	switch c {
	case InsufficientPoint, ValidationFailed, StillProcessing, NetworkOrServer, NotFound:
		return true
	default:
		return false
	}
}

type Error struct {
	Status int
	Code   Code
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
	}
	if e.Code != "" {
		return string(e.Code)
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code Code, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(msg string) *Error {
	return &Error{Code: ValidationFailed, Err: errors.New(msg)}
}

func Processing(msg string) *Error {
	return &Error{Code: StillProcessing, Err: errors.New(msg)}
}

// CodeOf maps any error onto the closed set. nil yields "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Code.Known() {
		return ae.Code
	}
	return NetworkOrServer
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Normalize wraps err so that the result always carries a known code.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Code.Known() {
		return ae
	}
	return &Error{Code: NetworkOrServer, Err: err}
}
