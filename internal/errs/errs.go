// Package errs carries the typed failure reasons shared by probes, transports and the orchestrator.
package errs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

type Reason string

const (
	PermissionDenied    Reason = "PERMISSION_DENIED"
	DeviceNotFound      Reason = "DEVICE_NOT_FOUND"
	TransportJoinFailed Reason = "TRANSPORT_JOIN_FAILED"
	TokenIssuanceFailed Reason = "TOKEN_ISSUANCE_FAILED"
	Timeout             Reason = "TIMEOUT"
	Unknown             Reason = "UNKNOWN"
)

// Error is the unified failure contract across layers.
type Error struct {
	Reason  Reason
	Op      string // operation name, ex: "Orchestrator.JoinSession"
	Message string // safe message
	Err     error  // wrapped error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Message != "":
		return e.Message
	default:
		return string(e.Reason)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func E(reason Reason, op, msg string, err error) error {
	return &Error{Reason: reason, Op: op, Message: msg, Err: err}
}

// ReasonOf classifies err. Typed errors keep their reason; deadlines, fs permission
// and fs not-exist errors are recognized; anything else is Unknown.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		return DeviceNotFound
	}
	return Unknown
}

// Is reports whether err carries reason.
func Is(err error, reason Reason) bool {
	return ReasonOf(err) == reason
}

// UserMessage is the short text shown to a person for a failure reason.
func UserMessage(r Reason) string {
	switch r {
	case PermissionDenied:
		return "Permission to use the device was denied."
	case DeviceNotFound:
		return "No matching device was found."
	case TransportJoinFailed:
		return "Could not connect to the session."
	case TokenIssuanceFailed:
		return "Could not authorize this session."
	case Timeout:
		return "The operation timed out."
	default:
		return "Something went wrong. Please try again."
	}
}
