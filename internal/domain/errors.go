package domain

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindValidation        Kind = "validation"
	KindUnavailable       Kind = "unavailable"
)

// Error is the typed failure returned by the engine and the stores.
// errors.Is matches on Kind, and on Code as well when the target sets one.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
)

const (
	CodeFlightNotFound        = "flight_not_found"
	CodePlaneNotFound         = "plane_not_found"
	CodeCrewNotFound          = "crew_not_found"
	CodeAssignmentNotFound    = "assignment_not_found"
	CodePlaneUnavailable      = "plane_unavailable"
	CodePlaneInUse            = "plane_in_use"
	CodeDuplicateCode         = "duplicate_code"
	CodeDuplicateRegistration = "duplicate_registration"
	CodeDuplicateAssignment   = "duplicate_assignment"
	CodeCrewAssigned          = "crew_assigned"
	CodeFlightFinalized       = "flight_finalized"
	CodeEnRouteWithoutPlane   = "en_route_without_plane"
	CodeInvalidTransition     = "invalid_transition"
	CodeFlightActiveOrLanded  = "flight_active_or_landed"
	CodeInvalidCode           = "invalid_code"
	CodeInvalidTime           = "invalid_time"
	CodeInvalidField          = "invalid_field"
	CodeStorageUnavailable    = "storage_unavailable"
)

func NotFound(code, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Conflict(code, format string, args ...any) error {
	return &Error{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(code, format string, args ...any) error {
	return &Error{Kind: KindInvalidTransition, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(code, format string, args ...any) error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a storage or lock failure. Typed errors pass through unchanged.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindUnavailable, Code: CodeStorageUnavailable, Message: "storage unavailable", Err: err}
}

// KindOf returns the kind of err, or "" when err is not a typed failure.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// CodeOf returns the stable code carried by err, if any.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
