package location

import (
	"errors"
	"fmt"
)

// ErrorKind is the platform's classification of a failed fix. Values match the
// geolocation error codes.
type ErrorKind int

const (
	KindPermissionDenied    ErrorKind = 1
	KindPositionUnavailable ErrorKind = 2
	KindTimeout             ErrorKind = 3
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindPositionUnavailable:
		return "position_unavailable"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Fatal reports whether the kind ends the tracking session. Only a denied
// permission does; the other kinds are GPS noise the platform retries through.
func (k ErrorKind) Fatal() bool { return k == KindPermissionDenied }

// Error is one platform error callback.
type Error struct {
	Kind    ErrorKind
	Message string
}

func NewError(kind ErrorKind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func (e *Error) Error() string {
	if e.Message == "" {
		return "location: " + e.Kind.String()
	}
	return "location: " + e.Kind.String() + ": " + e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrPermissionDenied) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrPermissionDenied    = &Error{Kind: KindPermissionDenied}
	ErrPositionUnavailable = &Error{Kind: KindPositionUnavailable}
	ErrTimeout             = &Error{Kind: KindTimeout}

	ErrPermissionRequired = errors.New("location permission must be granted again before tracking")
)
