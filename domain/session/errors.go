package session

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied  = errors.New("camera permission denied")
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	ErrDisposed          = errors.New("session controller disposed")
)

// ErrorKind classifies errors reported to the caller.
type ErrorKind int

const (
	KindPermissionDenied ErrorKind = iota + 1
	KindDeviceUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindDeviceUnavailable:
		return "device_unavailable"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	if k == KindPermissionDenied {
		return ErrPermissionDenied
	}
	return ErrDeviceUnavailable
}

// ScanError is a non-fatal error reported for one session.
// errors.Is matches both the kind's sentinel and the cause.
type ScanError struct {
	Kind      ErrorKind
	SessionID string
	Err       error
}

func (e *ScanError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("session %s: %v", e.SessionID, e.Kind.sentinel())
	}
	return fmt.Sprintf("session %s: %v: %v", e.SessionID, e.Kind.sentinel(), e.Err)
}

func (e *ScanError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}
