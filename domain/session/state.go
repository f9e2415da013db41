package session

import (
	"time"

	"github.com/soocke/pixel-scan-go/domain/geometry"
	"github.com/soocke/pixel-scan-go/domain/permission"
	"github.com/soocke/pixel-scan-go/domain/scan"
)

// State enumerates the controller's finite states.
type State int

const (
	StateIdle State = iota
	StateRequestingPermission
	StatePermissionDenied
	StateInitializing
	StateScanning
	StateDetected
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingPermission:
		return "requesting_permission"
	case StatePermissionDenied:
		return "permission_denied"
	case StateInitializing:
		return "initializing"
	case StateScanning:
		return "scanning"
	case StateDetected:
		return "detected"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Active reports whether a session is in flight.
func (s State) Active() bool {
	return s == StateRequestingPermission || s == StateInitializing || s == StateScanning
}

// Status is the coarse observable state for UI binding.
type Status string

const (
	StatusIdle                 Status = "idle"
	StatusRequestingPermission Status = "requestingPermission"
	StatusScanning             Status = "scanning"
	StatusPermissionDenied     Status = "permissionDenied"
	StatusError                Status = "error"
)

func statusFor(s State, lastErr error) Status {
	switch s {
	case StateRequestingPermission:
		return StatusRequestingPermission
	case StateInitializing, StateScanning:
		return StatusScanning
	case StatePermissionDenied:
		return StatusPermissionDenied
	case StateIdle:
		if lastErr != nil {
			return StatusError
		}
	}
	return StatusIdle
}

// Transition describes one state change.
type Transition struct {
	From      State
	To        State
	Status    Status
	SessionID string
	Code      string
	Err       error
	At        time.Time
}

// Listener is invoked on every transition while the controller is locked.
// It must not call back into the controller.
type Listener func(Transition)

// ScanSession is the state of one start-to-finish scan.
type ScanSession struct {
	ID            string
	State         State
	Permission    permission.Status
	Geometry      *geometry.Rect
	DecoderConfig scan.DecoderConfig
	DetectedCode  string
	StartedAt     time.Time
}
