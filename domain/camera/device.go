// Package camera models the capture device as an exclusively owned resource.
// A Token grants one Lease at a time and a Lease opens at most one Stream.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
)

var (
	ErrAccessDenied  = errors.New("camera: access denied")
	ErrNoDevice      = errors.New("camera: no capture device")
	ErrConstraints   = errors.New("camera: constraints not satisfiable")
	ErrLeaseReleased = errors.New("camera: lease released")
	ErrStreamOpen    = errors.New("camera: stream already open on lease")
	ErrStreamClosed  = errors.New("camera: stream closed")
)

// Constraints bounds the resolution of frames delivered by a stream.
// Zero values mean "no constraint".
type Constraints struct {
	MinWidth    int `json:"min_width" yaml:"min_width"`
	IdealWidth  int `json:"ideal_width" yaml:"ideal_width"`
	MaxWidth    int `json:"max_width" yaml:"max_width"`
	MinHeight   int `json:"min_height" yaml:"min_height"`
	IdealHeight int `json:"ideal_height" yaml:"ideal_height"`
	MaxHeight   int `json:"max_height" yaml:"max_height"`
}

// Check reports whether a source of size w x h can satisfy the minimums.
func (c Constraints) Check(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: empty source %dx%d", ErrConstraints, w, h)
	}
	if (c.MinWidth > 0 && w < c.MinWidth) || (c.MinHeight > 0 && h < c.MinHeight) {
		return fmt.Errorf("%w: source %dx%d below minimum %dx%d", ErrConstraints, w, h, c.MinWidth, c.MinHeight)
	}
	return nil
}

// Fit returns the size frames of w x h should be scaled to. Frames above the
// maximum are scaled down towards the ideal size, never below the minimum.
func (c Constraints) Fit(w, h int) (int, int) {
	limitW, limitH := c.MaxWidth, c.MaxHeight
	if limitW <= 0 {
		limitW = w
	}
	if limitH <= 0 {
		limitH = h
	}
	if w <= limitW && h <= limitH {
		return w, h
	}
	if c.IdealWidth > 0 && c.IdealWidth < limitW {
		limitW = max(c.IdealWidth, c.MinWidth)
	}
	if c.IdealHeight > 0 && c.IdealHeight < limitH {
		limitH = max(c.IdealHeight, c.MinHeight)
	}
	return limitW, limitH
}

// Device opens capture streams. Implementations must return an error wrapping
// ErrAccessDenied or ErrNoDevice when the device cannot be used.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
	Name() string
}

// Stream delivers frames until closed. Close must be idempotent.
type Stream interface {
	Frame(ctx context.Context) (*image.RGBA, error)
	Close() error
}
