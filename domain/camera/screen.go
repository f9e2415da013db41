package camera

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/vova616/screenshot"

	"github.com/soocke/pixel-scan-go/imaging"
)

// ScreenDevice captures the desktop (or a selection of it) as a camera.
// Platform capture failures on Open surface as ErrAccessDenied, which is how
// screen-recording restrictions present themselves.
type ScreenDevice struct {
	selFn func() *image.Rectangle
}

// NewScreenDevice returns a screen camera. selectionFn may be nil or return nil
// to capture the full screen. It is fixed for the device's lifetime and is
// called on every Open.
func NewScreenDevice(selectionFn func() *image.Rectangle) *ScreenDevice {
	return &ScreenDevice{selFn: selectionFn}
}

func (d *ScreenDevice) Name() string { return "screen" }

func (d *ScreenDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	screen, err := screenshot.ScreenRect()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	rect := screen
	if d.selFn != nil {
		if sel := d.selFn(); sel != nil && !sel.Empty() {
			rect = sel.Intersect(screen)
			if rect.Empty() {
				return nil, fmt.Errorf("%w: selection %v outside screen %v", ErrConstraints, *sel, screen)
			}
		}
	}
	if err := c.Check(rect.Dx(), rect.Dy()); err != nil {
		return nil, err
	}
	// probe once so permission failures show up at open time
	if _, err := screenshot.CaptureRect(image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+1, rect.Min.Y+1)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	w, h := c.Fit(rect.Dx(), rect.Dy())
	return &screenStream{rect: rect, outW: w, outH: h}, nil
}

type screenStream struct {
	rect       image.Rectangle
	outW, outH int
	closed     atomic.Bool
}

func (s *screenStream) Frame(ctx context.Context) (*image.RGBA, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(s.rect)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() > s.outW || img.Bounds().Dy() > s.outH {
		return imaging.ToRGBA(imaging.ScaleToFit(img, s.outW, s.outH)), nil
	}
	return img, nil
}

func (s *screenStream) Close() error {
	s.closed.Store(true)
	return nil
}
