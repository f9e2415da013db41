package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync/atomic"

	"github.com/soocke/pixel-scan-go/imaging"
)

// StillDevice serves the same image on every frame. It backs headless
// decoding of image files.
type StillDevice struct {
	img  *image.RGBA
	name string
}

// NewStillDevice wraps img as a camera.
func NewStillDevice(img image.Image) *StillDevice {
	return &StillDevice{img: imaging.ToRGBA(img), name: "still"}
}

// LoadStillDevice decodes a PNG or JPEG file into a StillDevice.
func LoadStillDevice(path string) (*StillDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	d := NewStillDevice(img)
	d.name = "still:" + path
	return d, nil
}

func (d *StillDevice) Name() string { return d.name }

func (d *StillDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.img == nil {
		return nil, ErrNoDevice
	}
	b := d.img.Bounds()
	if err := c.Check(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}
	frame := d.img
	if w, h := c.Fit(b.Dx(), b.Dy()); w != b.Dx() || h != b.Dy() {
		frame = imaging.ToRGBA(imaging.ScaleToFit(d.img, w, h))
	}
	return &stillStream{img: frame}, nil
}

type stillStream struct {
	img    *image.RGBA
	closed atomic.Bool
}

func (s *stillStream) Frame(ctx context.Context) (*image.RGBA, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.img, nil
}

func (s *stillStream) Close() error {
	s.closed.Store(true)
	return nil
}
