// Package imaging holds small frame helpers shared by the camera, the decode
// engine and the preview.
package imaging

import (
	"errors"
	"image"
	"image/draw"
)

// Crop copies the part of frame inside r into dst and returns it. r is
// clamped to the frame bounds; an empty intersection is an error. dst is
// reused when its Pix capacity suffices, otherwise a new image is allocated.
// The result is rebased to the origin.
func Crop(dst *image.RGBA, frame *image.RGBA, r image.Rectangle) (*image.RGBA, error) {
	if frame == nil {
		return nil, errors.New("nil frame")
	}
	r = r.Intersect(frame.Bounds())
	if r.Empty() {
		return nil, errors.New("crop outside frame")
	}
	w, h := r.Dx(), r.Dy()
	needed := w * h * 4
	if dst == nil || cap(dst.Pix) < needed {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		dst.Pix = dst.Pix[:needed]
		dst.Stride = w * 4
		dst.Rect = image.Rect(0, 0, w, h)
	}
	draw.Draw(dst, dst.Rect, frame, r.Min, draw.Src)
	return dst, nil
}
