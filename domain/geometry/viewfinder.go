// Package geometry converts viewfinder overlay measurements into the
// normalized region of interest handed to the decode engine.
package geometry

import (
	"fmt"
	"image"
	"math"
)

// Bounds is an absolute rectangle in host (pixel) coordinates.
type Bounds struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect holds the overlay offsets from each container edge as fractions of the
// container size. Fractions are negative when the overlay pokes outside the
// container; consumers treat negative fractions as zero.
type Rect struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

func (r Rect) String() string {
	return fmt.Sprintf("rect(top=%.3f right=%.3f bottom=%.3f left=%.3f)", r.Top, r.Right, r.Bottom, r.Left)
}

// Valid reports whether the rect leaves a non-empty decode area.
func (r Rect) Valid() bool {
	return r.Top+r.Bottom < 1 && r.Left+r.Right < 1
}

// ComputeRect returns the overlay's offsets inside container as fractions.
// It returns nil when either rectangle is unavailable; callers then decode
// the full frame. An axis with zero or negative container extent yields zero
// offsets on that axis. The function never panics.
func ComputeRect(container, overlay *Bounds) *Rect {
	if container == nil || overlay == nil {
		return nil
	}
	r := &Rect{}
	if w := container.Width; w > 0 && finite(w) {
		r.Left = (overlay.Left - container.Left) / w
		r.Right = (container.Left + w - (overlay.Left + overlay.Width)) / w
	}
	if h := container.Height; h > 0 && finite(h) {
		r.Top = (overlay.Top - container.Top) / h
		r.Bottom = (container.Top + h - (overlay.Top + overlay.Height)) / h
	}
	r.Top, r.Right, r.Bottom, r.Left = sanitize(r.Top), sanitize(r.Right), sanitize(r.Bottom), sanitize(r.Left)
	return r
}

// Region maps the rect onto frame and returns the pixel rectangle to decode.
// Negative fractions clamp to zero. A nil or degenerate rect yields frame.
func (r *Rect) Region(frame image.Rectangle) image.Rectangle {
	if r == nil || frame.Empty() {
		return frame
	}
	w, h := float64(frame.Dx()), float64(frame.Dy())
	x0 := frame.Min.X + int(math.Round(clamp01(r.Left)*w))
	x1 := frame.Max.X - int(math.Round(clamp01(r.Right)*w))
	y0 := frame.Min.Y + int(math.Round(clamp01(r.Top)*h))
	y1 := frame.Max.Y - int(math.Round(clamp01(r.Bottom)*h))
	if x1 <= x0 || y1 <= y0 {
		return frame
	}
	region := image.Rect(x0, y0, x1, y1).Intersect(frame)
	if region.Empty() {
		return frame
	}
	return region
}

func clamp01(v float64) float64 {
	if v < 0 || !finite(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sanitize(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return v
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
