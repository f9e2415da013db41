package scan

import (
	"image"
	"time"
)

// FrameSnapshot carries the latest captured frame and metadata.
type FrameSnapshot struct {
	Image      *image.RGBA
	Region     image.Rectangle
	CapturedAt time.Time
	Sequence   uint64
}

// Stats summarises capture and decode behaviour of one handle.
type Stats struct {
	Captures   uint64
	Skipped    uint64
	Dropped    uint64
	Decodes    uint64
	Detections uint64
	Suppressed uint64
	AvgDecode  time.Duration
	LastFrame  time.Time
	FrameAge   time.Duration
}
