package scan

import (
	"image"
	"sync"
)

// Region crops are copied into pooled RGBA buffers so a slow worker pool does
// not pin one backing slice per captured frame. Workers recycle a crop once
// the decoder is done with it; a crop that is never recycled is simply
// collected.

var framePool sync.Pool // stores *image.RGBA

func acquireFrame() *image.RGBA {
	if v := framePool.Get(); v != nil {
		return v.(*image.RGBA)
	}
	return nil
}

// recycleFrame returns img to the pool. img must not be used afterwards.
func recycleFrame(img *image.RGBA) {
	if img == nil || img.Pix == nil {
		return
	}
	framePool.Put(img)
}
