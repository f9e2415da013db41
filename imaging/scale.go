package imaging

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

var previewEncoder = png.Encoder{CompressionLevel: png.BestSpeed}

// EncodePNG encodes img for Tk photo images with fast compression. Errors
// yield an empty slice.
func EncodePNG(img image.Image) []byte {
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	_ = previewEncoder.Encode(&buf, img)
	return buf.Bytes()
}

// ScaleToFit returns img scaled down to fit maxW x maxH with its aspect ratio
// kept. Images that already fit are returned unchanged.
func ScaleToFit(src image.Image, maxW, maxH int) image.Image {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return src
	}
	maxW, maxH = max(maxW, 1), max(maxH, 1)
	ratio := min(float64(maxW)/float64(b.Dx()), float64(maxH)/float64(b.Dy()))
	w := max(int(float64(b.Dx())*ratio+0.5), 1)
	h := max(int(float64(b.Dy())*ratio+0.5), 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// ToRGBA returns img as *image.RGBA, copying only when img has another type.
// The copy is rebased to the origin.
func ToRGBA(img image.Image) *image.RGBA {
	if img == nil {
		return nil
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
