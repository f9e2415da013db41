package scan

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Result is one symbol found in an image.
type Result struct {
	Text   string
	Format Symbology
}

// Decoder recognizes symbols in an image. It must be safe for concurrent use.
// With multiple unset it returns after the first symbol found.
type Decoder interface {
	Decode(img image.Image, symbologies []Symbology, multiple bool) ([]Result, error)
}

// ZXingDecoder decodes with the zxing port. A fresh reader is built per call
// because zxing readers keep per-decode state.
type ZXingDecoder struct {
	TryHarder bool
}

func (d ZXingDecoder) Decode(img image.Image, symbologies []Symbology, multiple bool) ([]Result, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, err
	}
	hints := map[gozxing.DecodeHintType]interface{}{}
	if d.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	var out []Result
	seen := make(map[string]bool)
	for _, s := range symbologies {
		reader := newReader(s)
		if reader == nil {
			continue
		}
		res, err := reader.Decode(bmp, hints)
		if err != nil || res == nil || res.GetText() == "" {
			continue
		}
		// EAN-13 and UPC-A readers both match a UPC-A symbol
		if seen[res.GetText()] {
			continue
		}
		seen[res.GetText()] = true
		out = append(out, Result{Text: res.GetText(), Format: s})
		if !multiple {
			break
		}
	}
	return out, nil
}

func newReader(s Symbology) gozxing.Reader {
	switch s {
	case EAN13:
		return oned.NewEAN13Reader()
	case EAN8:
		return oned.NewEAN8Reader()
	case UPCA:
		return oned.NewUPCAReader()
	case UPCE:
		return oned.NewUPCEReader()
	case Code128:
		return oned.NewCode128Reader()
	case Code39:
		return oned.NewCode39Reader()
	case Code93:
		return oned.NewCode93Reader()
	case Codabar:
		return oned.NewCodaBarReader()
	case ITF:
		return oned.NewITFReader()
	case QRCode:
		return qrcode.NewQRCodeReader()
	}
	return nil
}
