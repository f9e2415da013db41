// Package assets embeds the sample symbol used by the self test.
package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	"image/png"
)

// SampleCode is the value encoded in SampleEAN13PNG.
const SampleCode = "4006381333931"

// SampleEAN13PNG contains the raw PNG bytes of an EAN-13 symbol for SampleCode.
//
//go:embed sample_ean13.png
var SampleEAN13PNG []byte

// SampleEAN13Image decodes the embedded PNG into an image.Image.
func SampleEAN13Image() (image.Image, error) {
	if len(SampleEAN13PNG) == 0 {
		return nil, fmt.Errorf("embedded sample_ean13.png is empty")
	}
	return png.Decode(bytes.NewReader(SampleEAN13PNG))
}
