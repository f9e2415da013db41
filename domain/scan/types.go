// Package scan drives continuous capture and decoding on a leased camera
// stream and delivers the first decoded payload through a one-shot future.
package scan

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/soocke/pixel-scan-go/domain/camera"
	"github.com/soocke/pixel-scan-go/domain/geometry"
)

var (
	ErrHandleStopped = errors.New("scan: handle stopped")
	ErrInvalidConfig = errors.New("scan: invalid decoder config")
)

// Symbology names a barcode encoding standard.
type Symbology string

const (
	EAN13   Symbology = "ean_13"
	EAN8    Symbology = "ean_8"
	UPCA    Symbology = "upc_a"
	UPCE    Symbology = "upc_e"
	Code128 Symbology = "code_128"
	Code39  Symbology = "code_39"
	Code93  Symbology = "code_93"
	Codabar Symbology = "codabar"
	ITF     Symbology = "itf"
	QRCode  Symbology = "qr_code"
)

// DefaultSymbologies is the retail set scanned when none is configured.
var DefaultSymbologies = []Symbology{EAN13, EAN8, UPCA, UPCE, Code128, Code39}

const (
	DefaultFrequencyHz = 15
	fallbackWorkers    = 4
)

// ParseSymbology normalizes a configured name ("EAN-13", "ean13", "ean_13").
func ParseSymbology(name string) (Symbology, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("-", "_", " ", "_").Replace(n)
	switch n {
	case "ean_13", "ean13", "ean":
		return EAN13, nil
	case "ean_8", "ean8":
		return EAN8, nil
	case "upc_a", "upca", "upc":
		return UPCA, nil
	case "upc_e", "upce":
		return UPCE, nil
	case "code_128", "code128":
		return Code128, nil
	case "code_39", "code39":
		return Code39, nil
	case "code_93", "code93":
		return Code93, nil
	case "codabar":
		return Codabar, nil
	case "itf", "i2of5":
		return ITF, nil
	case "qr_code", "qr", "qrcode":
		return QRCode, nil
	}
	return "", fmt.Errorf("%w: unknown symbology %q", ErrInvalidConfig, name)
}

// DecoderConfig selects what and how often the engine decodes.
type DecoderConfig struct {
	Symbologies []Symbology `json:"symbologies"`
	WorkerCount int         `json:"worker_count"`
	FrequencyHz int         `json:"frequency_hz"`
	Multiple    bool        `json:"multiple"`
}

// WithDefaults fills zero fields: the default symbology set, one worker per
// logical CPU (4 when unknown) and 15 Hz polling. Symbology names are
// normalized and duplicates dropped; unknown names are kept for Validate to reject.
func (c DecoderConfig) WithDefaults() DecoderConfig {
	out := c
	if len(out.Symbologies) == 0 {
		out.Symbologies = append([]Symbology(nil), DefaultSymbologies...)
	} else {
		seen := make(map[Symbology]bool, len(out.Symbologies))
		uniq := make([]Symbology, 0, len(out.Symbologies))
		for _, s := range out.Symbologies {
			if norm, err := ParseSymbology(string(s)); err == nil {
				s = norm
			}
			if !seen[s] {
				seen[s] = true
				uniq = append(uniq, s)
			}
		}
		sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })
		out.Symbologies = uniq
	}
	if out.WorkerCount <= 0 {
		out.WorkerCount = DefaultWorkers()
	}
	if out.FrequencyHz <= 0 {
		out.FrequencyHz = DefaultFrequencyHz
	}
	return out
}

// Validate rejects configs the engine cannot run.
func (c DecoderConfig) Validate() error {
	if len(c.Symbologies) == 0 {
		return fmt.Errorf("%w: no symbologies", ErrInvalidConfig)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker count %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.FrequencyHz < 1 {
		return fmt.Errorf("%w: frequency %d Hz", ErrInvalidConfig, c.FrequencyHz)
	}
	for _, s := range c.Symbologies {
		if _, err := ParseSymbology(string(s)); err != nil {
			return err
		}
	}
	return nil
}

// Interval is the polling period derived from FrequencyHz.
func (c DecoderConfig) Interval() time.Duration {
	if c.FrequencyHz <= 0 {
		return time.Second / DefaultFrequencyHz
	}
	return time.Second / time.Duration(c.FrequencyHz)
}

// Options configure one engine handle.
type Options struct {
	Config      DecoderConfig
	Constraints camera.Constraints
	// Region limits decoding to the normalized viewfinder area; nil decodes the full frame.
	Region *geometry.Rect
}

// Detection is a decoded payload.
type Detection struct {
	Code      string    `json:"code"`
	Format    Symbology `json:"format"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  uint64    `json:"sequence"`
}
