package scan

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/pixel-scan-go/assets"
	"github.com/soocke/pixel-scan-go/domain/camera"
	"github.com/soocke/pixel-scan-go/domain/geometry"
)

type stubDecoder struct {
	mu      sync.Mutex
	results []Result
	err     error
	calls   atomic.Int32
	bounds  []image.Rectangle
}

func (d *stubDecoder) Decode(img image.Image, _ []Symbology, multiple bool) ([]Result, error) {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bounds = append(d.bounds, img.Bounds())
	if d.err != nil {
		return nil, d.err
	}
	if !multiple && len(d.results) > 1 {
		return d.results[:1], nil
	}
	return d.results, nil
}

func (d *stubDecoder) set(results ...Result) {
	d.mu.Lock()
	d.results = results
	d.mu.Unlock()
}

func fastConfig() DecoderConfig {
	return DecoderConfig{Symbologies: []Symbology{EAN13}, WorkerCount: 2, FrequencyHz: 200}
}

func newTestHandle(t *testing.T, dec Decoder, opts Options) (*Handle, *camera.Token) {
	t.Helper()
	tok := camera.NewToken(camera.NewStillDevice(image.NewRGBA(image.Rect(0, 0, 100, 100))), nil)
	lease, err := tok.Acquire(context.Background())
	require.NoError(t, err)
	h, err := NewEngine(dec, nil).Initialize(context.Background(), lease, opts)
	require.NoError(t, err)
	return h, tok
}

func TestEngine_FirstDetectionResolvesOnce(t *testing.T) {
	dec := &stubDecoder{}
	dec.set(Result{Text: "4006381333931", Format: EAN13})
	h, tok := newTestHandle(t, dec, Options{Config: fastConfig()})
	require.Equal(t, 1, tok.OpenStreams())
	require.NoError(t, h.Start())

	select {
	case d := <-h.Detection():
		assert.Equal(t, "4006381333931", d.Code)
		assert.Equal(t, EAN13, d.Format)
		assert.NotZero(t, d.Sequence)
	case <-time.After(2 * time.Second):
		t.Fatal("no detection")
	}

	h.Stop()
	_, ok := <-h.Detection()
	assert.False(t, ok, "future closed after stop")
	assert.EqualValues(t, 1, h.Stats().Detections)
	assert.Equal(t, 0, tok.OpenStreams())
	assert.False(t, tok.Held())
	assert.True(t, h.Stopped())
}

func TestEngine_MultipleResultsSuppressed(t *testing.T) {
	dec := &stubDecoder{}
	dec.set(Result{Text: "A", Format: Code128}, Result{Text: "B", Format: Code128})
	cfg := fastConfig()
	cfg.Multiple = true
	h, _ := newTestHandle(t, dec, Options{Config: cfg})
	require.NoError(t, h.Start())

	d := <-h.Detection()
	assert.Equal(t, "A", d.Code)
	h.Stop()
	s := h.Stats()
	assert.EqualValues(t, 1, s.Detections)
	assert.GreaterOrEqual(t, s.Suppressed, uint64(1))
}

func TestEngine_StopBeforeDetection(t *testing.T) {
	dec := &stubDecoder{}
	h, tok := newTestHandle(t, dec, Options{Config: fastConfig()})
	require.NoError(t, h.Start())
	require.Eventually(t, func() bool { return dec.calls.Load() > 0 }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
	_, ok := <-h.Detection()
	assert.False(t, ok)
	assert.ErrorIs(t, h.Start(), ErrHandleStopped)
	assert.False(t, tok.Held())

	// a detection after stop is dropped
	assert.False(t, h.resolve(Detection{Code: "late"}))
}

func TestEngine_OnDetect(t *testing.T) {
	dec := &stubDecoder{}
	dec.set(Result{Text: "X", Format: Code39})
	h, _ := newTestHandle(t, dec, Options{Config: fastConfig()})
	got := make(chan string, 1)
	h.OnDetect(func(d Detection) { got <- d.Code })
	require.NoError(t, h.Start())
	select {
	case code := <-got:
		assert.Equal(t, "X", code)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}
	h.Stop()
}

func TestEngine_DecodesRegionOnly(t *testing.T) {
	dec := &stubDecoder{}
	region := &geometry.Rect{Top: 0.25, Right: 0.25, Bottom: 0.25, Left: 0.25}
	h, _ := newTestHandle(t, dec, Options{Config: fastConfig(), Region: region})
	require.NoError(t, h.Start())
	require.Eventually(t, func() bool { return dec.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	h.Stop()

	dec.mu.Lock()
	defer dec.mu.Unlock()
	require.NotEmpty(t, dec.bounds)
	assert.Equal(t, image.Rect(0, 0, 50, 50), dec.bounds[0])
	assert.Equal(t, image.Rect(25, 25, 75, 75), h.LatestFrame().Region)
}

func TestEngine_DecoderErrorsKeepScanning(t *testing.T) {
	dec := &stubDecoder{err: errors.New("blurry")}
	h, _ := newTestHandle(t, dec, Options{Config: fastConfig()})
	require.NoError(t, h.Start())
	require.Eventually(t, func() bool { return dec.calls.Load() > 3 }, 2*time.Second, 5*time.Millisecond)
	h.Stop()
	assert.Zero(t, h.Stats().Detections)
}

func TestEngine_InitializeRejectsBadConfig(t *testing.T) {
	tok := camera.NewToken(camera.NewStillDevice(image.NewRGBA(image.Rect(0, 0, 8, 8))), nil)
	lease, err := tok.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release()

	_, err = NewEngine(&stubDecoder{}, nil).Initialize(context.Background(), lease,
		Options{Config: DecoderConfig{Symbologies: []Symbology{"bogus"}}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 0, tok.OpenStreams())

	_, err = NewEngine(nil, nil).Initialize(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, camera.ErrLeaseReleased)
}

func TestEngine_InitializeCancelled(t *testing.T) {
	tok := camera.NewToken(camera.NewStillDevice(image.NewRGBA(image.Rect(0, 0, 8, 8))), nil)
	lease, err := tok.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewEngine(&stubDecoder{}, nil).Initialize(ctx, lease, Options{Config: fastConfig()})
	assert.Error(t, err)
	assert.Equal(t, 0, tok.OpenStreams())
}

func TestZXingDecoder_QRCode(t *testing.T) {
	bm, err := qrcode.NewQRCodeWriter().Encode("https://example.com/item/42", gozxing.BarcodeFormat_QR_CODE, 250, 250, nil)
	require.NoError(t, err)

	tok := camera.NewToken(camera.NewStillDevice(bm), nil)
	lease, err := tok.Acquire(context.Background())
	require.NoError(t, err)
	cfg := DecoderConfig{Symbologies: []Symbology{QRCode, EAN13}, WorkerCount: 1, FrequencyHz: 50}
	h, err := NewEngine(ZXingDecoder{}, nil).Initialize(context.Background(), lease, Options{Config: cfg})
	require.NoError(t, err)
	require.NoError(t, h.Start())
	defer h.Stop()

	select {
	case d := <-h.Detection():
		assert.Equal(t, "https://example.com/item/42", d.Code)
		assert.Equal(t, QRCode, d.Format)
	case <-time.After(5 * time.Second):
		t.Fatal("qr code not decoded")
	}
}

func TestZXingDecoder_AliasedSymbologyName(t *testing.T) {
	img, err := assets.SampleEAN13Image()
	require.NoError(t, err)

	tok := camera.NewToken(camera.NewStillDevice(img), nil)
	lease, err := tok.Acquire(context.Background())
	require.NoError(t, err)
	cfg := DecoderConfig{Symbologies: []Symbology{"EAN-13"}, WorkerCount: 1, FrequencyHz: 50}
	h, err := NewEngine(ZXingDecoder{}, nil).Initialize(context.Background(), lease, Options{Config: cfg})
	require.NoError(t, err)
	require.NoError(t, h.Start())
	defer h.Stop()

	select {
	case d := <-h.Detection():
		assert.Equal(t, assets.SampleCode, d.Code)
		assert.Equal(t, EAN13, d.Format)
	case <-time.After(5 * time.Second):
		t.Fatal("EAN-13 alias not decoded")
	}
}

func TestZXingDecoder_BlankImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	res, err := ZXingDecoder{TryHarder: true}.Decode(img, DefaultSymbologies, false)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestDecoderConfig_WithDefaults(t *testing.T) {
	c := DecoderConfig{Symbologies: []Symbology{QRCode, EAN13, QRCode}}.WithDefaults()
	assert.Equal(t, []Symbology{EAN13, QRCode}, c.Symbologies)
	assert.Equal(t, DefaultFrequencyHz, c.FrequencyHz)
	assert.GreaterOrEqual(t, c.WorkerCount, 1)
	assert.NoError(t, c.Validate())
	assert.Equal(t, time.Second/15, c.Interval())

	empty := DecoderConfig{}.WithDefaults()
	assert.Equal(t, DefaultSymbologies, empty.Symbologies)

	aliased := DecoderConfig{Symbologies: []Symbology{"EAN-13", "ean13", "qr", "bogus"}}.WithDefaults()
	assert.Equal(t, []Symbology{"bogus", EAN13, QRCode}, aliased.Symbologies)
	assert.ErrorIs(t, aliased.Validate(), ErrInvalidConfig)
}

func TestParseSymbology(t *testing.T) {
	cases := map[string]Symbology{"EAN-13": EAN13, "ean8": EAN8, "QR": QRCode, " code 128 ": Code128, "upc": UPCA}
	for in, want := range cases {
		got, err := ParseSymbology(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseSymbology("pdf417")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
