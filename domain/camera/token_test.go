package camera

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDevice struct {
	open    atomic.Int32
	maxOpen atomic.Int32
	openErr error
}

func (d *countingDevice) Name() string { return "counting" }

func (d *countingDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	n := d.open.Add(1)
	for {
		m := d.maxOpen.Load()
		if n <= m || d.maxOpen.CompareAndSwap(m, n) {
			break
		}
	}
	return &countingStream{dev: d}, nil
}

type countingStream struct {
	dev    *countingDevice
	closed atomic.Bool
}

func (s *countingStream) Frame(context.Context) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func (s *countingStream) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.dev.open.Add(-1)
	}
	return nil
}

func TestToken_ExclusiveLease(t *testing.T) {
	dev := &countingDevice{}
	tok := NewToken(dev, nil)
	assert.Same(t, dev, tok.Device())
	l1, err := tok.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, tok.Held())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = tok.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	l1.Release()
	assert.False(t, tok.Held())
	l2, err := tok.Acquire(context.Background())
	require.NoError(t, err)
	l2.Release()
}

func TestLease_ReleaseClosesStreamAndIsIdempotent(t *testing.T) {
	dev := &countingDevice{}
	tok := NewToken(dev, nil)
	l, err := tok.Acquire(context.Background())
	require.NoError(t, err)
	s, err := l.Open(context.Background(), Constraints{})
	require.NoError(t, err)
	assert.Equal(t, 1, tok.OpenStreams())

	_, err = l.Open(context.Background(), Constraints{})
	assert.ErrorIs(t, err, ErrStreamOpen)

	l.Release()
	l.Release()
	assert.Equal(t, 0, tok.OpenStreams())
	assert.Equal(t, int32(0), dev.open.Load())

	_, err = s.Frame(context.Background())
	assert.ErrorIs(t, err, ErrStreamClosed)
	_, err = l.Open(context.Background(), Constraints{})
	assert.ErrorIs(t, err, ErrLeaseReleased)
}

func TestLease_OpenErrorLeavesNoStream(t *testing.T) {
	tok := NewToken(&countingDevice{openErr: ErrAccessDenied}, nil)
	l, err := tok.Acquire(context.Background())
	require.NoError(t, err)
	_, err = l.Open(context.Background(), Constraints{})
	assert.True(t, errors.Is(err, ErrAccessDenied))
	assert.Equal(t, 0, tok.OpenStreams())
	l.Release()
}

func TestToken_ConcurrentLeasesNeverOverlap(t *testing.T) {
	dev := &countingDevice{}
	tok := NewToken(dev, nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := tok.Acquire(context.Background())
			if err != nil {
				return
			}
			defer l.Release()
			s, err := l.Open(context.Background(), Constraints{})
			if err == nil {
				time.Sleep(time.Millisecond)
				_ = s.Close()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), dev.maxOpen.Load())
	assert.Equal(t, 0, tok.OpenStreams())
}

func TestToken_NilDevice(t *testing.T) {
	_, err := NewToken(nil, nil).Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestConstraints_CheckAndFit(t *testing.T) {
	c := Constraints{MinWidth: 640, IdealWidth: 1280, MaxWidth: 1920, MinHeight: 480, IdealHeight: 720, MaxHeight: 1080}
	assert.ErrorIs(t, c.Check(320, 240), ErrConstraints)
	assert.NoError(t, c.Check(800, 600))

	w, h := c.Fit(1024, 768)
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, h)

	w, h = c.Fit(3840, 2160)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)
}

func TestStillDevice_ServesImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	tok := NewToken(NewStillDevice(img), nil)
	l, err := tok.Acquire(context.Background())
	require.NoError(t, err)
	defer l.Release()
	s, err := l.Open(context.Background(), Constraints{MaxWidth: 32, MaxHeight: 32, IdealWidth: 16, IdealHeight: 16})
	require.NoError(t, err)
	f, err := s.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, f.Bounds().Dx())
	assert.Equal(t, 8, f.Bounds().Dy())
}
