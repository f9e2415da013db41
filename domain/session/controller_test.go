package session

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/pixel-scan-go/domain/camera"
	"github.com/soocke/pixel-scan-go/domain/geometry"
	"github.com/soocke/pixel-scan-go/domain/permission"
	"github.com/soocke/pixel-scan-go/domain/scan"
)

var discardLogger = slog.New(slog.DiscardHandler)

// testDevice is a controllable camera. Opens beyond failAfter fail with
// ErrNoDevice; block makes Open wait for ctx.
type testDevice struct {
	denied    atomic.Bool
	block     atomic.Bool
	failAfter atomic.Int32
	opens     atomic.Int32
	open      atomic.Int32
	maxOpen   atomic.Int32
}

func (d *testDevice) Name() string { return "test" }

func (d *testDevice) Open(ctx context.Context, _ camera.Constraints) (camera.Stream, error) {
	n := d.opens.Add(1)
	if d.denied.Load() {
		return nil, camera.ErrAccessDenied
	}
	if f := d.failAfter.Load(); f > 0 && n > f {
		return nil, camera.ErrNoDevice
	}
	if d.block.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	cur := d.open.Add(1)
	for {
		m := d.maxOpen.Load()
		if cur <= m || d.maxOpen.CompareAndSwap(m, cur) {
			break
		}
	}
	return &testStream{dev: d}, nil
}

type testStream struct {
	dev    *testDevice
	closed atomic.Bool
}

func (s *testStream) Frame(ctx context.Context) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 40, 40)), ctx.Err()
}

func (s *testStream) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.dev.open.Add(-1)
	}
	return nil
}

// stubDecoder reports code on every frame while code is non-empty.
type stubDecoder struct {
	mu    sync.Mutex
	codes []string
}

func (d *stubDecoder) set(codes ...string) {
	d.mu.Lock()
	d.codes = codes
	d.mu.Unlock()
}

func (d *stubDecoder) Decode(image.Image, []scan.Symbology, bool) ([]scan.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]scan.Result, 0, len(d.codes))
	for _, c := range d.codes {
		out = append(out, scan.Result{Text: c, Format: scan.EAN13})
	}
	return out, nil
}

type fixture struct {
	dev      *testDevice
	token    *camera.Token
	decoder  *stubDecoder
	ctrl     *Controller
	mu       sync.Mutex
	codes    []string
	errs     []error
	history  []Transition
	onResult func(code string)
}

func (f *fixture) completed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.codes...)
}

func (f *fixture) reported() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}

func (f *fixture) states() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]State, 0, len(f.history))
	for _, t := range f.history {
		out = append(out, t.To)
	}
	return out
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	f := &fixture{dev: &testDevice{}, decoder: &stubDecoder{}}
	f.token = camera.NewToken(f.dev, discardLogger)
	opts := Options{
		Token:  f.token,
		Engine: ScanEngine(scan.NewEngine(f.decoder, discardLogger)),
		Config: Config{Decoder: scan.DecoderConfig{WorkerCount: 2, FrequencyHz: 200, Multiple: true}},
		OnScanComplete: func(code string) {
			f.mu.Lock()
			f.codes = append(f.codes, code)
			cb := f.onResult
			f.mu.Unlock()
			if cb != nil {
				cb(code)
			}
		},
		OnError: func(err error) {
			f.mu.Lock()
			f.errs = append(f.errs, err)
			f.mu.Unlock()
		},
		Logger: discardLogger,
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.ctrl = NewController(opts)
	f.ctrl.AddListener(func(tr Transition) {
		f.mu.Lock()
		f.history = append(f.history, tr)
		f.mu.Unlock()
	})
	t.Cleanup(f.ctrl.Dispose)
	return f
}

// waitForState polls until the controller reaches expected.
func waitForState(t *testing.T, c *Controller, expected State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.State() == expected {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for state %v (got %v)", expected, c.State())
}

func released(f *fixture) func() bool {
	return func() bool { return f.dev.open.Load() == 0 && !f.token.Held() }
}

func TestController_ScanCompletesAfterRelease(t *testing.T) {
	f := newFixture(t, nil)
	f.decoder.set("4006381333931")
	var openInCallback, heldInCallback atomic.Int32
	f.onResult = func(string) {
		openInCallback.Store(f.dev.open.Load())
		if f.token.Held() {
			heldInCallback.Store(1)
		}
	}

	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateDetected, 2*time.Second)

	assert.Equal(t, []string{"4006381333931"}, f.completed())
	assert.Zero(t, openInCallback.Load(), "stream closed before callback")
	assert.Zero(t, heldInCallback.Load(), "lease released before callback")
	assert.Equal(t, []State{StateRequestingPermission, StateInitializing, StateScanning, StateDetected}, f.states())
	assert.Equal(t, StatusIdle, f.ctrl.Status())
	assert.Equal(t, permission.Granted, f.ctrl.Permission())

	snap, ok := f.ctrl.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "4006381333931", snap.DetectedCode)
	assert.NotEmpty(t, snap.ID)
	assert.EqualValues(t, 1, f.dev.maxOpen.Load())
}

func TestController_CachedGrantSkipsPermission(t *testing.T) {
	f := newFixture(t, nil)
	f.decoder.set("A")
	require.Equal(t, permission.Granted, f.ctrl.RequestPermission(context.Background()))

	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateDetected, 2*time.Second)
	assert.Equal(t, []State{StateInitializing, StateScanning, StateDetected}, f.states())
}

// fakeEngine hands out handles whose detections the test pushes directly.
type fakeEngine struct {
	mu      sync.Mutex
	inits   int
	handles []*fakeHandle
	regions []*geometry.Rect
}

func (e *fakeEngine) Initialize(ctx context.Context, lease *camera.Lease, opts scan.Options) (Handle, error) {
	if _, err := lease.Open(ctx, opts.Constraints); err != nil {
		return nil, err
	}
	h := &fakeHandle{lease: lease, detect: make(chan scan.Detection, 8)}
	e.mu.Lock()
	e.inits++
	e.handles = append(e.handles, h)
	e.regions = append(e.regions, opts.Region)
	e.mu.Unlock()
	return h, nil
}

func (e *fakeEngine) last() *fakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.handles) == 0 {
		return nil
	}
	return e.handles[len(e.handles)-1]
}

type fakeHandle struct {
	lease   *camera.Lease
	detect  chan scan.Detection
	stops   atomic.Int32
	once    sync.Once
	started atomic.Bool
	panicOn bool
}

func (h *fakeHandle) Start() error { h.started.Store(true); return nil }

func (h *fakeHandle) Stop() {
	h.stops.Add(1)
	h.once.Do(func() {
		h.lease.Release()
		close(h.detect)
	})
	if h.panicOn {
		panic("stop exploded")
	}
}

func (h *fakeHandle) Detection() <-chan scan.Detection { return h.detect }
func (h *fakeHandle) LatestFrame() scan.FrameSnapshot  { return scan.FrameSnapshot{Sequence: 7} }
func (h *fakeHandle) Stats() scan.Stats                { return scan.Stats{Captures: 3} }

func TestController_ExactlyOnceUnderBurst(t *testing.T) {
	eng := &fakeEngine{}
	f := newFixture(t, func(o *Options) { o.Engine = eng })
	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateScanning, 2*time.Second)

	h := eng.last()
	require.NotNil(t, h)
	for _, code := range []string{"first", "second", "third"} {
		h.detect <- scan.Detection{Code: code}
	}
	waitForState(t, f.ctrl, StateDetected, 2*time.Second)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, []string{"first"}, f.completed())
	assert.EqualValues(t, 1, h.stops.Load())
	assert.Eventually(t, released(f), time.Second, 2*time.Millisecond)
}

func TestController_EngineSuppressesExtraDetections(t *testing.T) {
	f := newFixture(t, nil)
	f.decoder.set("one", "two", "three")
	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateDetected, 2*time.Second)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, []string{"one"}, f.completed())
}

func TestController_StartWhileActiveIsNoop(t *testing.T) {
	eng := &fakeEngine{}
	f := newFixture(t, func(o *Options) { o.Engine = eng })
	require.NoError(t, f.ctrl.Start())
	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateScanning, 2*time.Second)
	require.NoError(t, f.ctrl.Start())

	eng.mu.Lock()
	defer eng.mu.Unlock()
	assert.Equal(t, 1, eng.inits)
}

func TestController_StopDuringPermission(t *testing.T) {
	f := newFixture(t, nil)
	f.dev.block.Store(true)
	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateRequestingPermission, time.Second)

	f.ctrl.Stop()
	assert.Equal(t, StateStopped, f.ctrl.State())
	assert.Eventually(t, released(f), time.Second, 2*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateStopped, f.ctrl.State(), "stale probe result must not move the state")
	assert.Equal(t, permission.Unknown, f.ctrl.Permission())
	assert.Empty(t, f.reported())
}

func TestController_StopDuringInitialization(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, permission.Granted, f.ctrl.RequestPermission(context.Background()))
	f.dev.block.Store(true)

	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateInitializing, time.Second)
	require.Eventually(t, f.token.Held, time.Second, 2*time.Millisecond)

	f.ctrl.Stop()
	assert.Equal(t, StateStopped, f.ctrl.State())
	assert.Eventually(t, released(f), time.Second, 2*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateStopped, f.ctrl.State())
	assert.Empty(t, f.reported())
	assert.Empty(t, f.completed())
}

func TestController_StopDuringSettleDelay(t *testing.T) {
	eng := &fakeEngine{}
	f := newFixture(t, func(o *Options) {
		o.Engine = eng
		o.Layout = SettleDelay(time.Hour)
	})
	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateInitializing, time.Second)
	f.ctrl.Stop()
	time.Sleep(20 * time.Millisecond)

	eng.mu.Lock()
	defer eng.mu.Unlock()
	assert.Zero(t, eng.inits)
	assert.Equal(t, StateStopped, f.ctrl.State())
}

func TestController_PermissionDeniedThenRetry(t *testing.T) {
	f := newFixture(t, nil)
	f.dev.denied.Store(true)

	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StatePermissionDenied, time.Second)
	assert.Equal(t, StatusPermissionDenied, f.ctrl.Status())
	errs := f.reported()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrPermissionDenied)
	var se *ScanError
	require.True(t, errors.As(errs[0], &se))
	assert.Equal(t, KindPermissionDenied, se.Kind)
	assert.False(t, f.token.Held())

	// still denied: stays put
	assert.Equal(t, permission.Denied, f.ctrl.RequestPermission(context.Background()))
	assert.Equal(t, StatePermissionDenied, f.ctrl.State())

	f.dev.denied.Store(false)
	assert.Equal(t, permission.Granted, f.ctrl.RequestPermission(context.Background()))
	assert.Equal(t, StateIdle, f.ctrl.State())
	assert.Equal(t, StatusIdle, f.ctrl.Status())

	f.decoder.set("ok")
	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateDetected, 2*time.Second)
	assert.Equal(t, []string{"ok"}, f.completed())
}

func TestController_SetConfigUpdatesPermissionConstraints(t *testing.T) {
	tok := camera.NewToken(camera.NewStillDevice(image.NewRGBA(image.Rect(0, 0, 320, 240))), discardLogger)
	ctrl := NewController(Options{Token: tok, Logger: discardLogger})
	defer ctrl.Dispose()

	assert.Equal(t, permission.Granted, ctrl.RequestPermission(context.Background()))

	ctrl.SetConfig(Config{Constraints: camera.Constraints{MinWidth: 640, MinHeight: 480}})
	assert.Equal(t, permission.Denied, ctrl.RequestPermission(context.Background()))
	assert.False(t, tok.Held())
}

func TestController_DeviceUnavailableReturnsToIdle(t *testing.T) {
	f := newFixture(t, nil)
	f.dev.failAfter.Store(1) // the permission probe succeeds, the session open fails

	require.NoError(t, f.ctrl.Start())
	require.Eventually(t, func() bool { return len(f.reported()) == 1 }, 2*time.Second, 2*time.Millisecond)
	assert.Equal(t, StateIdle, f.ctrl.State())
	assert.Equal(t, StatusError, f.ctrl.Status())
	err := f.reported()[0]
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.ErrorIs(t, err, camera.ErrNoDevice)
	assert.Equal(t, err, f.ctrl.Err())
	assert.Eventually(t, released(f), time.Second, 2*time.Millisecond)

	f.dev.failAfter.Store(0)
	f.decoder.set("retry")
	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateDetected, 2*time.Second)
	assert.Nil(t, f.ctrl.Err())
}

func TestController_InvalidDecoderConfigIsDeviceUnavailable(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Config.Decoder.Symbologies = []scan.Symbology{"bogus"}
	})
	require.NoError(t, f.ctrl.Start())
	require.Eventually(t, func() bool { return len(f.reported()) == 1 }, 2*time.Second, 2*time.Millisecond)
	assert.ErrorIs(t, f.reported()[0], scan.ErrInvalidConfig)
	assert.Eventually(t, released(f), time.Second, 2*time.Millisecond)
}

func TestController_DisposeWhileScanning(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateScanning, 2*time.Second)
	require.Equal(t, int32(1), f.dev.open.Load())

	f.ctrl.Dispose()
	assert.Zero(t, f.dev.open.Load(), "dispose releases synchronously")
	assert.False(t, f.token.Held())
	assert.Equal(t, StateStopped, f.ctrl.State())

	n := len(f.states())
	f.ctrl.Stop()
	f.ctrl.Dispose()
	assert.Len(t, f.states(), n, "stop after dispose is a no-op")
	assert.ErrorIs(t, f.ctrl.Start(), ErrDisposed)
	assert.Empty(t, f.completed())
}

func TestController_StopBeforeStart(t *testing.T) {
	f := newFixture(t, nil)
	f.ctrl.Stop()
	f.ctrl.Stop()
	assert.Equal(t, StateStopped, f.ctrl.State())
	assert.Equal(t, []State{StateStopped}, f.states())
	assert.Equal(t, StatusIdle, f.ctrl.Status())
}

func TestController_TeardownSwallowsStopPanic(t *testing.T) {
	eng := &fakeEngine{}
	f := newFixture(t, func(o *Options) { o.Engine = eng })
	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateScanning, 2*time.Second)
	eng.last().panicOn = true

	assert.NotPanics(t, f.ctrl.Stop)
	assert.Equal(t, StateStopped, f.ctrl.State())
	assert.False(t, f.token.Held())
}

func TestController_RestartFromCallback(t *testing.T) {
	f := newFixture(t, nil)
	f.decoder.set("again")
	var restarted atomic.Bool
	restartErr := make(chan error, 1)
	f.onResult = func(string) {
		if restarted.CompareAndSwap(false, true) {
			restartErr <- f.ctrl.Start()
		}
	}

	require.NoError(t, f.ctrl.Start())
	require.NoError(t, <-restartErr)
	require.Eventually(t, func() bool { return len(f.completed()) == 2 }, 2*time.Second, 2*time.Millisecond)
	waitForState(t, f.ctrl, StateDetected, time.Second)
	assert.EqualValues(t, 1, f.dev.maxOpen.Load())
}

func TestController_AtMostOneStreamUnderChurn(t *testing.T) {
	f := newFixture(t, nil)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if (i+g)%2 == 0 {
					_ = f.ctrl.Start()
				} else {
					f.ctrl.Stop()
				}
				time.Sleep(time.Duration(i%3) * time.Millisecond)
			}
		}(g)
	}
	wg.Wait()
	f.ctrl.Stop()
	assert.Eventually(t, released(f), 2*time.Second, 2*time.Millisecond)
	assert.LessOrEqual(t, f.dev.maxOpen.Load(), int32(1))
}

type signalLayout struct{ ready chan struct{} }

func (l signalLayout) WaitLayout(ctx context.Context) error {
	select {
	case <-l.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestController_GeometryMeasuredAfterLayout(t *testing.T) {
	eng := &fakeEngine{}
	layout := signalLayout{ready: make(chan struct{})}
	f := newFixture(t, func(o *Options) {
		o.Engine = eng
		o.Layout = layout
		o.Measurer = MeasureFunc(func() (*geometry.Bounds, *geometry.Bounds) {
			return &geometry.Bounds{Width: 400, Height: 500}, &geometry.Bounds{Top: 150, Left: 100, Width: 200, Height: 150}
		})
	})
	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateInitializing, time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, StateInitializing, f.ctrl.State(), "waits for layout")

	close(layout.ready)
	waitForState(t, f.ctrl, StateScanning, time.Second)

	snap, _ := f.ctrl.Snapshot()
	require.NotNil(t, snap.Geometry)
	assert.InDelta(t, 0.3, snap.Geometry.Top, 1e-9)
	assert.InDelta(t, 0.25, snap.Geometry.Left, 1e-9)
	assert.InDelta(t, 0.4, snap.Geometry.Bottom, 1e-9)
	assert.InDelta(t, 0.25, snap.Geometry.Right, 1e-9)

	eng.mu.Lock()
	require.Len(t, eng.regions, 1)
	assert.Equal(t, snap.Geometry, eng.regions[0])
	eng.mu.Unlock()

	assert.EqualValues(t, 7, f.ctrl.LatestFrame().Sequence)
	stats, ok := f.ctrl.Stats()
	assert.True(t, ok)
	assert.EqualValues(t, 3, stats.Captures)
}

func TestController_UnmountedLayoutScansFullFrame(t *testing.T) {
	eng := &fakeEngine{}
	f := newFixture(t, func(o *Options) {
		o.Engine = eng
		o.Layout = SettleDelay(0)
		o.Measurer = MeasureFunc(func() (*geometry.Bounds, *geometry.Bounds) { return nil, nil })
	})
	require.NoError(t, f.ctrl.Start())
	waitForState(t, f.ctrl, StateScanning, time.Second)
	eng.mu.Lock()
	defer eng.mu.Unlock()
	require.Len(t, eng.regions, 1)
	assert.Nil(t, eng.regions[0])
}

func TestStatusFor(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		state State
		err   error
		want  Status
	}{
		{StateIdle, nil, StatusIdle},
		{StateIdle, boom, StatusError},
		{StateRequestingPermission, nil, StatusRequestingPermission},
		{StateInitializing, nil, StatusScanning},
		{StateScanning, nil, StatusScanning},
		{StatePermissionDenied, nil, StatusPermissionDenied},
		{StateDetected, nil, StatusIdle},
		{StateStopped, boom, StatusIdle},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFor(c.state, c.err), c.state.String())
	}
}

func TestSettleDelay(t *testing.T) {
	start := time.Now()
	require.NoError(t, SettleDelay(15*time.Millisecond).WaitLayout(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SettleDelay(time.Hour).WaitLayout(ctx), context.Canceled)
}

type signalWaiter chan struct{}

func (s signalWaiter) WaitLayout(ctx context.Context) error {
	select {
	case <-s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestSequence(t *testing.T) {
	sig := make(signalWaiter)
	seq := Sequence{sig, nil, SettleDelay(10 * time.Millisecond)}

	done := make(chan error, 1)
	go func() { done <- seq.WaitLayout(context.Background()) }()
	select {
	case <-done:
		t.Fatal("sequence returned before the layout signal")
	case <-time.After(20 * time.Millisecond):
	}
	start := time.Now()
	close(sig)
	require.NoError(t, <-done)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sequence{make(signalWaiter)}.WaitLayout(ctx), context.Canceled)
}
