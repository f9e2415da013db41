// Package session orchestrates permission, viewfinder geometry and the scan
// engine into start/stop scan sessions with exactly-once delivery.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/pixel-scan-go/domain/camera"
	"github.com/soocke/pixel-scan-go/domain/geometry"
	"github.com/soocke/pixel-scan-go/domain/permission"
	"github.com/soocke/pixel-scan-go/domain/scan"
)

// Config is applied to every session started after it is set.
type Config struct {
	Decoder     scan.DecoderConfig
	Constraints camera.Constraints
}

// Options wires a Controller. Token is required; everything else has a default.
type Options struct {
	Token  *camera.Token
	Gate   *permission.Gate
	Engine Engine
	// Layout gates geometry measurement. Defaults to DefaultSettleDelay when
	// Measurer is set, otherwise no wait.
	Layout   LayoutWaiter
	Measurer Measurer
	Config   Config
	// OnScanComplete receives each session's code once, after the engine has
	// stopped and the camera is released.
	OnScanComplete func(code string)
	// OnError receives *ScanError values for denied or failed sessions.
	OnError func(err error)
	Logger  *slog.Logger
}

// Controller runs at most one scan session at a time. All methods are safe
// for concurrent use.
type Controller struct {
	token      *camera.Token
	gate       *permission.Gate
	engine     Engine
	layout     LayoutWaiter
	measurer   Measurer
	onComplete func(string)
	onError    func(error)
	logger     *slog.Logger

	mu        sync.Mutex
	cfg       Config
	state     State
	session   *ScanSession
	lastErr   error
	gen       uint64
	cancel    context.CancelFunc
	handle    Handle
	disposed  bool
	listeners []Listener
}

// NewController returns an idle controller.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Controller{
		token:      opts.Token,
		gate:       opts.Gate,
		engine:     opts.Engine,
		layout:     opts.Layout,
		measurer:   opts.Measurer,
		onComplete: opts.OnScanComplete,
		onError:    opts.OnError,
		logger:     logger,
		cfg:        opts.Config,
		state:      StateIdle,
	}
	if c.gate == nil {
		c.gate = permission.NewGate(opts.Token, opts.Config.Constraints, logger)
	}
	if c.engine == nil {
		c.engine = ScanEngine(scan.NewEngine(nil, logger))
	}
	if c.layout == nil && c.measurer != nil {
		c.layout = SettleDelay(DefaultSettleDelay)
	}
	return c
}

// AddListener registers l for transitions.
func (c *Controller) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the observable status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return statusFor(c.state, c.lastErr)
}

// Err returns the error reported for the latest session, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns a copy of the current or most recent session.
func (c *Controller) Snapshot() (ScanSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ScanSession{}, false
	}
	s := *c.session
	if s.Geometry != nil {
		g := *s.Geometry
		s.Geometry = &g
	}
	return s, true
}

// Permission returns the gate's cached status.
func (c *Controller) Permission() permission.Status { return c.gate.Status() }

// SetConfig replaces the config used by subsequent sessions.
func (c *Controller) SetConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.gate.SetConstraints(cfg.Constraints)
}

// LatestFrame returns the running handle's latest frame.
func (c *Controller) LatestFrame() scan.FrameSnapshot {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return scan.FrameSnapshot{}
	}
	return h.LatestFrame()
}

// Stats returns the running handle's counters.
func (c *Controller) Stats() (scan.Stats, bool) {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return scan.Stats{}, false
	}
	return h.Stats(), true
}

// Start begins a new session. It is a no-op while a session is in flight and
// returns ErrDisposed after Dispose.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	if c.state.Active() {
		return nil
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.lastErr = nil
	perm := c.gate.Status()
	c.session = &ScanSession{
		ID:            uuid.NewString(),
		Permission:    perm,
		DecoderConfig: c.cfg.Decoder,
		StartedAt:     time.Now(),
	}
	if perm == permission.Granted {
		c.transitionLocked(StateInitializing, "", nil)
		go c.initialize(ctx, gen)
	} else {
		c.transitionLocked(StateRequestingPermission, "", nil)
		go c.requestPermission(ctx, gen)
	}
	return nil
}

// RequestPermission forces a fresh permission probe. A grant moves a denied
// controller back to idle. While a session is in flight the cached status is
// returned without probing.
func (c *Controller) RequestPermission(ctx context.Context) permission.Status {
	c.mu.Lock()
	if c.disposed || c.state.Active() {
		c.mu.Unlock()
		return c.gate.Status()
	}
	c.mu.Unlock()

	status := c.gate.Request(ctx, true)

	c.mu.Lock()
	defer c.mu.Unlock()
	if status == permission.Granted && c.state == StatePermissionDenied {
		c.lastErr = nil
		if c.session != nil {
			c.session.Permission = status
		}
		c.transitionLocked(StateIdle, "", nil)
	}
	return status
}

func (c *Controller) requestPermission(ctx context.Context, gen uint64) {
	defer recoverLog(c.logger, "permission goroutine panic")
	status := c.gate.Request(ctx, false)

	c.mu.Lock()
	if !c.liveLocked(gen) || c.state != StateRequestingPermission {
		c.mu.Unlock()
		c.logger.Debug("stale permission result discarded", "status", status.String())
		return
	}
	c.session.Permission = status
	switch status {
	case permission.Granted:
		c.transitionLocked(StateInitializing, "", nil)
		c.mu.Unlock()
		c.initialize(ctx, gen)
	case permission.Denied:
		err := &ScanError{Kind: KindPermissionDenied, SessionID: c.session.ID}
		c.lastErr = err
		c.transitionLocked(StatePermissionDenied, "", err)
		c.cancelLocked()
		c.mu.Unlock()
		c.report(err)
	default:
		c.mu.Unlock()
	}
}

func (c *Controller) initialize(ctx context.Context, gen uint64) {
	defer recoverLog(c.logger, "initialize goroutine panic")
	if c.layout != nil {
		if err := c.layout.WaitLayout(ctx); err != nil {
			c.logger.Debug("layout wait abandoned", "error", err)
			return
		}
	}
	var region *geometry.Rect
	if c.measurer != nil {
		container, overlay := c.measurer.Measure()
		region = geometry.ComputeRect(container, overlay)
	}

	c.mu.Lock()
	if !c.liveLocked(gen) {
		c.mu.Unlock()
		return
	}
	c.session.Geometry = region
	cfg := c.cfg
	c.mu.Unlock()

	if c.token == nil {
		c.initFailed(gen, camera.ErrNoDevice)
		return
	}
	lease, err := c.token.Acquire(ctx)
	if err != nil {
		c.initFailed(gen, err)
		return
	}
	h, err := c.engine.Initialize(ctx, lease, scan.Options{Config: cfg.Decoder, Constraints: cfg.Constraints, Region: region})
	if err != nil {
		lease.Release()
		c.initFailed(gen, err)
		return
	}

	c.mu.Lock()
	if !c.liveLocked(gen) {
		c.mu.Unlock()
		c.safeStop(h)
		c.logger.Debug("stale engine handle released")
		return
	}
	if err := h.Start(); err != nil {
		c.mu.Unlock()
		c.safeStop(h)
		c.initFailed(gen, err)
		return
	}
	c.handle = h
	c.transitionLocked(StateScanning, "", nil)
	c.mu.Unlock()

	c.awaitDetection(ctx, gen, h)
}

func (c *Controller) initFailed(gen uint64, cause error) {
	c.mu.Lock()
	if !c.liveLocked(gen) {
		c.mu.Unlock()
		c.logger.Debug("stale initialization error discarded", "error", cause)
		return
	}
	err := &ScanError{Kind: KindDeviceUnavailable, SessionID: c.session.ID, Err: cause}
	c.lastErr = err
	c.transitionLocked(StateIdle, "", err)
	c.cancelLocked()
	c.mu.Unlock()
	c.report(err)
}

// awaitDetection waits on the handle's future. The engine is stopped before
// the code is forwarded so the callback observes a released camera.
func (c *Controller) awaitDetection(ctx context.Context, gen uint64, h Handle) {
	var d scan.Detection
	select {
	case det, ok := <-h.Detection():
		if !ok {
			return
		}
		d = det
	case <-ctx.Done():
		return
	}

	c.mu.Lock()
	if !c.liveLocked(gen) || c.state != StateScanning || c.handle != h {
		c.mu.Unlock()
		return
	}
	c.handle = nil
	c.safeStop(h)
	c.session.DetectedCode = d.Code
	c.transitionLocked(StateDetected, d.Code, nil)
	c.cancelLocked()
	cb := c.onComplete
	c.mu.Unlock()

	if cb != nil {
		func() {
			defer recoverLog(c.logger, "scan complete callback panic")
			cb(d.Code)
		}()
	}
}

func (c *Controller) liveLocked(gen uint64) bool {
	return !c.disposed && gen == c.gen
}

func (c *Controller) cancelLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) transitionLocked(next State, code string, err error) {
	prev := c.state
	if prev == next && err == nil {
		return
	}
	c.state = next
	t := Transition{From: prev, To: next, Status: statusFor(next, c.lastErr), Code: code, Err: err, At: time.Now()}
	if c.session != nil {
		c.session.State = next
		t.SessionID = c.session.ID
	}
	attrs := []any{"from", prev.String(), "to", next.String(), "session", t.SessionID}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	c.logger.Info("session transition", attrs...)
	for _, l := range c.listeners {
		func() {
			defer recoverLog(c.logger, "session listener panic")
			l(t)
		}()
	}
}

func (c *Controller) report(err error) {
	if c.onError == nil {
		return
	}
	defer recoverLog(c.logger, "session error callback panic")
	c.onError(err)
}

func recoverLog(logger *slog.Logger, msg string) {
	if r := recover(); r != nil {
		if logger != nil {
			logger.Error(msg, "error", r)
		}
	}
}
