package scan

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/pixel-scan-go/domain/camera"
	"github.com/soocke/pixel-scan-go/domain/geometry"
	"github.com/soocke/pixel-scan-go/imaging"
)

const statsLogInterval = 5 * time.Second

// Engine opens decode handles on leased camera streams.
type Engine struct {
	decoder Decoder
	logger  *slog.Logger
}

// NewEngine returns an engine decoding with decoder. A nil decoder selects
// ZXingDecoder.
func NewEngine(decoder Decoder, logger *slog.Logger) *Engine {
	if decoder == nil {
		decoder = ZXingDecoder{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{decoder: decoder, logger: logger}
}

// Initialize opens the lease's stream and prepares a handle. Decoding does
// not begin until Handle.Start. On success the handle owns the lease and
// releases it on Stop; on error the caller still owns it.
func (e *Engine) Initialize(ctx context.Context, lease *camera.Lease, opts Options) (*Handle, error) {
	if lease == nil {
		return nil, camera.ErrLeaseReleased
	}
	cfg := opts.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Region != nil && !opts.Region.Valid() {
		e.logger.Warn("scan region degenerate, decoding full frame", "region", opts.Region.String())
	}
	stream, err := lease.Open(ctx, opts.Constraints)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		_ = stream.Close()
		return nil, err
	}
	h := &Handle{
		cfg:     cfg,
		region:  opts.Region,
		decoder: e.decoder,
		logger:  e.logger.With("lease", lease.ID()),
		lease:   lease,
		stream:  stream,
		workCh:  make(chan task, cfg.WorkerCount),
		detect:  make(chan Detection, 1),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.logger.Info("scan engine initialized",
		"symbologies", cfg.Symbologies,
		"workers", cfg.WorkerCount,
		"frequency_hz", cfg.FrequencyHz,
		"region", regionString(opts.Region))
	return h, nil
}

func regionString(r *geometry.Rect) string {
	if r == nil {
		return "full"
	}
	return r.String()
}

type task struct {
	img *image.RGBA
	seq uint64
}

// Handle is one running decode session. The first decoded payload resolves
// the Detection future; later payloads are counted and dropped.
type Handle struct {
	cfg     DecoderConfig
	region  *geometry.Rect
	decoder Decoder
	logger  *slog.Logger
	lease   *camera.Lease
	stream  camera.Stream

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	workCh chan task

	mu       sync.Mutex
	started  bool
	stopping bool
	stopped  bool
	resolved bool
	detect   chan Detection
	stopOnce sync.Once

	latest      atomic.Pointer[FrameSnapshot]
	sequence    atomic.Uint64
	captures    atomic.Uint64
	skipped     atomic.Uint64
	dropped     atomic.Uint64
	decodes     atomic.Uint64
	decodeNanos atomic.Uint64
	detections  atomic.Uint64
	suppressed  atomic.Uint64
}

// Start launches the capture loop and the decode workers. Calling it again
// is a no-op; calling it after Stop returns ErrHandleStopped.
func (h *Handle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopping {
		return ErrHandleStopped
	}
	if h.started {
		return nil
	}
	h.started = true
	h.wg.Add(1 + h.cfg.WorkerCount)
	go h.captureLoop()
	for i := 0; i < h.cfg.WorkerCount; i++ {
		go h.worker(i)
	}
	return nil
}

// Stop halts capture and decoding, closes the stream and releases the lease.
// It blocks until every goroutine has exited and is safe to call repeatedly.
// The Detection channel is closed afterwards.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.stopping = true
		h.mu.Unlock()

		h.cancel()
		h.wg.Wait()
		for {
			select {
			case t := <-h.workCh:
				recycleFrame(t.img)
				continue
			default:
			}
			break
		}
		if err := h.stream.Close(); err != nil {
			h.logger.Warn("scan stream close", "error", err)
		}
		h.lease.Release()

		h.mu.Lock()
		h.stopped = true
		close(h.detect)
		h.mu.Unlock()
		h.logStats("scan engine stopped")
	})
}

// Stopped reports whether Stop has completed.
func (h *Handle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Detection returns the one-shot future. It yields at most one value and is
// closed once the handle stops. Use either Detection or OnDetect, not both.
func (h *Handle) Detection() <-chan Detection { return h.detect }

// OnDetect invokes fn with the first detection on its own goroutine. fn is
// not called if the handle stops first.
func (h *Handle) OnDetect(fn func(Detection)) {
	go func() {
		if d, ok := <-h.detect; ok {
			fn(d)
		}
	}()
}

// LatestFrame returns the most recent captured frame.
func (h *Handle) LatestFrame() FrameSnapshot {
	snap := h.latest.Load()
	if snap == nil {
		return FrameSnapshot{}
	}
	return *snap
}

// Stats returns counters for the handle's lifetime so far.
func (h *Handle) Stats() Stats {
	decodes := h.decodes.Load()
	var avg time.Duration
	if total := h.decodeNanos.Load(); decodes > 0 && total > 0 {
		avg = time.Duration(total / decodes)
	}
	snap := h.LatestFrame()
	var age time.Duration
	if !snap.CapturedAt.IsZero() {
		age = time.Since(snap.CapturedAt)
	}
	return Stats{
		Captures:   h.captures.Load(),
		Skipped:    h.skipped.Load(),
		Dropped:    h.dropped.Load(),
		Decodes:    decodes,
		Detections: h.detections.Load(),
		Suppressed: h.suppressed.Load(),
		AvgDecode:  avg,
		LastFrame:  snap.CapturedAt,
		FrameAge:   age,
	}
}

func (h *Handle) captureLoop() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.cfg.Interval())
	defer ticker.Stop()
	logTicker := time.NewTicker(statsLogInterval)
	defer logTicker.Stop()
	h.captureOnce()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-logTicker.C:
			h.logStats("scan engine stats")
		case <-ticker.C:
			h.captureOnce()
		}
	}
}

func (h *Handle) captureOnce() {
	if h.isResolved() {
		return
	}
	frame, err := h.stream.Frame(h.ctx)
	if err != nil {
		if h.ctx.Err() == nil {
			h.skipped.Add(1)
			h.logger.Debug("scan frame", "error", err)
		}
		return
	}
	if frame == nil {
		h.skipped.Add(1)
		return
	}
	h.captures.Add(1)
	seq := h.sequence.Add(1)
	region := h.region.Region(frame.Bounds())
	h.latest.Store(&FrameSnapshot{Image: frame, Region: region, CapturedAt: time.Now(), Sequence: seq})

	crop, err := imaging.Crop(acquireFrame(), frame, region)
	if err != nil {
		h.skipped.Add(1)
		return
	}
	h.dispatch(task{img: crop, seq: seq})
}

// dispatch queues t, replacing the oldest queued frame when workers lag.
func (h *Handle) dispatch(t task) {
	for {
		select {
		case h.workCh <- t:
			return
		default:
		}
		select {
		case old := <-h.workCh:
			h.dropped.Add(1)
			recycleFrame(old.img)
		default:
		}
		if h.ctx.Err() != nil {
			recycleFrame(t.img)
			return
		}
	}
}

func (h *Handle) worker(id int) {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case t := <-h.workCh:
			h.decode(id, t)
		}
	}
}

func (h *Handle) decode(id int, t task) {
	defer recycleFrame(t.img)
	if h.isResolved() {
		return
	}
	start := time.Now()
	results, err := h.safeDecode(t.img)
	h.decodeNanos.Add(uint64(time.Since(start).Nanoseconds()))
	h.decodes.Add(1)
	if err != nil {
		h.logger.Debug("scan decode", "worker", id, "seq", t.seq, "error", err)
		return
	}
	for _, r := range results {
		h.resolve(Detection{Code: r.Text, Format: r.Format, Timestamp: time.Now(), Sequence: t.seq})
	}
}

func (h *Handle) safeDecode(img *image.RGBA) (results []Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("decoder panic", "panic", r)
			results, err = nil, nil
		}
	}()
	return h.decoder.Decode(img, h.cfg.Symbologies, h.cfg.Multiple)
}

// resolve completes the future with d unless it already holds a value or the
// handle is stopping.
func (h *Handle) resolve(d Detection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.resolved || h.stopping {
		h.suppressed.Add(1)
		return false
	}
	h.resolved = true
	h.detections.Add(1)
	h.detect <- d
	h.logger.Info("barcode detected", "format", d.Format, "seq", d.Sequence)
	return true
}

func (h *Handle) isResolved() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resolved
}

func (h *Handle) logStats(msg string) {
	s := h.Stats()
	h.logger.Info(msg,
		"captures", s.Captures,
		"skipped", s.Skipped,
		"dropped", s.Dropped,
		"decodes", s.Decodes,
		"detections", s.Detections,
		"suppressed", s.Suppressed,
		"avg_decode_ms", float64(s.AvgDecode)/float64(time.Millisecond))
}
