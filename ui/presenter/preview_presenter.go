package presenter

import (
	"image"
	"log/slog"
	"sync"

	"github.com/soocke/pixel-scan-go/domain/geometry"
	"github.com/soocke/pixel-scan-go/domain/scan"
	"github.com/soocke/pixel-scan-go/imaging"
)

// FrameSource supplies the most recent frame of the running scan.
type FrameSource interface {
	LatestFrame() scan.FrameSnapshot
}

// PreviewView shows the live preview and reports the laid-out viewfinder.
type PreviewView interface {
	UpdatePreview(img image.Image)
	UpdateRegion(img image.Image)
	// MeasureViewfinder returns the preview container and overlay bounds;
	// ok is false while the widgets are not mapped.
	MeasureViewfinder() (container, overlay geometry.Bounds, ok bool)
}

// LayoutSink receives viewfinder measurements.
type LayoutSink interface {
	Set(container, overlay geometry.Bounds)
}

const (
	maxPreviewW = 400
	maxPreviewH = 300
	maxRegionW  = 200
	maxRegionH  = 120
)

type previewTask struct {
	snapshot scan.FrameSnapshot
}

type previewResult struct {
	sequence uint64
	preview  image.Image
	region   image.Image
}

// PreviewPresenter measures the viewfinder every tick and, while scanning,
// renders the latest frame off the UI thread.
type PreviewPresenter struct {
	Enabled func() bool
	Source  FrameSource
	View    PreviewView
	Layout  LayoutSink
	logger  *slog.Logger

	workerOnce sync.Once
	closeOnce  sync.Once
	workCh     chan previewTask
	resultCh   chan previewResult

	lastSeq      uint64
	lastMeasured geometry.Bounds
}

// NewPreviewPresenter constructs a preview presenter.
func NewPreviewPresenter(enabled func() bool, source FrameSource, view PreviewView, layout LayoutSink, logger *slog.Logger) *PreviewPresenter {
	return &PreviewPresenter{
		Enabled:  enabled,
		Source:   source,
		View:     view,
		Layout:   layout,
		logger:   logger,
		workCh:   make(chan previewTask, 1),
		resultCh: make(chan previewResult, 1),
	}
}

// Tick runs on the UI thread.
func (p *PreviewPresenter) Tick() {
	if p == nil || p.View == nil {
		return
	}
	p.measure()

	select {
	case res := <-p.resultCh:
		if res.preview != nil {
			p.View.UpdatePreview(res.preview)
		}
		if res.region != nil {
			p.View.UpdateRegion(res.region)
		}
	default:
	}

	if p.Enabled == nil || !p.Enabled() || p.Source == nil {
		return
	}
	snap := p.Source.LatestFrame()
	if snap.Image == nil || snap.Sequence == 0 || snap.Sequence == p.lastSeq {
		return
	}
	p.lastSeq = snap.Sequence
	p.ensureWorker()
	p.dispatch(previewTask{snapshot: snap})
}

func (p *PreviewPresenter) measure() {
	if p.Layout == nil {
		return
	}
	container, overlay, ok := p.View.MeasureViewfinder()
	if !ok {
		return
	}
	p.Layout.Set(container, overlay)
	if container != p.lastMeasured && p.logger != nil {
		p.logger.Debug("viewfinder measured", "container_w", container.Width, "container_h", container.Height)
	}
	p.lastMeasured = container
}

// Close stops the render worker. Tick must not be called afterwards.
func (p *PreviewPresenter) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() { close(p.workCh) })
}

func (p *PreviewPresenter) ensureWorker() {
	p.workerOnce.Do(func() { go p.runWorker() })
}

func (p *PreviewPresenter) runWorker() {
	defer func() {
		if r := recover(); r != nil && p.logger != nil {
			p.logger.Error("preview worker panic", "error", r)
		}
	}()
	for task := range p.workCh {
		res := render(task)
		select {
		case p.resultCh <- res:
		default:
			select {
			case <-p.resultCh:
			default:
			}
			select {
			case p.resultCh <- res:
			default:
			}
		}
	}
}

func (p *PreviewPresenter) dispatch(task previewTask) {
	select {
	case p.workCh <- task:
	default:
		select {
		case <-p.workCh:
		default:
		}
		select {
		case p.workCh <- task:
		default:
		}
	}
}

func render(task previewTask) previewResult {
	snap := task.snapshot
	res := previewResult{sequence: snap.Sequence, preview: imaging.ScaleToFit(snap.Image, maxPreviewW, maxPreviewH)}
	if !snap.Region.Empty() && snap.Region != snap.Image.Bounds() {
		if crop, err := imaging.Crop(nil, snap.Image, snap.Region); err == nil {
			res.region = imaging.ScaleToFit(crop, maxRegionW, maxRegionH)
		}
	}
	return res
}
