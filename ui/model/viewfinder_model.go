package model

import (
	"context"
	"sync"
	"time"

	"github.com/soocke/pixel-scan-go/domain/geometry"
)

// ViewfinderModel holds the last measured preview container and viewfinder
// overlay bounds. The first measurement after Reset is the layout-committed
// signal that session initialization waits for.
type ViewfinderModel struct {
	// waits give up after timeout; zero waits until measured or ctx ends
	timeout time.Duration

	mu        sync.Mutex
	container *geometry.Bounds
	overlay   *geometry.Bounds
	ready     chan struct{}
	readyDone bool
}

// NewViewfinderModel returns a model whose WaitLayout returns nil after
// layoutTimeout even if the preview was never measured, leaving Measure empty
// so the session decodes the full frame.
func NewViewfinderModel(layoutTimeout time.Duration) *ViewfinderModel {
	return &ViewfinderModel{timeout: layoutTimeout, ready: make(chan struct{})}
}

// Set records a measurement. Zero-sized containers are ignored since an
// unmapped widget reports no size.
func (m *ViewfinderModel) Set(container, overlay geometry.Bounds) {
	if m == nil || container.Width <= 1 || container.Height <= 1 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.container, m.overlay = &container, &overlay
	if !m.readyDone {
		m.readyDone = true
		close(m.ready)
	}
}

// Reset forgets the layout, e.g. when the preview is hidden.
func (m *ViewfinderModel) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.container, m.overlay = nil, nil
	if m.readyDone {
		m.ready = make(chan struct{})
		m.readyDone = false
	}
}

// Measure returns copies of the last bounds, nil when not laid out.
func (m *ViewfinderModel) Measure() (container, overlay *geometry.Bounds) {
	if m == nil {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.container == nil || m.overlay == nil {
		return nil, nil
	}
	c, o := *m.container, *m.overlay
	return &c, &o
}

// WaitLayout blocks until a measurement is recorded, the layout timeout
// passes or ctx ends.
func (m *ViewfinderModel) WaitLayout(ctx context.Context) error {
	if m == nil {
		return ctx.Err()
	}
	m.mu.Lock()
	ready := m.ready
	m.mu.Unlock()
	var expired <-chan time.Time
	if m.timeout > 0 {
		t := time.NewTimer(m.timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-ready:
		return nil
	case <-expired:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
