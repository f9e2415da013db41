package session

import (
	"context"

	"github.com/soocke/pixel-scan-go/domain/camera"
	"github.com/soocke/pixel-scan-go/domain/scan"
)

// Engine initializes decode handles on a leased camera. On success the handle
// owns the lease.
type Engine interface {
	Initialize(ctx context.Context, lease *camera.Lease, opts scan.Options) (Handle, error)
}

// Handle is the controller's view of a running decode session.
type Handle interface {
	Start() error
	Stop()
	Detection() <-chan scan.Detection
	LatestFrame() scan.FrameSnapshot
	Stats() scan.Stats
}

// ScanEngine adapts a scan.Engine to Engine.
func ScanEngine(e *scan.Engine) Engine { return scanEngine{e: e} }

type scanEngine struct{ e *scan.Engine }

func (s scanEngine) Initialize(ctx context.Context, lease *camera.Lease, opts scan.Options) (Handle, error) {
	h, err := s.e.Initialize(ctx, lease, opts)
	if err != nil {
		return nil, err
	}
	return h, nil
}
