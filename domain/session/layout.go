package session

import (
	"context"
	"time"

	"github.com/soocke/pixel-scan-go/domain/geometry"
)

// DefaultSettleDelay is used when the host has no layout-committed signal.
const DefaultSettleDelay = 300 * time.Millisecond

// LayoutWaiter blocks until the host layout is stable enough to measure.
type LayoutWaiter interface {
	WaitLayout(ctx context.Context) error
}

// Measurer reports the absolute bounds of the video container and the
// viewfinder overlay. Either may be nil while the host is not mounted.
type Measurer interface {
	Measure() (container, overlay *geometry.Bounds)
}

// SettleDelay waits a fixed duration.
type SettleDelay time.Duration

func (d SettleDelay) WaitLayout(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(d))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func() (container, overlay *geometry.Bounds)

func (f MeasureFunc) Measure() (container, overlay *geometry.Bounds) { return f() }

// Sequence runs each waiter in order, e.g. a layout signal followed by a
// settle delay.
type Sequence []LayoutWaiter

func (s Sequence) WaitLayout(ctx context.Context) error {
	for _, w := range s {
		if w == nil {
			continue
		}
		if err := w.WaitLayout(ctx); err != nil {
			return err
		}
	}
	return nil
}
