package presenter

import (
	"errors"
	"sync"
	"time"

	"github.com/soocke/pixel-scan-go/domain/session"
)

// StateView shows the session status and the latest result.
type StateView interface {
	SetStateLabel(string)
	SetResult(code string)
	ShowMessage(string)
}

// StatePresenter receives session transitions from the controller listener
// and reflects them on the next UI tick.
type StatePresenter struct {
	view StateView

	mu      sync.Mutex
	pending []session.Transition

	latest session.Status // last reflected status
}

func NewStatePresenter(view StateView) *StatePresenter {
	return &StatePresenter{view: view}
}

// OnTransition queues t. It runs under the controller lock and only appends.
func (p *StatePresenter) OnTransition(t session.Transition) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, t)
	p.mu.Unlock()
}

// Tick flushes queued transitions to the view.
func (p *StatePresenter) Tick(now time.Time) {
	if p == nil || p.view == nil {
		return
	}
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	for _, t := range batch {
		if t.Code != "" {
			p.view.SetResult(t.Code)
		}
		if t.Err != nil {
			p.view.ShowMessage(errorMessage(t.Err))
		}
	}
	last := batch[len(batch)-1].Status
	if last != p.latest {
		p.latest = last
		p.view.SetStateLabel("State: " + string(last))
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrPermissionDenied):
		return "Camera access denied. Use Retry Permission to try again."
	case errors.Is(err, session.ErrDeviceUnavailable):
		var se *session.ScanError
		if errors.As(err, &se) && se.Err != nil {
			return "Camera unavailable: " + se.Err.Error()
		}
		return "Camera unavailable"
	default:
		return err.Error()
	}
}
