package presenter

import (
	"time"

	"github.com/soocke/pixel-scan-go/domain/session"
	"github.com/soocke/pixel-scan-go/ui/model"
)

// StateSource reports the controller state.
type StateSource interface{ State() session.State }

// SessionView displays scan timing.
type SessionView interface {
	SetSession(current, total time.Duration, sessions int)
}

// SessionPresenter formats scan durations from the model to the view.
type SessionPresenter struct {
	sess *model.SessionModel
	src  StateSource
	view SessionView
}

// NewSessionPresenter returns a new SessionPresenter.
func NewSessionPresenter(sess *model.SessionModel, src StateSource, view SessionView) *SessionPresenter {
	return &SessionPresenter{sess: sess, src: src, view: view}
}

// Tick advances the session model and pushes values to the view.
func (p *SessionPresenter) Tick(now time.Time) {
	if p == nil || p.sess == nil || p.src == nil || p.view == nil {
		return
	}
	p.sess.OnTick(p.src.State().Active(), now)
	cur, total, n := p.sess.Values()
	p.view.SetSession(cur, total, n)
}
