package presenter

import "time"

// Loop aggregates feature presenters and drives periodic updates on the UI
// thread. The zero value is usable (methods are nil-safe).
type Loop struct {
	Scan     *ScanPresenter
	Session  *SessionPresenter
	State    *StatePresenter
	Preview  *PreviewPresenter
	Schedule func()
}

func NewLoop(scan *ScanPresenter, sess *SessionPresenter, state *StatePresenter, preview *PreviewPresenter, schedule func()) *Loop {
	return &Loop{Scan: scan, Session: sess, State: state, Preview: preview, Schedule: schedule}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	now := time.Now()
	if l.State != nil {
		l.State.Tick(now)
	}
	if l.Scan != nil {
		l.Scan.Tick()
	}
	if l.Session != nil {
		l.Session.Tick(now)
	}
	if l.Preview != nil {
		l.Preview.Tick()
	}
	if l.Schedule != nil {
		l.Schedule()
	}
}
