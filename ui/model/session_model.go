package model

import (
	"time"
)

// SessionModel tracks how long the current scan has been running and the
// accumulated scanning time. Presenters poll Values() from the UI tick.
// The zero value is ready to use.
type SessionModel struct {
	active       bool
	scanStart    time.Time
	lastDuration time.Duration
	accumulated  time.Duration
	sessions     int
}

// NewSessionModel returns a pointer to a ready-to-use SessionModel.
func NewSessionModel() *SessionModel { return &SessionModel{} }

// OnTick updates the model from the current scanning state.
func (m *SessionModel) OnTick(scanning bool, now time.Time) {
	if m == nil {
		return
	}
	if scanning {
		if !m.active {
			m.active = true
			m.scanStart = now
			m.sessions++
		}
		m.lastDuration = now.Sub(m.scanStart)
	} else if m.active {
		m.lastDuration = now.Sub(m.scanStart)
		m.accumulated += m.lastDuration
		m.active = false
	}
}

// Values returns the current scan duration, the total including the running
// scan and the number of scans started.
func (m *SessionModel) Values() (current, total time.Duration, sessions int) {
	if m == nil {
		return 0, 0, 0
	}
	current = m.lastDuration
	total = m.accumulated
	if m.active {
		total += current
	}
	return current, total, m.sessions
}
