package view

import (
	"fmt"
	"time"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// SessionStats shows how long the current and all scans ran.
type SessionStats interface {
	SetSession(d time.Duration)
	SetTotal(d time.Duration)
	SetScans(n int)
}

type sessionStats struct {
	sessionLbl *LabelWidget
	totalLbl   *LabelWidget
	scansLbl   *LabelWidget
	lastScans  int
}

// NewSessionStats creates the duration and counter labels in parent starting
// at (row, startCol).
func NewSessionStats(parent *FrameWidget, row, startCol int) SessionStats {
	s := &sessionStats{sessionLbl: Label(Width(14)), totalLbl: Label(Width(14)), scansLbl: Label(Width(10)), lastScans: -1}
	for i, lbl := range []*LabelWidget{s.sessionLbl, s.totalLbl, s.scansLbl} {
		if parent != nil {
			Grid(lbl, In(parent), Row(row), Column(startCol+i), Sticky("w"), Padx("0.2m"))
		} else {
			Grid(lbl, Row(row), Column(startCol+i), Sticky("w"), Padx("0.2m"))
		}
	}
	s.sessionLbl.Configure(Txt("Scan: 00:00"))
	s.totalLbl.Configure(Txt("Total: 00:00"))
	s.SetScans(0)
	return s
}

func (s *sessionStats) SetSession(d time.Duration) {
	if s == nil || s.sessionLbl == nil {
		return
	}
	s.sessionLbl.Configure(Txt("Scan: " + formatClock(d)))
}

func (s *sessionStats) SetTotal(d time.Duration) {
	if s == nil || s.totalLbl == nil {
		return
	}
	s.totalLbl.Configure(Txt("Total: " + formatClock(d)))
}

func (s *sessionStats) SetScans(n int) {
	if s == nil || s.scansLbl == nil || n == s.lastScans {
		return
	}
	s.lastScans = n
	s.scansLbl.Configure(Txt(fmt.Sprintf("Scans: %d", n)))
}

func formatClock(d time.Duration) string {
	seconds := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
