package model

import (
	"sync"
	"sync/atomic"
	"time"
)

// ScanModel tracks whether the user has scanning switched on and the last
// decoded result. The zero value is disabled and usable.
// Concurrency-safe because the scan-complete callback runs off the UI thread.
type ScanModel struct {
	enabled atomic.Bool

	mu       sync.Mutex
	lastCode string
	lastAt   time.Time
	count    int
}

// Enabled reports whether scanning is currently enabled.
func (m *ScanModel) Enabled() bool {
	if m == nil {
		return false
	}
	return m.enabled.Load()
}

// SetEnabled stores the enabled flag.
func (m *ScanModel) SetEnabled(b bool) {
	if m == nil {
		return
	}
	m.enabled.Store(b)
}

// RecordResult stores a decoded code and disables scanning; a completed
// session needs a new start.
func (m *ScanModel) RecordResult(code string, at time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.lastCode, m.lastAt = code, at
	m.count++
	m.mu.Unlock()
	m.enabled.Store(false)
}

// Result returns the last code, when it was decoded and how many codes were
// decoded so far.
func (m *ScanModel) Result() (code string, at time.Time, count int) {
	if m == nil {
		return "", time.Time{}, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCode, m.lastAt, m.count
}
