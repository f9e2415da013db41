package presenter

import (
	"errors"
	"testing"
	"time"

	"github.com/soocke/pixel-scan-go/domain/session"
	"github.com/stretchr/testify/assert"
)

type mockStateView struct {
	labels   []string
	results  []string
	messages []string
}

func (v *mockStateView) SetStateLabel(s string) { v.labels = append(v.labels, s) }
func (v *mockStateView) SetResult(code string)  { v.results = append(v.results, code) }
func (v *mockStateView) ShowMessage(s string)   { v.messages = append(v.messages, s) }

func TestStatePresenter_FlushesOnTick(t *testing.T) {
	view := &mockStateView{}
	p := NewStatePresenter(view)

	p.OnTransition(session.Transition{From: session.StateIdle, To: session.StateRequestingPermission, Status: session.StatusRequestingPermission})
	p.OnTransition(session.Transition{From: session.StateRequestingPermission, To: session.StateInitializing, Status: session.StatusScanning})
	assert.Empty(t, view.labels, "nothing reaches the view before Tick")

	p.Tick(time.Now())
	assert.Equal(t, []string{"State: scanning"}, view.labels)

	p.OnTransition(session.Transition{From: session.StateInitializing, To: session.StateScanning, Status: session.StatusScanning})
	p.Tick(time.Now())
	assert.Len(t, view.labels, 1, "unchanged status is not re-rendered")

	p.OnTransition(session.Transition{From: session.StateScanning, To: session.StateDetected, Status: session.StatusIdle, Code: "4006381333931"})
	p.Tick(time.Now())
	assert.Equal(t, []string{"4006381333931"}, view.results)
	assert.Equal(t, "State: idle", view.labels[len(view.labels)-1])
}

func TestStatePresenter_ErrorMessages(t *testing.T) {
	view := &mockStateView{}
	p := NewStatePresenter(view)

	denied := &session.ScanError{Kind: session.KindPermissionDenied}
	unavailable := &session.ScanError{Kind: session.KindDeviceUnavailable, Err: errors.New("no camera")}
	p.OnTransition(session.Transition{To: session.StatePermissionDenied, Status: session.StatusPermissionDenied, Err: denied})
	p.OnTransition(session.Transition{To: session.StateIdle, Status: session.StatusError, Err: unavailable})
	p.OnTransition(session.Transition{To: session.StateIdle, Status: session.StatusError, Err: errors.New("boom")})
	p.Tick(time.Now())

	assert.Equal(t, []string{
		"Camera access denied. Use Retry Permission to try again.",
		"Camera unavailable: no camera",
		"boom",
	}, view.messages)
	assert.Equal(t, []string{"State: error"}, view.labels)
}

func TestStatePresenter_NilSafe(t *testing.T) {
	var p *StatePresenter
	p.OnTransition(session.Transition{})
	p.Tick(time.Now())
}
