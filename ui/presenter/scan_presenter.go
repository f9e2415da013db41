package presenter

import (
	"github.com/soocke/pixel-scan-go/domain/session"
)

// ActionScan is the action checked with the Authorizer before a scan starts.
const ActionScan = "scan"

// Authorizer decides whether the user may perform an action (quota, login).
type Authorizer interface {
	IsAuthorized(action string) bool
}

// AllowAll authorizes everything.
type AllowAll struct{}

func (AllowAll) IsAuthorized(string) bool { return true }

// ScanModel provides enabled state access.
type ScanModel interface {
	Enabled() bool
	SetEnabled(bool)
}

// ScanController is the subset of the session controller the presenter drives.
type ScanController interface {
	Start() error
	Stop()
	State() session.State
}

// ScanView updates UI elements affected by scan toggling.
type ScanView interface {
	PreviewReset()
	ConfigEditable(bool)
	ShowMessage(string)
}

// ScanPresenter owns presentation logic for starting and stopping scans.
type ScanPresenter struct {
	model  ScanModel
	ctrl   ScanController
	auth   Authorizer
	view   ScanView
	locked bool // config panel disabled while a scan runs
}

func NewScanPresenter(model ScanModel, ctrl ScanController, auth Authorizer, view ScanView) *ScanPresenter {
	if auth == nil {
		auth = AllowAll{}
	}
	return &ScanPresenter{model: model, ctrl: ctrl, auth: auth, view: view}
}

// Enable starts a scan session after the authorization check. Idempotent.
func (p *ScanPresenter) Enable() {
	if p == nil || p.model == nil || p.ctrl == nil || p.view == nil {
		return
	}
	if p.model.Enabled() {
		return
	}
	if !p.auth.IsAuthorized(ActionScan) {
		p.view.ShowMessage("Scanning is not available for this account")
		return
	}
	if err := p.ctrl.Start(); err != nil {
		p.view.ShowMessage("Cannot start scan: " + err.Error())
		return
	}
	p.model.SetEnabled(true)
	p.view.ShowMessage("")
	p.view.ConfigEditable(false)
	p.locked = true
}

// Disable stops the session and resets the preview. Idempotent.
func (p *ScanPresenter) Disable() {
	if p == nil || p.model == nil || p.ctrl == nil || p.view == nil {
		return
	}
	if !p.model.Enabled() {
		return
	}
	p.ctrl.Stop()
	p.model.SetEnabled(false)
	p.view.PreviewReset()
	p.unlock()
}

// Toggle flips enabled state delegating to Enable/Disable.
func (p *ScanPresenter) Toggle() {
	if p == nil || p.model == nil {
		return
	}
	if p.model.Enabled() {
		p.Disable()
		return
	}
	p.Enable()
}

// Tick reconciles the model with sessions that ended on their own
// (detection, denial, device failure).
func (p *ScanPresenter) Tick() {
	if p == nil || p.model == nil || p.ctrl == nil || p.view == nil {
		return
	}
	if p.model.Enabled() && !p.ctrl.State().Active() {
		p.model.SetEnabled(false)
	}
	if !p.model.Enabled() && p.locked {
		p.view.PreviewReset()
		p.unlock()
	}
}

func (p *ScanPresenter) unlock() {
	p.view.ConfigEditable(true)
	p.locked = false
}
