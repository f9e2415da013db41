package view

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/pixel-scan-go/config"
	"github.com/soocke/pixel-scan-go/domain/geometry"
	"github.com/soocke/pixel-scan-go/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// RootView composes the top-level application layout and wires UI callbacks.
// It satisfies the view contracts of every presenter.
type RootView struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger

	// Subviews
	Session     SessionStats
	ConfigPanel ConfigPanel
	Viewfinder  Viewfinder
	ScreenArea  ScreenArea

	// Widgets
	StateLabel   *TLabelWidget
	ResultLabel  *TLabelWidget
	MessageLabel *LabelWidget
}

// Callbacks are the user actions the root view exposes.
type Callbacks struct {
	OnToggleScan      func()
	OnRetryPermission func()
	OnConfigApplied   func(*config.Config)
	OnExit            func()
}

func NewRootView(cfg *config.Config, cfgPath string, logger *slog.Logger) *RootView {
	return &RootView{cfg: cfg, cfgPath: cfgPath, logger: logger}
}

// Build constructs the layout. Handlers are invoked on user actions.
func (rv *RootView) Build(cb Callbacks) {
	if rv == nil {
		return
	}
	theme.InitStyles()

	// Row 0: stats, state label, buttons frame
	stats := Frame()
	Grid(stats, Row(0), Column(0), Columnspan(2), Sticky("w"), Padx("0.4m"), Pady("0.3m"))
	rv.Session = NewSessionStats(stats, 0, 0)
	rv.StateLabel = TLabel(Txt("State: idle"), Style(theme.StyleStateLabel))
	Grid(rv.StateLabel, Row(0), Column(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))

	btnFrame := Frame()
	Grid(btnFrame, Row(0), Column(4), Rowspan(2), Sticky("ne"), Padx("0.3m"), Pady("0.3m"))
	rv.ScreenArea = NewScreenArea(rv.cfg, rv.cfgPath, rv.logger)
	buttons := []struct {
		text  string
		style string
		fn    func()
	}{
		{"Toggle Scan", theme.StylePrimaryButton, cb.OnToggleScan},
		{"Scan Area", theme.StylePrimaryButton, rv.ScreenArea.OpenOrFocus},
		{"Retry Permission", theme.StylePrimaryButton, cb.OnRetryPermission},
		{"Exit", theme.StyleDangerButton, cb.OnExit},
	}
	for i, b := range buttons {
		if b.fn == nil {
			continue
		}
		btn := TButton(Txt(b.text), Style(b.style), Command(b.fn))
		Grid(btn, In(btnFrame), Row(i), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	}

	// Row 1: last result and messages
	rv.ResultLabel = TLabel(Txt("Result: <none>"), Style(theme.StyleResultLabel))
	Grid(rv.ResultLabel, Row(1), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.2m"))
	rv.MessageLabel = Label(Txt(""), Foreground(theme.Current().Danger), Anchor("w"))
	Grid(rv.MessageLabel, Row(1), Column(2), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.2m"))

	rv.ConfigPanel = NewConfigPanel(rv.cfg, rv.cfgPath, rv.logger, cb.OnConfigApplied)
	endRow := rv.ConfigPanel.Build(2)

	relW, relH := 0.6, 0.35
	if rv.cfg != nil {
		relW, relH = rv.cfg.ViewfinderW, rv.cfg.ViewfinderH
	}
	rv.Viewfinder = NewViewfinder(endRow, relW, relH)
}

// SetStateLabel updates the state label text.
func (rv *RootView) SetStateLabel(text string) {
	if rv != nil && rv.StateLabel != nil {
		rv.StateLabel.Configure(Txt(text))
	}
}

// SetResult shows the last decoded code.
func (rv *RootView) SetResult(code string) {
	if rv != nil && rv.ResultLabel != nil {
		rv.ResultLabel.Configure(Txt("Result: " + code))
	}
}

// ShowMessage shows a user-facing message; empty clears it.
func (rv *RootView) ShowMessage(msg string) {
	if rv != nil && rv.MessageLabel != nil {
		rv.MessageLabel.Configure(Txt(msg))
	}
}

// SetSession updates the duration and scan counter labels.
func (rv *RootView) SetSession(current, total time.Duration, sessions int) {
	if rv == nil || rv.Session == nil {
		return
	}
	rv.Session.SetSession(current)
	rv.Session.SetTotal(total)
	rv.Session.SetScans(sessions)
}

// PreviewReset clears the viewfinder images.
func (rv *RootView) PreviewReset() {
	if rv != nil && rv.Viewfinder != nil {
		rv.Viewfinder.Reset()
	}
}

// ConfigEditable toggles config panel editability.
func (rv *RootView) ConfigEditable(b bool) {
	if rv != nil && rv.ConfigPanel != nil {
		rv.ConfigPanel.SetEditable(b)
	}
}

func (rv *RootView) UpdatePreview(img image.Image) {
	if rv != nil && rv.Viewfinder != nil {
		rv.Viewfinder.UpdatePreview(img)
	}
}

func (rv *RootView) UpdateRegion(img image.Image) {
	if rv != nil && rv.Viewfinder != nil {
		rv.Viewfinder.UpdateRegion(img)
	}
}

func (rv *RootView) MeasureViewfinder() (container, overlay geometry.Bounds, ok bool) {
	if rv == nil || rv.Viewfinder == nil {
		return geometry.Bounds{}, geometry.Bounds{}, false
	}
	return rv.Viewfinder.Measure()
}

// Selection reports the chosen screen area, nil for the full screen.
func (rv *RootView) Selection() *image.Rectangle {
	if rv == nil || rv.ScreenArea == nil {
		return nil
	}
	return rv.ScreenArea.ActiveRect()
}
