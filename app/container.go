package app

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/pixel-scan-go/config"
	"github.com/soocke/pixel-scan-go/domain/camera"
	"github.com/soocke/pixel-scan-go/domain/permission"
	"github.com/soocke/pixel-scan-go/domain/scan"
	"github.com/soocke/pixel-scan-go/domain/session"
	"github.com/soocke/pixel-scan-go/domain/wedge"
	"github.com/soocke/pixel-scan-go/feed"
	"github.com/soocke/pixel-scan-go/ui/model"
	"github.com/soocke/pixel-scan-go/ui/presenter"
	"github.com/soocke/pixel-scan-go/ui/view"
)

// AppContainer assembles models, services, presenters and the root view.
type AppContainer struct {
	Config     *config.Config
	Logger     *slog.Logger
	Scan       *model.ScanModel
	Session    *model.SessionModel
	Viewfinder *model.ViewfinderModel
	Token      *camera.Token
	Controller *session.Controller
	Feed       *feed.Server
	RootView   *view.RootView

	// Presenters
	ScanPresenter    *presenter.ScanPresenter
	SessionPresenter *presenter.SessionPresenter
	StatePresenter   *presenter.StatePresenter
	PreviewPresenter *presenter.PreviewPresenter
	Loop             *presenter.Loop
}

// layoutTimeout bounds the wait for the first viewfinder measurement. A
// preview that never maps is scanned full frame.
func layoutTimeout(settle time.Duration) time.Duration {
	if settle < session.DefaultSettleDelay {
		return session.DefaultSettleDelay
	}
	return settle
}

// BuildContainer constructs the domain services. Presenters are wired by
// BindView once the root view exists. device may be nil, in which case the
// screen camera is used with the view's selection.
func BuildContainer(cfg *config.Config, cfgPath string, device camera.Device, logger *slog.Logger) *AppContainer {
	c := &AppContainer{Config: cfg, Logger: logger}
	c.Scan = &model.ScanModel{}
	c.Session = model.NewSessionModel()
	c.Viewfinder = model.NewViewfinderModel(layoutTimeout(cfg.SettleDelay()))
	c.RootView = view.NewRootView(cfg, cfgPath, logger)

	if device == nil {
		device = camera.NewScreenDevice(func() *image.Rectangle { return c.RootView.Selection() })
	}
	c.Token = camera.NewToken(device, logger)

	var layout session.LayoutWaiter = c.Viewfinder
	if d := cfg.SettleDelay(); d > 0 {
		layout = session.Sequence{c.Viewfinder, session.SettleDelay(d)}
	}
	var typer *wedge.Wedge
	if cfg.TypeResult {
		suffix, _ := wedge.ParseSuffix(cfg.TypeSuffix)
		typer = wedge.New(suffix, logger)
	}
	sc := cfg.SessionConfig()
	c.Controller = session.NewController(session.Options{
		Token:    c.Token,
		Gate:     permission.NewGate(c.Token, sc.Constraints, logger),
		Engine:   session.ScanEngine(scan.NewEngine(scan.ZXingDecoder{TryHarder: cfg.TryHarder}, logger)),
		Layout:   layout,
		Measurer: c.Viewfinder,
		Config:   sc,
		OnScanComplete: func(code string) {
			c.Scan.RecordResult(code, time.Now())
			logger.Info("scan complete", "code", code)
			if typer != nil {
				if err := typer.Type(code); err != nil {
					logger.Warn("keyboard wedge failed", "error", err)
				}
			}
		},
		OnError: func(err error) { logger.Warn("scan error", "error", err) },
		Logger:  logger,
	})

	c.StatePresenter = presenter.NewStatePresenter(c.RootView)
	c.Controller.AddListener(c.StatePresenter.OnTransition)

	if cfg.FeedAddr != "" {
		b := feed.NewBroadcaster(c.Controller, logger)
		c.Controller.AddListener(b.Listener())
		c.Feed = feed.NewServer(b, c.Controller, logger)
	}
	return c
}

// BindView wires the presenters to the built root view. schedule re-arms the
// UI tick.
func (c *AppContainer) BindView(schedule func()) {
	c.ScanPresenter = presenter.NewScanPresenter(c.Scan, c.Controller, presenter.AllowAll{}, c.RootView)
	c.SessionPresenter = presenter.NewSessionPresenter(c.Session, c.Controller, c.RootView)
	c.PreviewPresenter = presenter.NewPreviewPresenter(c.Scan.Enabled, c.Controller, c.RootView, c.Viewfinder, c.Logger)
	c.Loop = presenter.NewLoop(c.ScanPresenter, c.SessionPresenter, c.StatePresenter, c.PreviewPresenter, schedule)
}
