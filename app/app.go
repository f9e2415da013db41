package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"

	"github.com/soocke/pixel-scan-go/config"
	"github.com/soocke/pixel-scan-go/debug"
	"github.com/soocke/pixel-scan-go/domain/camera"
	"github.com/soocke/pixel-scan-go/ui/view"
)

const (
	tick          = 100 * time.Millisecond
	debugInterval = 10 * time.Second
)

type app struct {
	container *AppContainer
	cfgPath   string
	logger    *slog.Logger
	afterID   string
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp prepares the main window. device may be nil to scan the screen.
func NewApp(title string, width, height int, cfg *config.Config, cfgPath string, device camera.Device, logger *slog.Logger) *app {
	a := &app{cfgPath: cfgPath, logger: logger}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.container = BuildContainer(cfg, cfgPath, device, logger)

	App.WmTitle(title)
	WmProtocol(App, "WM_DELETE_WINDOW", a.exitHandler)
	WmGeometry(App, fmt.Sprintf("%dx%d+100+100", width, height))
	return a
}

// Start builds the UI, starts background services and blocks in the Tk loop.
func (a *app) Start() {
	c := a.container
	c.RootView.Build(view.Callbacks{
		OnToggleScan:      a.toggleScan,
		OnRetryPermission: a.retryPermission,
		OnConfigApplied:   a.applyConfig,
		OnExit:            a.exitHandler,
	})
	c.BindView(a.scheduleUpdate)

	if c.Config.Debug {
		debug.StartGoroutineLogger(a.ctx, debugInterval, a.logger)
		debug.StartMemLogger(a.ctx, debugInterval, a.logger)
	}
	if c.Feed != nil {
		go func() {
			if err := c.Feed.ListenAndServe(a.ctx, c.Config.FeedAddr); err != nil {
				a.logger.Error("feed server stopped", "error", err)
			}
		}()
	}
	if a.cfgPath != "" {
		go func() {
			if err := config.Watch(a.ctx, a.cfgPath, a.logger, a.applyConfig); err != nil {
				a.logger.Warn("config watch disabled", "error", err)
			}
		}()
	}

	a.scheduleUpdate()
	App.Wait()
}

func (a *app) update() {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("ui tick panic", "error", r)
			a.scheduleUpdate()
		}
	}()
	// Loop.Tick re-arms the timer through its Schedule hook.
	a.container.Loop.Tick()
}

func (a *app) scheduleUpdate() {
	// TclAfter keeps the tick on Tk's event loop thread.
	a.afterID = TclAfter(tick, func() { a.update() })
}

func (a *app) toggleScan() {
	if p := a.container.ScanPresenter; p != nil {
		p.Toggle()
	}
}

func (a *app) retryPermission() {
	ctrl := a.container.Controller
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()
		status := ctrl.RequestPermission(ctx)
		a.logger.Info("permission re-requested", "status", status.String())
	}()
}

// applyConfig takes effect for the next session. May run off the UI thread.
func (a *app) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.container.Controller.SetConfig(cfg.SessionConfig())
	a.logger.Info("config applied", "symbologies", cfg.Symbologies, "workers", cfg.Workers, "frequency_hz", cfg.FrequencyHz)
}

func (a *app) exitHandler() {
	if a.afterID != "" {
		TclAfterCancel(a.afterID)
	}
	a.container.Controller.Dispose()
	if a.container.PreviewPresenter != nil {
		a.container.PreviewPresenter.Close()
	}
	a.cancel()
	Destroy(App)
}
