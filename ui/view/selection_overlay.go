package view

import (
	"fmt"
	"image"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/soocke/pixel-scan-go/config"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders
	. "modernc.org/tk9.0"
)

// ScreenArea lets the user pick the part of the screen the screen camera
// captures. ActiveRect is read from capture goroutines.
type ScreenArea interface {
	OpenOrFocus()
	Clear()
	ActiveRect() *image.Rectangle
}

type screenArea struct {
	logger    *slog.Logger
	cfg       *config.Config
	cfgPath   string
	selection atomic.Pointer[image.Rectangle]
	win       *ToplevelWidget
}

const (
	areaKey    = "#008080" // transparent on platforms supporting -transparentcolor
	areaBorder = "#22c55e"

	// Fallback screen size used to size the first window.
	defaultScreenW = 1920
	defaultScreenH = 1080
)

// NewScreenArea restores the persisted selection from cfg.
func NewScreenArea(cfg *config.Config, cfgPath string, logger *slog.Logger) ScreenArea {
	v := &screenArea{logger: logger, cfg: cfg, cfgPath: cfgPath}
	if cfg != nil {
		v.selection.Store(cfg.Selection())
	}
	return v
}

func (v *screenArea) OpenOrFocus() {
	if v.win != nil {
		WmGeometry(v.win.Window)
		return
	}
	win := App.Toplevel(Borderwidth(2), Background(areaKey))
	win.WmTitle("Scan Area")
	v.win = win
	initW, initH := defaultScreenW/3, defaultScreenH/4
	x, y := (defaultScreenW-initW)/2, (defaultScreenH-initH)/2
	if r := v.ActiveRect(); r != nil {
		initW, initH, x, y = r.Dx(), r.Dy(), r.Min.X, r.Min.Y
	}
	WmGeometry(win.Window, fmt.Sprintf("%dx%d+%d+%d", initW, initH, x, y))
	WmAttributes(win.Window, "-topmost", 1)
	WmAttributes(win.Window, "-transparentcolor", areaKey)
	GridRowConfigure(win.Window, 0, Weight(1))
	GridColumnConfigure(win.Window, 1, Weight(1))
	left := win.Frame(Width(3), Background(areaBorder))
	Grid(left, Row(0), Column(0), Sticky("ns"))
	center := win.Frame(Background(areaKey))
	Grid(center, Row(0), Column(1), Sticky("nsew"))
	right := win.Frame(Width(3), Background(areaBorder))
	Grid(right, Row(0), Column(2), Sticky("ns"))
	controls := win.Frame()
	Grid(controls, Row(1), Column(0), Columnspan(3), Sticky("we"))
	for i, b := range []struct {
		text string
		fn   func()
	}{
		{"Use Area [Enter]", v.confirm},
		{"Cancel [Esc]", v.destroy},
		{"Full Screen", v.Clear},
	} {
		btn := win.Button(Txt(b.text), Command(b.fn))
		Grid(btn, In(controls), Row(0), Column(i), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	}
	Bind(win, "<Return>", Command(v.confirm))
	Bind(win, "<Escape>", Command(v.destroy))
}

// Clear drops the selection so the whole primary display is captured.
func (v *screenArea) Clear() {
	v.selection.Store(nil)
	v.persist(image.Rectangle{})
	v.destroy()
}

func (v *screenArea) confirm() {
	if v.win == nil {
		return
	}
	if rect, ok := parseGeometry(WmGeometry(v.win.Window)); ok {
		v.selection.Store(&rect)
		v.persist(rect)
		if v.logger != nil {
			v.logger.Info("scan area selected", "rect", rect.String())
		}
	}
	v.destroy()
}

func (v *screenArea) persist(r image.Rectangle) {
	if v.cfg == nil {
		return
	}
	v.cfg.SelectionX, v.cfg.SelectionY = r.Min.X, r.Min.Y
	v.cfg.SelectionW, v.cfg.SelectionH = r.Dx(), r.Dy()
	if err := v.cfg.Save(v.cfgPath); err != nil && v.logger != nil {
		v.logger.Error("config save failed", "error", err)
	}
}

func (v *screenArea) destroy() {
	if v.win != nil {
		Destroy(v.win)
		v.win = nil
	}
}

func (v *screenArea) ActiveRect() *image.Rectangle {
	r := v.selection.Load()
	if r == nil || r.Empty() {
		return nil
	}
	out := *r
	return &out
}

// geomRe matches window geometry strings in the format "WIDTHxHEIGHT+X+Y".
var geomRe = regexp.MustCompile(`^(\d+)x(\d+)\+(-?\d+)\+(-?\d+)$`)

func parseGeometry(g string) (image.Rectangle, bool) {
	m := geomRe.FindStringSubmatch(strings.TrimSpace(g))
	if len(m) != 5 {
		return image.Rectangle{}, false
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	x, _ := strconv.Atoi(m[3])
	y, _ := strconv.Atoi(m[4])
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(x, y, x+w, y+h), true
}
