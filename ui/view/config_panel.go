package view

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/soocke/pixel-scan-go/config"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// ConfigPanel encapsulates the configuration form widgets and apply logic.
// It owns its widgets and writes back into *config.Config on ApplyChanges.
type ConfigPanel interface {
	Build(startRow int) (endRow int) // constructs widgets starting at startRow, returns next free row
	SetEditable(enabled bool)
	ApplyChanges() // parses widget text into underlying config and persists
}

type configPanel struct {
	cfg       *config.Config
	cfgPath   string
	logger    *slog.Logger
	onApplied func(*config.Config)
	applyBtn  *ButtonWidget
	inputs    []fieldInput
}

// formField binds one text input to a config value.
type formField struct {
	label string
	get   func(c *config.Config) string
	set   func(c *config.Config, s string) bool
}

type fieldInput struct {
	formField
	w *TextWidget
}

var formFields = []formField{
	{"Symbologies (comma separated)",
		func(c *config.Config) string { return strings.Join(c.Symbologies, ",") },
		func(c *config.Config, s string) bool { c.Symbologies = splitList(s); return len(c.Symbologies) > 0 }},
	{"Workers (0 = per CPU)", intGetter(func(c *config.Config) *int { return &c.Workers }), intSetter(func(c *config.Config) *int { return &c.Workers })},
	{"Frequency Hz", intGetter(func(c *config.Config) *int { return &c.FrequencyHz }), intSetter(func(c *config.Config) *int { return &c.FrequencyHz })},
	{"Multiple (true/false)", boolGetter(func(c *config.Config) *bool { return &c.Multiple }), boolSetter(func(c *config.Config) *bool { return &c.Multiple })},
	{"Try Harder (true/false)", boolGetter(func(c *config.Config) *bool { return &c.TryHarder }), boolSetter(func(c *config.Config) *bool { return &c.TryHarder })},
	{"Settle Delay ms", intGetter(func(c *config.Config) *int { return &c.SettleDelayMs }), intSetter(func(c *config.Config) *int { return &c.SettleDelayMs })},
	{"Ideal Width", intGetter(func(c *config.Config) *int { return &c.IdealWidth }), intSetter(func(c *config.Config) *int { return &c.IdealWidth })},
	{"Ideal Height", intGetter(func(c *config.Config) *int { return &c.IdealHeight }), intSetter(func(c *config.Config) *int { return &c.IdealHeight })},
	{"Viewfinder Width (0-1)", floatGetter(func(c *config.Config) *float64 { return &c.ViewfinderW }), floatSetter(func(c *config.Config) *float64 { return &c.ViewfinderW })},
	{"Viewfinder Height (0-1)", floatGetter(func(c *config.Config) *float64 { return &c.ViewfinderH }), floatSetter(func(c *config.Config) *float64 { return &c.ViewfinderH })},
	{"Type Result (true/false)", boolGetter(func(c *config.Config) *bool { return &c.TypeResult }), boolSetter(func(c *config.Config) *bool { return &c.TypeResult })},
}

// NewConfigPanel creates the view bound to cfg. onApplied receives a copy of
// the config after every successful apply.
func NewConfigPanel(cfg *config.Config, cfgPath string, logger *slog.Logger, onApplied func(*config.Config)) ConfigPanel {
	return &configPanel{cfg: cfg, cfgPath: cfgPath, logger: logger, onApplied: onApplied}
}

func (v *configPanel) Build(startRow int) (row int) {
	row = startRow
	for _, f := range formFields {
		lbl := Label(Txt(f.label), Anchor("w"))
		Grid(lbl, Row(row), Column(0), Sticky("w"), Padx("0.4m"), Pady("0.15m"))
		w := Text(Height(1), Width(24))
		Grid(w, Row(row), Column(1), Sticky("we"), Padx("0.4m"), Pady("0.15m"))
		w.Insert("1.0", f.get(v.cfg))
		v.inputs = append(v.inputs, fieldInput{formField: f, w: w})
		row++
	}
	v.applyBtn = Button(Txt("Apply Changes"), Command(v.ApplyChanges))
	Grid(v.applyBtn, Row(row), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	return row + 1
}

func (v *configPanel) SetEditable(enabled bool) {
	state := State("disabled")
	if enabled {
		state = State("normal")
	}
	for _, in := range v.inputs {
		in.w.Configure(state)
	}
	if v.applyBtn != nil {
		v.applyBtn.Configure(state)
	}
}

// ApplyChanges copies the form into the config. Unparsable inputs keep their
// previous value.
func (v *configPanel) ApplyChanges() {
	if v.cfg == nil {
		return
	}
	next := *v.cfg
	for _, in := range v.inputs {
		text := strings.TrimSpace(strings.Join(in.w.Get("1.0", END), ""))
		if !in.set(&next, text) && v.logger != nil {
			v.logger.Warn("config field ignored", "field", in.label, "value", text)
		}
	}
	if err := next.Validate(); err != nil {
		return
	}
	*v.cfg = next
	if err := v.cfg.Save(v.cfgPath); err != nil {
		if v.logger != nil {
			v.logger.Error("config save failed", "error", err)
		}
	} else if v.logger != nil {
		v.logger.Info("config saved", "path", v.cfgPath)
	}
	if v.onApplied != nil {
		applied := next
		v.onApplied(&applied)
	}
}

func intGetter(ptr func(*config.Config) *int) func(*config.Config) string {
	return func(c *config.Config) string { return strconv.Itoa(*ptr(c)) }
}

func intSetter(ptr func(*config.Config) *int) func(*config.Config, string) bool {
	return func(c *config.Config, s string) bool {
		i, err := strconv.Atoi(s)
		if err != nil {
			return false
		}
		*ptr(c) = i
		return true
	}
}

func floatGetter(ptr func(*config.Config) *float64) func(*config.Config) string {
	return func(c *config.Config) string { return strconv.FormatFloat(*ptr(c), 'f', 2, 64) }
}

func floatSetter(ptr func(*config.Config) *float64) func(*config.Config, string) bool {
	return func(c *config.Config, s string) bool {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return false
		}
		*ptr(c) = f
		return true
	}
}

func boolGetter(ptr func(*config.Config) *bool) func(*config.Config) string {
	return func(c *config.Config) string { return strconv.FormatBool(*ptr(c)) }
}

func boolSetter(ptr func(*config.Config) *bool) func(*config.Config, string) bool {
	return func(c *config.Config, s string) bool {
		switch strings.ToLower(s) {
		case "true", "1", "yes", "y", "on", "t":
			*ptr(c) = true
		case "false", "0", "no", "n", "off", "f":
			*ptr(c) = false
		default:
			return false
		}
		return true
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
