// Package theme activates the base Tk theme and the semantic widget styles
// used by the scanner window.
package theme

import (
	tk "modernc.org/tk9.0"
)

// Palette holds the resolved colors for one mode.
type Palette struct {
	AppBg   string
	Surface string
	Primary string
	Danger  string
	Accent  string
	Text    string
}

var (
	light = Palette{AppBg: "#f7f9fb", Surface: "#ffffff", Primary: "#2563eb", Danger: "#dc2626", Accent: "#10b981", Text: "#1e293b"}
	dark  = Palette{AppBg: "#0f172a", Surface: "#1e293b", Primary: "#3b82f6", Danger: "#ef4444", Accent: "#10b981", Text: "#f1f5f9"}
)

// style names used with Style("primary.TButton") etc.
const (
	StylePrimaryButton = "primary.TButton"
	StyleDangerButton  = "danger.TButton"
	StyleStateLabel    = "state.TLabel"
	StyleResultLabel   = "result.TLabel"
)

var darkMode bool

// Current returns the palette of the active mode.
func Current() Palette {
	if darkMode {
		return dark
	}
	return light
}

// InitStyles (re)applies styles for the current mode.
func InitStyles() { apply(Current()) }

// ToggleDark flips dark mode and reapplies styles. Returns new mode value.
func ToggleDark() bool {
	darkMode = !darkMode
	apply(Current())
	return darkMode
}

func apply(p Palette) {
	_ = tk.ActivateTheme("azure light") // baseline metrics
	tk.App.Configure(tk.Background(p.AppBg))
	tk.StyleConfigure(StylePrimaryButton, tk.Background(p.Primary), tk.Foreground("white"), tk.Padding("4p 3p"), tk.Borderwidth(1), tk.Relief("ridge"))
	tk.StyleConfigure(StyleDangerButton, tk.Background(p.Danger), tk.Foreground("white"), tk.Padding("4p 3p"), tk.Borderwidth(1), tk.Relief("ridge"))
	tk.StyleConfigure(StyleStateLabel, tk.Foreground("white"), tk.Background(p.Accent), tk.Padding("4p 2p"), tk.Borderwidth(1), tk.Relief("groove"))
	tk.StyleConfigure(StyleResultLabel, tk.Foreground(p.Text), tk.Background(p.Surface), tk.Padding("4p 2p"))
}
