// Package wedge types decoded codes into the focused window, like a
// keyboard-wedge barcode scanner.
package wedge

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf16"
)

// Suffix is the key sent after the code.
type Suffix string

const (
	SuffixNone  Suffix = ""
	SuffixEnter Suffix = "enter"
	SuffixTab   Suffix = "tab"
)

// ParseSuffix accepts "", "none", "enter" and "tab" in any case.
func ParseSuffix(s string) (Suffix, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SuffixNone, nil
	case "enter", "return":
		return SuffixEnter, nil
	case "tab":
		return SuffixTab, nil
	}
	return SuffixNone, fmt.Errorf("unknown wedge suffix %q", s)
}

const (
	vkTab    = 0x09
	vkReturn = 0x0D
)

// keyEvent is one synthesized key transition. Either vk is a virtual-key
// code or unit is a UTF-16 code unit sent as unicode input.
type keyEvent struct {
	vk   uint16
	unit uint16
	up   bool
}

// events expands text and suffix into down/up pairs. Characters outside the
// BMP become surrogate pairs, each unit pressed separately.
func events(text string, suffix Suffix) []keyEvent {
	units := utf16.Encode([]rune(text))
	out := make([]keyEvent, 0, 2*len(units)+2)
	for _, u := range units {
		out = append(out, keyEvent{unit: u}, keyEvent{unit: u, up: true})
	}
	var vk uint16
	switch suffix {
	case SuffixEnter:
		vk = vkReturn
	case SuffixTab:
		vk = vkTab
	}
	if vk != 0 {
		out = append(out, keyEvent{vk: vk}, keyEvent{vk: vk, up: true})
	}
	return out
}

// Wedge types codes with a fixed suffix.
type Wedge struct {
	suffix Suffix
	logger *slog.Logger
	send   func([]keyEvent) error
	title  func() (string, error)
}

func New(suffix Suffix, logger *slog.Logger) *Wedge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Wedge{suffix: suffix, logger: logger, send: sendInput, title: ForegroundWindowTitle}
}

// Type sends code followed by the suffix to the foreground window.
func (w *Wedge) Type(code string) error {
	if code == "" {
		return nil
	}
	evs := events(code, w.suffix)
	if err := w.send(evs); err != nil {
		return fmt.Errorf("type code: %w", err)
	}
	title, _ := w.title()
	w.logger.Debug("code typed", "window", title, "keys", len(evs))
	return nil
}
