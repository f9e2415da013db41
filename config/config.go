package config

import (
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soocke/pixel-scan-go/domain/camera"
	"github.com/soocke/pixel-scan-go/domain/scan"
	"github.com/soocke/pixel-scan-go/domain/session"
	"github.com/soocke/pixel-scan-go/domain/wedge"
)

// Config holds runtime configuration for scanning and app behavior.
// Fields may be loaded from a JSON or YAML file and overridden by command-line flags.
type Config struct {
	Debug    bool   `json:"debug" yaml:"debug"`
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Decoder
	Symbologies []string `json:"symbologies" yaml:"symbologies"`
	Workers     int      `json:"workers" yaml:"workers"` // 0 = one per logical CPU
	FrequencyHz int      `json:"frequency_hz" yaml:"frequency_hz"`
	Multiple    bool     `json:"multiple" yaml:"multiple"`
	TryHarder   bool     `json:"try_harder" yaml:"try_harder"`

	SettleDelayMs int `json:"settle_delay_ms" yaml:"settle_delay_ms"`

	// Stream constraints
	MinWidth    int `json:"min_width" yaml:"min_width"`
	IdealWidth  int `json:"ideal_width" yaml:"ideal_width"`
	MaxWidth    int `json:"max_width" yaml:"max_width"`
	MinHeight   int `json:"min_height" yaml:"min_height"`
	IdealHeight int `json:"ideal_height" yaml:"ideal_height"`
	MaxHeight   int `json:"max_height" yaml:"max_height"`

	// Screen region captured by the screen camera
	SelectionX int `json:"selection_x" yaml:"selection_x"`
	SelectionY int `json:"selection_y" yaml:"selection_y"`
	SelectionW int `json:"selection_w" yaml:"selection_w"`
	SelectionH int `json:"selection_h" yaml:"selection_h"`

	// Viewfinder overlay size as a fraction of the preview
	ViewfinderW float64 `json:"viewfinder_w" yaml:"viewfinder_w"`
	ViewfinderH float64 `json:"viewfinder_h" yaml:"viewfinder_h"`

	// Keyboard wedge: type each decoded code into the focused window.
	TypeResult bool   `json:"type_result" yaml:"type_result"`
	TypeSuffix string `json:"type_suffix" yaml:"type_suffix"` // none, enter or tab

	// FeedAddr enables the websocket status feed when non-empty.
	FeedAddr string `json:"feed_addr" yaml:"feed_addr"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	syms := make([]string, 0, len(scan.DefaultSymbologies))
	for _, s := range scan.DefaultSymbologies {
		syms = append(syms, string(s))
	}
	return &Config{
		Debug:         false,
		LogLevel:      "info",
		Symbologies:   syms,
		Workers:       0,
		FrequencyHz:   scan.DefaultFrequencyHz,
		Multiple:      false,
		TryHarder:     false,
		SettleDelayMs: 300,
		MinWidth:      640,
		IdealWidth:    1280,
		MaxWidth:      1920,
		MinHeight:     480,
		IdealHeight:   720,
		MaxHeight:     1080,
		ViewfinderW:   0.6,
		ViewfinderH:   0.35,
		TypeSuffix:    "enter",
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	valid := c.Symbologies[:0]
	for _, name := range c.Symbologies {
		if s, err := scan.ParseSymbology(name); err == nil {
			valid = append(valid, string(s))
		}
	}
	c.Symbologies = valid
	if len(c.Symbologies) == 0 {
		c.Symbologies = DefaultConfig().Symbologies
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	if c.FrequencyHz <= 0 || c.FrequencyHz > 60 {
		c.FrequencyHz = scan.DefaultFrequencyHz
	}
	if c.SettleDelayMs < 0 {
		c.SettleDelayMs = 300
	}
	if c.MinWidth < 0 {
		c.MinWidth = 0
	}
	if c.MinHeight < 0 {
		c.MinHeight = 0
	}
	if c.MaxWidth > 0 && c.MaxWidth < c.MinWidth {
		c.MaxWidth = c.MinWidth
	}
	if c.MaxHeight > 0 && c.MaxHeight < c.MinHeight {
		c.MaxHeight = c.MinHeight
	}
	if c.IdealWidth < c.MinWidth || (c.MaxWidth > 0 && c.IdealWidth > c.MaxWidth) {
		c.IdealWidth = c.MinWidth
	}
	if c.IdealHeight < c.MinHeight || (c.MaxHeight > 0 && c.IdealHeight > c.MaxHeight) {
		c.IdealHeight = c.MinHeight
	}
	if c.SelectionW < 0 || c.SelectionH < 0 {
		c.SelectionX, c.SelectionY, c.SelectionW, c.SelectionH = 0, 0, 0, 0
	}
	if c.ViewfinderW <= 0 || c.ViewfinderW > 1 {
		c.ViewfinderW = 0.6
	}
	if c.ViewfinderH <= 0 || c.ViewfinderH > 1 {
		c.ViewfinderH = 0.35
	}
	if s, err := wedge.ParseSuffix(c.TypeSuffix); err != nil {
		c.TypeSuffix = string(wedge.SuffixEnter)
	} else {
		c.TypeSuffix = string(s)
	}
	return nil
}

// DecoderConfig converts the decoder fields.
func (c *Config) DecoderConfig() scan.DecoderConfig {
	out := scan.DecoderConfig{WorkerCount: c.Workers, FrequencyHz: c.FrequencyHz, Multiple: c.Multiple}
	for _, name := range c.Symbologies {
		if s, err := scan.ParseSymbology(name); err == nil {
			out.Symbologies = append(out.Symbologies, s)
		}
	}
	return out
}

// Constraints converts the stream constraint fields.
func (c *Config) Constraints() camera.Constraints {
	return camera.Constraints{
		MinWidth: c.MinWidth, IdealWidth: c.IdealWidth, MaxWidth: c.MaxWidth,
		MinHeight: c.MinHeight, IdealHeight: c.IdealHeight, MaxHeight: c.MaxHeight,
	}
}

// SessionConfig bundles the settings applied to each new scan session.
func (c *Config) SessionConfig() session.Config {
	return session.Config{Decoder: c.DecoderConfig(), Constraints: c.Constraints()}
}

// SettleDelay is the layout settle delay.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// Selection returns the persisted capture selection or nil when unset.
func (c *Config) Selection() *image.Rectangle {
	if c.SelectionW <= 0 || c.SelectionH <= 0 {
		return nil
	}
	r := image.Rect(c.SelectionX, c.SelectionY, c.SelectionX+c.SelectionW, c.SelectionY+c.SelectionH)
	return &r
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load attempts to read configuration from the given path. Files ending in
// .yaml or .yml are YAML, anything else JSON. If the file does not exist it
// returns DefaultConfig(). On decode error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	if isYAML(path) {
		err = yaml.NewDecoder(f).Decode(cfg)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	} else {
		err = json.NewDecoder(f).Decode(cfg)
	}
	if err != nil {
		return DefaultConfig(), err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path.
func (c *Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Encode(f, isYAML(path))
}

// Encode writes the validated configuration as YAML or indented JSON.
func (c *Config) Encode(w io.Writer, asYAML bool) error {
	_ = c.Validate()
	if asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
