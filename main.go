package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/soocke/pixel-scan-go/app"
	"github.com/soocke/pixel-scan-go/assets"
	"github.com/soocke/pixel-scan-go/config"
	"github.com/soocke/pixel-scan-go/domain/camera"
	"github.com/soocke/pixel-scan-go/domain/permission"
	"github.com/soocke/pixel-scan-go/domain/scan"
	"github.com/soocke/pixel-scan-go/domain/session"
	"github.com/soocke/pixel-scan-go/domain/wedge"
)

type globalFlags struct {
	configPath string
	debug      bool
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "pixel-scan",
		Short:         "Barcode and QR scanner for screen and image sources",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runGUI(g)
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "config.yaml", "config file (.yaml, .yml or .json)")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "debug logging and runtime stats")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "json", "log format: json|text")

	root.AddCommand(newGUICmd(g))
	root.AddCommand(newScanCmd(g))
	root.AddCommand(newProbeCmd(g))
	root.AddCommand(newSelfTestCmd(g))
	root.AddCommand(newConfigCmd(g))
	return root
}

func loadConfig(g *globalFlags) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", g.configPath, err)
	}
	if g.debug {
		cfg.Debug = true
	}
	return cfg, NewLogger(os.Stderr, cfg.Level(), g.logFormat), nil
}

func newGUICmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Run the scanner window (default)",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runGUI(g)
		},
	}
}

func runGUI(g *globalFlags) error {
	cfg, logger, err := loadConfig(g)
	if err != nil {
		return err
	}
	application := app.NewApp("Pixel Scan", 820, 760, cfg, g.configPath, nil, logger)
	application.Start()
	return nil
}

// deviceFor returns a still image device for path, or the screen camera.
func deviceFor(cfg *config.Config, path string) (camera.Device, error) {
	if path != "" {
		return camera.LoadStillDevice(path)
	}
	return camera.NewScreenDevice(cfg.Selection), nil
}

func newScanCmd(g *globalFlags) *cobra.Command {
	var imagePath string
	var timeout time.Duration
	var typeResult bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan once and print the decoded code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(g)
			if err != nil {
				return err
			}
			device, err := deviceFor(cfg, imagePath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			code, err := session.ScanOnce(ctx, onceOptions(cfg, device, imagePath != "", logger))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), code)
			if typeResult || cfg.TypeResult {
				suffix, _ := wedge.ParseSuffix(cfg.TypeSuffix)
				return wedge.New(suffix, logger).Type(code)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "decode this image file instead of the screen")
	cmd.Flags().BoolVar(&typeResult, "type", false, "also type the code into the focused window")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long (0 = wait forever)")
	return cmd
}

// onceOptions configures a headless session. Still images skip the minimum
// resolution, which only makes sense for live sources.
func onceOptions(cfg *config.Config, device camera.Device, still bool, logger *slog.Logger) session.Options {
	sc := cfg.SessionConfig()
	if still {
		sc.Constraints.MinWidth, sc.Constraints.MinHeight = 0, 0
	}
	return session.Options{
		Token:  camera.NewToken(device, logger),
		Engine: session.ScanEngine(scan.NewEngine(scan.ZXingDecoder{TryHarder: cfg.TryHarder}, logger)),
		Config: sc,
		Logger: logger,
	}
}

func newSelfTestCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Decode the embedded sample symbol through a full session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(g)
			if err != nil {
				return err
			}
			img, err := assets.SampleEAN13Image()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			cfg.Symbologies = []string{string(scan.EAN13)}
			code, err := session.ScanOnce(ctx, onceOptions(cfg, camera.NewStillDevice(img), true, logger))
			if err != nil {
				return fmt.Errorf("selftest: %w", err)
			}
			if code != assets.SampleCode {
				return fmt.Errorf("selftest: decoded %q, want %q", code, assets.SampleCode)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", code)
			return nil
		},
	}
}

func newProbeCmd(g *globalFlags) *cobra.Command {
	var imagePath string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that the capture device can be opened",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(g)
			if err != nil {
				return err
			}
			device, err := deviceFor(cfg, imagePath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			constraints := cfg.Constraints()
			if imagePath != "" {
				constraints.MinWidth, constraints.MinHeight = 0, 0
			}
			tok := camera.NewToken(device, logger)
			status := permission.NewGate(tok, constraints, logger).Request(ctx, true)
			name := tok.Device().Name()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "device=%s permission=%s\n", name, status)
			if status != permission.Granted {
				return fmt.Errorf("device %s not available", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "probe an image file instead of the screen")
	return cmd
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration file helpers"}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(g.configPath); err == nil && !force {
				return fmt.Errorf("%s exists, use --force to overwrite", g.configPath)
			}
			if err := config.DefaultConfig().Save(g.configPath); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", g.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cfgCmd.AddCommand(initCmd, &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(g)
			if err != nil {
				return err
			}
			return cfg.Encode(cmd.OutOrStdout(), true)
		},
	})
	return cfgCmd
}
