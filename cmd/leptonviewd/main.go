package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gocv.io/x/gocv"
	gpioconn "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/dannen/lepton-viewer-rpi/internal/capture"
	"github.com/dannen/lepton-viewer-rpi/internal/config"
	"github.com/dannen/lepton-viewer-rpi/internal/display"
	"github.com/dannen/lepton-viewer-rpi/internal/gpio"
	"github.com/dannen/lepton-viewer-rpi/internal/lut"
	"github.com/dannen/lepton-viewer-rpi/internal/sysctl"
	"github.com/dannen/lepton-viewer-rpi/internal/telemetry"
	"github.com/dannen/lepton-viewer-rpi/internal/viewer"
)

const defaultConfigPath = "config/leptonview.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	mock := flag.Bool("mock", false, "Use a synthetic capture source instead of the camera")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting lepton viewer",
		"config", *configPath,
		"debug", *debug,
		"mock", *mock,
	)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *mock {
		cfg.Camera.Mock = true
	}

	if err := run(cfg); err != nil {
		slog.Error("viewer error", "error", err)
		os.Exit(1)
	}

	slog.Info("lepton viewer stopped")
}

// loadConfig falls back to built-in defaults when the default config file is
// absent; an explicitly named file must exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == defaultConfigPath {
		slog.Info("no config file found, using built-in defaults")
		return config.Default(), nil
	}
	return config.Load(path)
}

func run(cfg *config.Config) error {
	catalog, err := buildCatalog(cfg)
	if err != nil {
		return fmt.Errorf("build colormap catalog: %w", err)
	}

	source, err := openSource(cfg)
	if err != nil {
		return fmt.Errorf("open capture source: %w", err)
	}
	defer source.Close()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init peripheral host: %w", err)
	}

	disp, err := openDisplay(cfg)
	if err != nil {
		return fmt.Errorf("open display: %w", err)
	}
	defer disp.Halt()

	buttonA, err := gpio.NewButton(cfg.Buttons.Chip, cfg.Buttons.ColormapLine)
	if err != nil {
		return fmt.Errorf("open colormap button: %w", err)
	}
	defer buttonA.Close()

	buttonB, err := gpio.NewButton(cfg.Buttons.Chip, cfg.Buttons.PowerLine)
	if err != nil {
		return fmt.Errorf("open power button: %w", err)
	}
	defer buttonB.Close()

	backlight, err := gpio.NewOutput(cfg.Backlight.Chip, cfg.Backlight.Line, true)
	if err != nil {
		return fmt.Errorf("open backlight line: %w", err)
	}
	defer backlight.Close()

	v, err := viewer.New(viewer.Options{
		Config:    cfg,
		Source:    source,
		Display:   disp,
		Backlight: backlight,
		ButtonA:   buttonA,
		ButtonB:   buttonB,
		System:    sysctl.New(),
		Catalog:   catalog,
	})
	if err != nil {
		return fmt.Errorf("assemble viewer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if cfg.MQTT.Broker != "" {
		emitter := telemetry.New(cfg)
		if err := emitter.Connect(ctx); err != nil {
			// telemetry is best-effort; the panel keeps working without it
			slog.Warn("telemetry unavailable", "error", err)
		} else {
			defer emitter.Disconnect()
			go emitter.Run(ctx, v.Status)
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- v.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		cancel()
		return <-errChan
	case err := <-errChan:
		return err
	}
}

// buildCatalog assembles the colormap cycle: built-ins, the three channel
// gradients, then any *.lut files found in the configured directory.
func buildCatalog(cfg *config.Config) (*lut.Catalog, error) {
	c := lut.NewCatalog()

	c.RegisterBuiltin("HOT", int(gocv.ColormapHot))
	c.RegisterBuiltin("BONE", int(gocv.ColormapBone))
	c.RegisterBuiltin("COOL", int(gocv.ColormapCool))
	c.RegisterBuiltin("OCEAN", int(gocv.ColormapOcean))
	c.RegisterBuiltin("JET", int(gocv.ColormapJet))

	step := cfg.LUTs.GradientStep
	for _, g := range []struct {
		name string
		ch   lut.Channel
	}{
		{"RED_GRADIENT", lut.ChannelRed},
		{"GREEN_GRADIENT", lut.ChannelGreen},
		{"BLUE_GRADIENT", lut.ChannelBlue},
	} {
		if err := c.AddGradient(g.name, g.ch, step); err != nil {
			return nil, err
		}
	}

	c.LoadDir(cfg.LUTs.Dir)

	slog.Info("colormap catalog ready", "tables", c.Len())
	return c, nil
}

func openSource(cfg *config.Config) (capture.Source, error) {
	cam := cfg.Camera
	if cam.Mock {
		slog.Info("using synthetic capture source",
			"width", cam.Width, "height", cam.Height, "fps", cam.FPS)
		return capture.NewMock(cam.Width, cam.Height, cam.FPS), nil
	}
	return capture.OpenUVC(capture.UVCConfig{
		DevicePath: cam.Device,
		Width:      cam.Width,
		Height:     cam.Height,
		FPS:        cam.FPS,
	})
}

func openDisplay(cfg *config.Config) (*display.Dev, error) {
	port, err := spireg.Open(cfg.Display.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", cfg.Display.SPIPort, err)
	}

	dc := gpioreg.ByName(cfg.Display.DCPin)
	if dc == nil {
		port.Close()
		return nil, fmt.Errorf("data/command pin %q not found", cfg.Display.DCPin)
	}

	var rst gpioconn.PinOut
	if cfg.Display.ResetPin != "" {
		p := gpioreg.ByName(cfg.Display.ResetPin)
		if p == nil {
			port.Close()
			return nil, fmt.Errorf("reset pin %q not found", cfg.Display.ResetPin)
		}
		rst = p
	}

	return display.NewSPI(port, dc, rst, display.Opts{
		Width:    cfg.Display.Width,
		Height:   cfg.Display.Height,
		Rotation: cfg.Display.Rotation,
		XOffset:  cfg.Display.XOffset,
		YOffset:  cfg.Display.YOffset,
		Hz:       physic.Frequency(cfg.Display.SPIHz) * physic.Hertz,
	})
}
