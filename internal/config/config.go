// Package config loads and validates the viewer's YAML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the complete viewer configuration.
type Config struct {
	InstanceID string          `yaml:"instance_id"`
	Camera     CameraConfig    `yaml:"camera"`
	Display    DisplayConfig   `yaml:"display"`
	Buttons    ButtonsConfig   `yaml:"buttons"`
	Backlight  BacklightConfig `yaml:"backlight"`
	Power      PowerConfig     `yaml:"power"`
	LUTs       LUTsConfig      `yaml:"luts"`
	Viewer     ViewerConfig    `yaml:"viewer"`
	MQTT       MQTTConfig      `yaml:"mqtt"`
}

// CameraConfig describes the UVC capture source.
type CameraConfig struct {
	Device string `yaml:"device"` // V4L2 device path
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
	Mock   bool   `yaml:"mock"` // synthetic frames instead of hardware
}

// DisplayConfig describes the SPI panel.
type DisplayConfig struct {
	SPIPort  string `yaml:"spi_port"` // spireg name; empty selects the first port
	DCPin    string `yaml:"dc_pin"`
	ResetPin string `yaml:"reset_pin"` // empty when tied high
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Rotation int    `yaml:"rotation"`
	XOffset  int    `yaml:"x_offset"`
	YOffset  int    `yaml:"y_offset"`
	SPIHz    int64  `yaml:"spi_hz"`
}

// ButtonsConfig describes the two momentary inputs.
type ButtonsConfig struct {
	Chip         string `yaml:"chip"`
	ColormapLine int    `yaml:"colormap_line"` // input A: cycle colormap
	PowerLine    int    `yaml:"power_line"`    // input B: toggle power mode
	DebounceMS   int    `yaml:"debounce_ms"`
}

// BacklightConfig describes the backlight output line.
type BacklightConfig struct {
	Chip string `yaml:"chip"`
	Line int    `yaml:"line"`
}

// PowerConfig carries governor names and thermal thresholds.
type PowerConfig struct {
	GovernorRun        string  `yaml:"governor_run"`
	GovernorSave       string  `yaml:"governor_save"`
	ShutdownThresholdC float64 `yaml:"shutdown_threshold_c"`
	CheckIntervalS     int     `yaml:"check_interval_s"`
	LogIntervalS       int     `yaml:"log_interval_s"`
}

// LUTsConfig controls catalog construction.
type LUTsConfig struct {
	Dir          string `yaml:"dir"` // scanned for *.lut files
	GradientStep int    `yaml:"gradient_step"`
}

// ViewerConfig carries render-loop timings.
type ViewerConfig struct {
	PopTimeoutMS   int `yaml:"pop_timeout_ms"`
	IdleSleepMS    int `yaml:"idle_sleep_ms"`
	StatsIntervalS int `yaml:"stats_interval_s"`
	GraceDelayS    int `yaml:"grace_delay_s"`
}

// MQTTConfig enables status telemetry when Broker is set.
type MQTTConfig struct {
	Broker    string `yaml:"broker"`
	Topic     string `yaml:"topic"`
	IntervalS int    `yaml:"interval_s"`
}

// Load reads, defaults, and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration usable without a file, mock camera
// excluded.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.InstanceID == "" {
		c.InstanceID = uuid.New().String()
	}
	if c.Camera.Device == "" {
		c.Camera.Device = "/dev/video0"
	}
	if c.Camera.Width == 0 {
		c.Camera.Width = 160
	}
	if c.Camera.Height == 0 {
		c.Camera.Height = 120
	}
	if c.Camera.FPS == 0 {
		c.Camera.FPS = 9
	}
	if c.Display.DCPin == "" {
		c.Display.DCPin = "GPIO25"
	}
	if c.Display.Width == 0 {
		c.Display.Width = 240
	}
	if c.Display.Height == 0 {
		c.Display.Height = 240
	}
	if c.Display.Rotation == 0 && c.Display.YOffset == 0 {
		c.Display.Rotation = 270
		c.Display.YOffset = 80
	}
	if c.Display.SPIHz == 0 {
		c.Display.SPIHz = 24_000_000
	}
	if c.Buttons.Chip == "" {
		c.Buttons.Chip = "gpiochip0"
	}
	if c.Buttons.ColormapLine == 0 {
		c.Buttons.ColormapLine = 23
	}
	if c.Buttons.PowerLine == 0 {
		c.Buttons.PowerLine = 24
	}
	if c.Buttons.DebounceMS == 0 {
		c.Buttons.DebounceMS = 300
	}
	if c.Backlight.Chip == "" {
		c.Backlight.Chip = "gpiochip0"
	}
	if c.Backlight.Line == 0 {
		c.Backlight.Line = 22
	}
	if c.Power.GovernorRun == "" {
		c.Power.GovernorRun = "ondemand"
	}
	if c.Power.GovernorSave == "" {
		c.Power.GovernorSave = "powersave"
	}
	if c.Power.ShutdownThresholdC == 0 {
		c.Power.ShutdownThresholdC = 75.0
	}
	if c.Power.CheckIntervalS == 0 {
		c.Power.CheckIntervalS = 30
	}
	if c.Power.LogIntervalS == 0 {
		c.Power.LogIntervalS = 300
	}
	if c.LUTs.Dir == "" {
		c.LUTs.Dir = "."
	}
	if c.LUTs.GradientStep == 0 {
		c.LUTs.GradientStep = 64
	}
	if c.Viewer.PopTimeoutMS == 0 {
		c.Viewer.PopTimeoutMS = 500
	}
	if c.Viewer.IdleSleepMS == 0 {
		c.Viewer.IdleSleepMS = 250
	}
	if c.Viewer.StatsIntervalS == 0 {
		c.Viewer.StatsIntervalS = 5
	}
	if c.Viewer.GraceDelayS == 0 {
		c.Viewer.GraceDelayS = 10
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "thermal/status"
	}
	if c.MQTT.IntervalS == 0 {
		c.MQTT.IntervalS = 30
	}
}
