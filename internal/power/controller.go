// Package power owns the operating-mode state machine: capture stream
// lifecycle, CPU governor, backlight, and the thermal emergency shutdown.
package power

import (
	"log/slog"
	"time"
)

// Mode is the viewer's operating mode. Owned exclusively by the Controller;
// everything runs on the render thread, so no locking is needed here.
type Mode int

const (
	ModeRunning Mode = iota
	ModePowerSave
	ModeShuttingDown
)

func (m Mode) String() string {
	switch m {
	case ModeRunning:
		return "running"
	case ModePowerSave:
		return "powersave"
	case ModeShuttingDown:
		return "shutting_down"
	}
	return "unknown"
}

// Stream starts and stops the capture pipeline.
type Stream interface {
	Start() error
	Stop() error
}

// Queue is drained when the stream stops so power-save never leaves stale
// frames behind.
type Queue interface {
	Drain() int
}

// Backlight switches the display backlight line.
type Backlight interface {
	Set(on bool) error
}

// System is the OS capability surface: CPU governor, thermal sensor,
// shutdown request.
type System interface {
	// SetCPUGovernor switches the scaling governor. Best-effort for the
	// controller: failure is logged, never fatal.
	SetCPUGovernor(governor string) error
	// ReadTemperature returns the device temperature in Celsius; ok is
	// false when no reading is available.
	ReadTemperature() (celsius float64, ok bool)
	// RequestShutdown asks the OS to power off.
	RequestShutdown() error
}

// Config carries the controller's tunables.
type Config struct {
	GovernorRun        string
	GovernorSave       string
	ShutdownThresholdC float64
	CheckInterval      time.Duration // thermal shutdown poll
	LogInterval        time.Duration // slower diagnostic temperature log
}

// Controller is the operating-mode state machine.
//
// The thermal shutdown check and the diagnostic temperature log run on two
// independent timers; neither is coupled to stream lifecycle timestamps.
type Controller struct {
	cfg       Config
	stream    Stream
	queue     Queue
	backlight Backlight
	system    System

	mode      Mode
	lastCheck time.Time
	lastLog   time.Time
	lastTemp  float64
	hasTemp   bool
}

// New creates a controller. It starts logically in power-save; Start enters
// RUNNING.
func New(cfg Config, stream Stream, queue Queue, backlight Backlight, system System) *Controller {
	return &Controller{
		cfg:       cfg,
		stream:    stream,
		queue:     queue,
		backlight: backlight,
		system:    system,
		mode:      ModePowerSave,
	}
}

// Mode returns the current operating mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Start enters RUNNING: performance governor, backlight on, capture stream
// started. A stream failure here is the caller's fatal startup error.
func (c *Controller) Start(now time.Time) error {
	c.setGovernor(c.cfg.GovernorRun)
	if err := c.backlight.Set(true); err != nil {
		slog.Warn("cannot switch backlight on", "error", err)
	}
	if err := c.stream.Start(); err != nil {
		return err
	}
	c.mode = ModeRunning
	c.lastCheck = now
	c.lastLog = now
	slog.Info("mode transition", "to", ModeRunning.String(), "cause", "startup")
	return nil
}

// Toggle flips RUNNING <-> POWERSAVE in response to the user button.
// In SHUTTING_DOWN input is no longer accepted.
func (c *Controller) Toggle() {
	switch c.mode {
	case ModeShuttingDown:
		return

	case ModeRunning:
		if err := c.stream.Stop(); err != nil {
			slog.Warn("stopping capture stream", "error", err)
		}
		n := c.queue.Drain()
		slog.Info("frame queue drained", "frames", n)
		if err := c.backlight.Set(false); err != nil {
			slog.Warn("cannot switch backlight off", "error", err)
		}
		c.setGovernor(c.cfg.GovernorSave)
		c.mode = ModePowerSave
		slog.Info("mode transition",
			"from", ModeRunning.String(),
			"to", ModePowerSave.String(),
			"cause", "button_toggle",
		)

	case ModePowerSave:
		c.setGovernor(c.cfg.GovernorRun)
		if err := c.backlight.Set(true); err != nil {
			slog.Warn("cannot switch backlight on", "error", err)
		}
		if err := c.stream.Start(); err != nil {
			// Recoverable: the stream stays down, the next toggle retries.
			slog.Error("capture stream restart failed", "error", err)
		}
		c.mode = ModeRunning
		slog.Info("mode transition",
			"from", ModePowerSave.String(),
			"to", ModeRunning.String(),
			"cause", "button_toggle",
		)
	}
}

// CheckThermal samples the device temperature on the configured poll
// interval. Above the threshold it transitions unconditionally to
// SHUTTING_DOWN, reports at highest severity, and issues the OS shutdown
// request. Returns true once the controller is shutting down.
func (c *Controller) CheckThermal(now time.Time) bool {
	if c.mode == ModeShuttingDown {
		return true
	}
	if now.Sub(c.lastCheck) < c.cfg.CheckInterval {
		return false
	}
	c.lastCheck = now

	temp, ok := c.system.ReadTemperature()
	if !ok {
		return false
	}
	c.lastTemp = temp
	c.hasTemp = true

	if now.Sub(c.lastLog) >= c.cfg.LogInterval {
		c.lastLog = now
		slog.Info("cpu temperature", "celsius", temp)
	}

	if temp > c.cfg.ShutdownThresholdC {
		c.mode = ModeShuttingDown
		slog.Error("thermal emergency, initiating shutdown",
			"celsius", temp,
			"threshold", c.cfg.ShutdownThresholdC,
			"cause", "thermal_breach",
		)
		if err := c.system.RequestShutdown(); err != nil {
			slog.Error("shutdown request failed, manual intervention required", "error", err)
		}
		return true
	}
	return false
}

// LastTemperature returns the most recent reading, if any.
func (c *Controller) LastTemperature() (float64, bool) {
	return c.lastTemp, c.hasTemp
}

// Close stops the stream, blanks the backlight, and restores the run
// governor so the system is not left throttled after exit.
func (c *Controller) Close() {
	if err := c.stream.Stop(); err != nil {
		slog.Warn("stopping capture stream", "error", err)
	}
	c.queue.Drain()
	if err := c.backlight.Set(false); err != nil {
		slog.Warn("cannot switch backlight off", "error", err)
	}
	c.setGovernor(c.cfg.GovernorRun)
}

func (c *Controller) setGovernor(governor string) {
	if err := c.system.SetCPUGovernor(governor); err != nil {
		slog.Warn("cannot set cpu governor, continuing",
			"governor", governor,
			"error", err,
		)
	}
}
