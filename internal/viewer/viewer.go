// Package viewer runs the fixed-cadence render loop: poll thermal state,
// poll buttons, pull a frame, process it, push it to the display.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/dannen/lepton-viewer-rpi/internal/capture"
	"github.com/dannen/lepton-viewer-rpi/internal/config"
	"github.com/dannen/lepton-viewer-rpi/internal/lut"
	"github.com/dannen/lepton-viewer-rpi/internal/power"
	"github.com/dannen/lepton-viewer-rpi/internal/process"
	"github.com/dannen/lepton-viewer-rpi/internal/queue"
)

// Display is the blit surface the viewer renders to.
type Display interface {
	Blit(*image.RGBA) error
	Width() int
	Height() int
}

// Button is a momentary input; Pressed reports the debounced-raw level and
// the viewer applies its own debounce window on top.
type Button interface {
	Pressed() (bool, error)
}

// Options wires the viewer's collaborators.
type Options struct {
	Config    *config.Config
	Source    capture.Source
	Display   Display
	Backlight power.Backlight
	ButtonA   Button // advances the colormap
	ButtonB   Button // toggles the power mode
	System    power.System
	Catalog   *lut.Catalog
}

// Status is a read-only snapshot for diagnostics and telemetry.
type Status struct {
	Mode           string  `json:"mode"`
	Colormap       string  `json:"colormap"`
	FPS            float64 `json:"fps"`
	TemperatureC   float64 `json:"temperature_c"`
	HasTemperature bool    `json:"has_temperature"`
	FramesRendered uint64  `json:"frames_rendered"`
}

// Viewer owns the session state: colormap index, debounce stamps, counters.
// All of it is mutated only on the render goroutine; Status is the one
// cross-goroutine view and has its own lock.
type Viewer struct {
	cfg     *config.Config
	source  capture.Source
	display Display
	buttonA Button
	buttonB Button
	catalog *lut.Catalog

	queue *queue.FrameQueue
	proc  *process.Processor
	ctl   *power.Controller

	runCtx context.Context

	colormapIndex int
	lastA         time.Time
	lastB         time.Time
	frameCount    uint64
	totalFrames   uint64
	windowStart   time.Time
	lastFPS       float64

	statusMu sync.RWMutex
	status   Status
}

// New assembles the pipeline around the supplied collaborators.
func New(opts Options) (*Viewer, error) {
	if opts.Catalog == nil || opts.Catalog.Len() == 0 {
		return nil, fmt.Errorf("viewer needs a non-empty colormap catalog")
	}

	v := &Viewer{
		cfg:     opts.Config,
		source:  opts.Source,
		display: opts.Display,
		buttonA: opts.ButtonA,
		buttonB: opts.ButtonB,
		catalog: opts.Catalog,
		queue:   queue.New(),
		proc:    process.New(opts.Display.Width(), opts.Display.Height()),
	}

	pcfg := opts.Config.Power
	v.ctl = power.New(power.Config{
		GovernorRun:        pcfg.GovernorRun,
		GovernorSave:       pcfg.GovernorSave,
		ShutdownThresholdC: pcfg.ShutdownThresholdC,
		CheckInterval:      time.Duration(pcfg.CheckIntervalS) * time.Second,
		LogInterval:        time.Duration(pcfg.LogIntervalS) * time.Second,
	}, &streamAdapter{v: v}, v.queue, opts.Backlight, opts.System)

	return v, nil
}

// streamAdapter binds the capture source and the queue's push callback so
// the power controller can start and stop the stream without knowing
// either.
type streamAdapter struct {
	v *Viewer
}

func (s *streamAdapter) Start() error {
	return s.v.source.Start(s.v.runCtx, s.v.queue.Push)
}

func (s *streamAdapter) Stop() error {
	return s.v.source.Stop()
}

// Run drives the loop until the context is cancelled or a thermal shutdown
// fires. The initial stream start failing is the caller's fatal error.
func (v *Viewer) Run(ctx context.Context) error {
	v.runCtx = ctx

	now := time.Now()
	if err := v.ctl.Start(now); err != nil {
		return fmt.Errorf("start capture stream: %w", err)
	}
	v.windowStart = now
	v.updateStatus()
	defer v.cleanup()

	debounce := time.Duration(v.cfg.Buttons.DebounceMS) * time.Millisecond
	popTimeout := time.Duration(v.cfg.Viewer.PopTimeoutMS) * time.Millisecond
	idleSleep := time.Duration(v.cfg.Viewer.IdleSleepMS) * time.Millisecond
	statsInterval := time.Duration(v.cfg.Viewer.StatsIntervalS) * time.Second
	graceDelay := time.Duration(v.cfg.Viewer.GraceDelayS) * time.Second

	slog.Info("viewer loop starting",
		"colormaps", v.catalog.Len(),
		"display", fmt.Sprintf("%dx%d", v.display.Width(), v.display.Height()),
	)

	for {
		if ctx.Err() != nil {
			return nil
		}
		now = time.Now()

		if v.ctl.CheckThermal(now) {
			v.updateStatus()
			slog.Info("render loop exiting after thermal shutdown", "grace_delay", graceDelay)
			sleepCtx(ctx, graceDelay)
			return nil
		}

		v.pollButtons(now, debounce)

		if v.ctl.Mode() != power.ModeRunning {
			v.updateStatus()
			sleepCtx(ctx, idleSleep)
			continue
		}

		f, ok := v.queue.Pop(popTimeout)
		if !ok {
			continue // timeout is not an error, just retry
		}

		table := v.catalog.At(v.colormapIndex)
		img, err := v.proc.Render(f, table)
		switch {
		case errors.Is(err, process.ErrTableValidation):
			slog.Warn("colormap failed validation, rendered grayscale",
				"table", table.Name,
				"error", err,
			)
		case err != nil:
			slog.Warn("frame render failed", "seq", f.Seq, "error", err)
			continue
		}

		if err := v.display.Blit(img); err != nil {
			slog.Warn("display blit failed", "error", err)
		}

		v.frameCount++
		v.totalFrames++
		if elapsed := now.Sub(v.windowStart); elapsed >= statsInterval {
			v.lastFPS = float64(v.frameCount) / elapsed.Seconds()
			qs := v.queue.Stats()
			slog.Debug("render throughput",
				"fps", float64(int(v.lastFPS*100))/100,
				"frames", v.frameCount,
				"queue_dropped", qs.Dropped,
			)
			v.frameCount = 0
			v.windowStart = now
		}
		v.updateStatus()
	}
}

// pollButtons applies the two independent debounce windows. Button A cycles
// the colormap; button B toggles the operating mode.
func (v *Viewer) pollButtons(now time.Time, debounce time.Duration) {
	if v.pressed(v.buttonA) && now.Sub(v.lastA) > debounce {
		v.lastA = now
		v.colormapIndex = (v.colormapIndex + 1) % v.catalog.Len()
		slog.Info("colormap selected",
			"name", v.catalog.At(v.colormapIndex).Name,
			"index", v.colormapIndex,
		)
	}

	if v.pressed(v.buttonB) && now.Sub(v.lastB) > debounce {
		v.lastB = now
		v.ctl.Toggle()
		if v.ctl.Mode() == power.ModePowerSave {
			v.blankDisplay()
		}
	}
}

func (v *Viewer) pressed(b Button) bool {
	p, err := b.Pressed()
	if err != nil {
		slog.Warn("button read failed", "error", err)
		return false
	}
	return p
}

func (v *Viewer) blankDisplay() {
	black := image.NewRGBA(image.Rect(0, 0, v.display.Width(), v.display.Height()))
	if err := v.display.Blit(black); err != nil {
		slog.Warn("cannot blank display", "error", err)
	}
}

func (v *Viewer) updateStatus() {
	temp, hasTemp := v.ctl.LastTemperature()
	s := Status{
		Mode:           v.ctl.Mode().String(),
		Colormap:       v.catalog.At(v.colormapIndex).Name,
		FPS:            v.lastFPS,
		TemperatureC:   temp,
		HasTemperature: hasTemp,
		FramesRendered: v.totalFrames,
	}
	v.statusMu.Lock()
	v.status = s
	v.statusMu.Unlock()
}

// Status returns the most recent loop snapshot. Safe from any goroutine.
func (v *Viewer) Status() Status {
	v.statusMu.RLock()
	defer v.statusMu.RUnlock()
	return v.status
}

func (v *Viewer) cleanup() {
	slog.Info("viewer cleaning up")
	v.ctl.Close()
	v.blankDisplay()
	v.queue.Close()
	slog.Info("viewer cleanup finished", "frames_rendered", v.totalFrames)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
