package viewer

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/dannen/lepton-viewer-rpi/internal/capture"
	"github.com/dannen/lepton-viewer-rpi/internal/config"
	"github.com/dannen/lepton-viewer-rpi/internal/lut"
	"github.com/dannen/lepton-viewer-rpi/internal/power"
)

type fakeDisplay struct {
	mu    sync.Mutex
	blits int
	last  *image.RGBA
}

func (d *fakeDisplay) Blit(img *image.RGBA) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blits++
	d.last = img
	return nil
}

func (d *fakeDisplay) Width() int  { return 240 }
func (d *fakeDisplay) Height() int { return 240 }

func (d *fakeDisplay) blitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blits
}

type fakeButton struct {
	mu      sync.Mutex
	pressed bool
}

func (b *fakeButton) Pressed() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pressed, nil
}

func (b *fakeButton) set(p bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pressed = p
}

type fakeBacklight struct {
	on bool
}

func (b *fakeBacklight) Set(on bool) error {
	b.on = on
	return nil
}

type fakeSystem struct {
	mu       sync.Mutex
	tempC    float64
	governor string
	shutdown bool
}

func (s *fakeSystem) SetCPUGovernor(g string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.governor = g
	return nil
}

func (s *fakeSystem) ReadTemperature() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempC, true
}

func (s *fakeSystem) RequestShutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	return nil
}

func (s *fakeSystem) shutdownRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

func testCatalog(t *testing.T) *lut.Catalog {
	t.Helper()
	c := lut.NewCatalog()
	c.RegisterBuiltin("HOT", 11)
	if err := c.AddGradient("RED_GRADIENT", lut.ChannelRed, 64); err != nil {
		t.Fatalf("AddGradient: %v", err)
	}
	if err := c.AddGradient("GREEN_GRADIENT", lut.ChannelGreen, 64); err != nil {
		t.Fatalf("AddGradient: %v", err)
	}
	return c
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Camera.Width = 160
	cfg.Camera.Height = 120
	cfg.Power.CheckIntervalS = 0 // check on every pass
	cfg.Viewer.PopTimeoutMS = 50
	cfg.Viewer.IdleSleepMS = 5
	cfg.Viewer.GraceDelayS = 0
	return cfg
}

// buildViewer wires a viewer around fakes and a mock capture source. The
// returned cleanup is registered with the test.
func buildViewer(t *testing.T, tempC float64) (*Viewer, *fakeDisplay, *fakeButton, *fakeButton, *fakeSystem) {
	t.Helper()

	disp := &fakeDisplay{}
	btnA := &fakeButton{}
	btnB := &fakeButton{}
	sys := &fakeSystem{tempC: tempC}
	src := capture.NewMock(160, 120, 30)
	t.Cleanup(func() { _ = src.Close() })

	v, err := New(Options{
		Config:    testConfig(),
		Source:    src,
		Display:   disp,
		Backlight: &fakeBacklight{},
		ButtonA:   btnA,
		ButtonB:   btnB,
		System:    sys,
		Catalog:   testCatalog(t),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v, disp, btnA, btnB, sys
}

// Two colormap presses inside the debounce window count once; a third press
// outside the window counts again.
func TestColormapDebounce(t *testing.T) {
	v, _, btnA, _, _ := buildViewer(t, 40.0)
	debounce := 300 * time.Millisecond
	t0 := time.Now()

	btnA.set(true)
	v.pollButtons(t0, debounce)
	if v.colormapIndex != 1 {
		t.Fatalf("after first press colormapIndex = %d, want 1", v.colormapIndex)
	}

	// held through the next poll 100ms later: still one advance
	v.pollButtons(t0.Add(100*time.Millisecond), debounce)
	if v.colormapIndex != 1 {
		t.Fatalf("press inside debounce window advanced colormap to %d", v.colormapIndex)
	}

	v.pollButtons(t0.Add(400*time.Millisecond), debounce)
	if v.colormapIndex != 2 {
		t.Fatalf("press outside debounce window: colormapIndex = %d, want 2", v.colormapIndex)
	}
}

func TestColormapCycleWrapsAround(t *testing.T) {
	v, _, btnA, _, _ := buildViewer(t, 40.0)
	debounce := 300 * time.Millisecond
	now := time.Now()

	btnA.set(true)
	for i := 0; i < v.catalog.Len(); i++ {
		v.pollButtons(now, debounce)
		now = now.Add(debounce + time.Millisecond)
	}
	if v.colormapIndex != 0 {
		t.Fatalf("after full cycle colormapIndex = %d, want 0", v.colormapIndex)
	}
}

// Toggling out of RUNNING blanks the display with a black frame.
func TestPowerToggleBlanksDisplay(t *testing.T) {
	v, disp, _, btnB, _ := buildViewer(t, 40.0)
	v.runCtx = context.Background()
	if err := v.ctl.Start(time.Now()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer v.ctl.Close()

	debounce := 300 * time.Millisecond
	t0 := time.Now()

	btnB.set(true)
	v.pollButtons(t0, debounce) // RUNNING -> POWERSAVE
	if got := v.ctl.Mode(); got != power.ModePowerSave {
		t.Fatalf("mode after toggle = %v, want %v", got, power.ModePowerSave)
	}
	if disp.blitCount() != 1 {
		t.Fatalf("blit count after entering powersave = %d, want 1", disp.blitCount())
	}
	for _, px := range disp.last.Pix {
		if px != 0 {
			t.Fatalf("powersave blank frame is not black")
		}
	}

	v.pollButtons(t0.Add(400*time.Millisecond), debounce) // back to RUNNING
	if got := v.ctl.Mode(); got != power.ModeRunning {
		t.Fatalf("mode after second toggle = %v, want %v", got, power.ModeRunning)
	}
}

// The full loop against the mock source: frames reach the display and the
// status snapshot reflects the running session.
func TestRunRendersFrames(t *testing.T) {
	v, disp, _, _, _ := buildViewer(t, 40.0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()

	deadline := time.After(3 * time.Second)
	for disp.blitCount() < 3 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("no frames reached the display, blits = %d", disp.blitCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := v.Status()
	if st.Colormap != "HOT" {
		t.Errorf("status colormap = %q, want HOT", st.Colormap)
	}
	if st.FramesRendered == 0 {
		t.Errorf("status reports zero rendered frames")
	}
	if !st.HasTemperature || st.TemperatureC != 40.0 {
		t.Errorf("status temperature = %v (%v), want 40.0", st.TemperatureC, st.HasTemperature)
	}
}

// A temperature over the shutdown threshold ends the loop and requests a
// system shutdown.
func TestRunExitsOnThermalBreach(t *testing.T) {
	v, _, _, _, sys := buildViewer(t, 90.0)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := v.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("loop did not exit on its own before the test timeout")
	}
	if !sys.shutdownRequested() {
		t.Fatalf("thermal breach did not request a shutdown")
	}
	if got := v.Status().Mode; got != power.ModeShuttingDown.String() {
		t.Fatalf("status mode = %q, want %q", got, power.ModeShuttingDown.String())
	}
}
