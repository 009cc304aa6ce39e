package power_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dannen/lepton-viewer-rpi/internal/power"
)

type fakeStream struct {
	running  bool
	starts   int
	stops    int
	startErr error
}

func (s *fakeStream) Start() error {
	s.starts++
	if s.startErr != nil {
		return s.startErr
	}
	s.running = true
	return nil
}

func (s *fakeStream) Stop() error {
	s.stops++
	s.running = false
	return nil
}

type fakeQueue struct{ drained int }

func (q *fakeQueue) Drain() int { q.drained++; return 2 }

type fakeBacklight struct{ on bool }

func (b *fakeBacklight) Set(on bool) error { b.on = on; return nil }

type fakeSystem struct {
	governor    string
	governorErr error
	temp        float64
	hasTemp     bool
	shutdowns   int
}

func (s *fakeSystem) SetCPUGovernor(g string) error {
	if s.governorErr != nil {
		return s.governorErr
	}
	s.governor = g
	return nil
}

func (s *fakeSystem) ReadTemperature() (float64, bool) { return s.temp, s.hasTemp }
func (s *fakeSystem) RequestShutdown() error           { s.shutdowns++; return nil }

func testConfig() power.Config {
	return power.Config{
		GovernorRun:        "ondemand",
		GovernorSave:       "powersave",
		ShutdownThresholdC: 75.0,
		CheckInterval:      0, // every call samples, keeps tests time-free
		LogInterval:        time.Hour,
	}
}

func newController(sys *fakeSystem) (*power.Controller, *fakeStream, *fakeQueue, *fakeBacklight) {
	st := &fakeStream{}
	q := &fakeQueue{}
	b := &fakeBacklight{}
	c := power.New(testConfig(), st, q, b, sys)
	return c, st, q, b
}

// TestToggleRoundTrip drives RUNNING -> POWERSAVE -> RUNNING through the
// button event and checks the side effects of each transition: stream
// stopped + queue drained + backlight off on the way down, stream restarted
// + backlight on on the way up.
func TestToggleRoundTrip(t *testing.T) {
	sys := &fakeSystem{hasTemp: true, temp: 45}
	c, st, q, b := newController(sys)

	if err := c.Start(time.Now()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if c.Mode() != power.ModeRunning || !st.running || !b.on {
		t.Fatalf("after Start: mode=%v stream=%v backlight=%v", c.Mode(), st.running, b.on)
	}
	if sys.governor != "ondemand" {
		t.Errorf("governor = %q, want ondemand", sys.governor)
	}

	c.Toggle()
	if c.Mode() != power.ModePowerSave {
		t.Fatalf("mode after toggle = %v, want powersave", c.Mode())
	}
	if st.running || b.on {
		t.Errorf("powersave left stream=%v backlight=%v", st.running, b.on)
	}
	if q.drained == 0 {
		t.Error("queue was not drained entering powersave")
	}
	if sys.governor != "powersave" {
		t.Errorf("governor = %q, want powersave", sys.governor)
	}

	c.Toggle()
	if c.Mode() != power.ModeRunning || !st.running || !b.on {
		t.Fatalf("after second toggle: mode=%v stream=%v backlight=%v", c.Mode(), st.running, b.on)
	}
	if st.starts != 2 {
		t.Errorf("stream starts = %d, want 2", st.starts)
	}
}

// TestThermalBreachForcesShutdown simulates an 80C reading against a 75C
// threshold and expects SHUTTING_DOWN plus the OS shutdown request, from
// RUNNING.
func TestThermalBreachForcesShutdown(t *testing.T) {
	sys := &fakeSystem{hasTemp: true, temp: 80.0}
	c, _, _, _ := newController(sys)
	if err := c.Start(time.Now()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !c.CheckThermal(time.Now().Add(time.Second)) {
		t.Fatal("CheckThermal did not trigger at 80C with threshold 75C")
	}
	if c.Mode() != power.ModeShuttingDown {
		t.Fatalf("mode = %v, want shutting_down", c.Mode())
	}
	if sys.shutdowns != 1 {
		t.Errorf("shutdown requests = %d, want 1", sys.shutdowns)
	}
}

// TestThermalBreachFromPowerSave: the emergency bypasses the current mode.
func TestThermalBreachFromPowerSave(t *testing.T) {
	sys := &fakeSystem{hasTemp: true, temp: 90.0}
	c, _, _, _ := newController(sys)
	if err := c.Start(time.Now()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	c.Toggle() // into powersave

	if !c.CheckThermal(time.Now().Add(time.Second)) {
		t.Fatal("CheckThermal did not trigger from powersave")
	}
	if c.Mode() != power.ModeShuttingDown {
		t.Fatalf("mode = %v, want shutting_down", c.Mode())
	}
}

// TestShuttingDownIgnoresInput: the terminal state accepts no further
// toggles.
func TestShuttingDownIgnoresInput(t *testing.T) {
	sys := &fakeSystem{hasTemp: true, temp: 99}
	c, st, _, _ := newController(sys)
	if err := c.Start(time.Now()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	c.CheckThermal(time.Now().Add(time.Second))

	startsBefore := st.starts
	c.Toggle()
	if c.Mode() != power.ModeShuttingDown {
		t.Fatalf("toggle escaped shutting_down: mode=%v", c.Mode())
	}
	if st.starts != startsBefore {
		t.Error("toggle in shutting_down touched the stream")
	}
}

// TestBelowThresholdNoShutdown: a healthy reading records the temperature
// and changes nothing.
func TestBelowThresholdNoShutdown(t *testing.T) {
	sys := &fakeSystem{hasTemp: true, temp: 60.0}
	c, _, _, _ := newController(sys)
	if err := c.Start(time.Now()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if c.CheckThermal(time.Now().Add(time.Second)) {
		t.Fatal("CheckThermal triggered below threshold")
	}
	if temp, ok := c.LastTemperature(); !ok || temp != 60.0 {
		t.Errorf("LastTemperature = (%v, %v), want (60, true)", temp, ok)
	}
	if sys.shutdowns != 0 {
		t.Errorf("unexpected shutdown request")
	}
}

// TestCheckIntervalRespected: with a 30s interval, an immediate second call
// does not sample again.
func TestCheckIntervalRespected(t *testing.T) {
	sys := &fakeSystem{hasTemp: true, temp: 99}
	cfg := testConfig()
	cfg.CheckInterval = 30 * time.Second
	st := &fakeStream{}
	c := power.New(cfg, st, &fakeQueue{}, &fakeBacklight{}, sys)
	now := time.Now()
	if err := c.Start(now); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if c.CheckThermal(now.Add(time.Second)) {
		t.Fatal("sampled before the poll interval elapsed")
	}
	if !c.CheckThermal(now.Add(31 * time.Second)) {
		t.Fatal("did not sample after the poll interval elapsed")
	}
}

// TestGovernorFailureIsNotFatal: the governor mechanism being unavailable
// must not block mode transitions.
func TestGovernorFailureIsNotFatal(t *testing.T) {
	sys := &fakeSystem{hasTemp: true, temp: 40, governorErr: errors.New("cpufreq-set: not found")}
	c, st, _, _ := newController(sys)
	if err := c.Start(time.Now()); err != nil {
		t.Fatalf("Start failed despite governor error: %v", err)
	}
	c.Toggle()
	if c.Mode() != power.ModePowerSave {
		t.Fatalf("toggle blocked by governor failure: mode=%v", c.Mode())
	}
	if st.running {
		t.Error("stream still running in powersave")
	}
}

// TestStreamRestartFailureRecoverable: a failed restart on toggle leaves the
// controller in RUNNING and the next toggle cycle retries.
func TestStreamRestartFailureRecoverable(t *testing.T) {
	sys := &fakeSystem{hasTemp: true, temp: 40}
	c, st, _, _ := newController(sys)
	if err := c.Start(time.Now()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	c.Toggle() // powersave

	st.startErr = errors.New("uvc busy")
	c.Toggle() // back to running, start fails
	if c.Mode() != power.ModeRunning {
		t.Fatalf("mode = %v, want running despite start failure", c.Mode())
	}

	st.startErr = nil
	c.Toggle() // powersave
	c.Toggle() // running, retry succeeds
	if !st.running {
		t.Error("stream not recovered on subsequent toggle")
	}
}
