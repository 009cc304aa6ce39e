// Package sysctl implements the OS capability surface the power controller
// depends on: CPU scaling governor, thermal zone sensor, and the shutdown
// request. Paths and command execution are injectable for tests.
package sysctl

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

const (
	defaultGovernorPath = "/sys/devices/system/cpu/cpu0/cpufreq/scaling_governor"
	defaultThermalPath  = "/sys/class/thermal/thermal_zone0/temp"
)

// Control talks to the host OS. The zero value is not usable; use New.
type Control struct {
	GovernorPath string
	ThermalPath  string

	// run executes an external command and returns its combined output.
	run func(name string, args ...string) ([]byte, error)
}

// New returns a Control wired to the standard sysfs paths and real command
// execution.
func New() *Control {
	return &Control{
		GovernorPath: defaultGovernorPath,
		ThermalPath:  defaultThermalPath,
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).CombinedOutput()
		},
	}
}

// SetCPUGovernor switches the scaling governor via cpufreq-set and verifies
// the change through sysfs. The caller treats failure as best-effort.
func (c *Control) SetCPUGovernor(governor string) error {
	out, err := c.run("cpufreq-set", "-g", governor)
	if err != nil {
		return fmt.Errorf("cpufreq-set -g %s: %w (%s)", governor, err, strings.TrimSpace(string(out)))
	}

	current, err := os.ReadFile(c.GovernorPath)
	if err != nil {
		slog.Warn("cannot verify cpu governor", "error", err)
		return nil
	}
	if got := strings.TrimSpace(string(current)); got != governor {
		return fmt.Errorf("governor not applied: requested %s, active %s", governor, got)
	}

	slog.Info("cpu governor set", "governor", governor)
	return nil
}

// ReadTemperature reads the thermal zone in millidegrees Celsius. ok is
// false when the sensor is missing or unreadable.
func (c *Control) ReadTemperature() (float64, bool) {
	raw, err := os.ReadFile(c.ThermalPath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cannot read cpu temperature", "path", c.ThermalPath, "error", err)
		}
		return 0, false
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		slog.Warn("malformed thermal zone reading", "raw", strings.TrimSpace(string(raw)))
		return 0, false
	}
	return float64(milli) / 1000.0, true
}

// RequestShutdown asks the OS to halt now.
func (c *Control) RequestShutdown() error {
	out, err := c.run("shutdown", "-h", "now")
	if err != nil {
		return fmt.Errorf("shutdown request: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}
