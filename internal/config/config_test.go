package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dannen/lepton-viewer-rpi/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leptonview.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "camera:\n  mock: true\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Camera.Mock {
		t.Error("mock flag lost")
	}
	if cfg.Camera.Width != 160 || cfg.Camera.Height != 120 || cfg.Camera.FPS != 9 {
		t.Errorf("camera defaults = %dx%d@%d", cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.FPS)
	}
	if cfg.Power.ShutdownThresholdC != 75.0 {
		t.Errorf("threshold default = %v", cfg.Power.ShutdownThresholdC)
	}
	if cfg.Buttons.DebounceMS != 300 {
		t.Errorf("debounce default = %d", cfg.Buttons.DebounceMS)
	}
	if cfg.InstanceID == "" {
		t.Error("instance id not generated")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
camera:
  device: /dev/video2
  fps: 27
power:
  shutdown_threshold_c: 70.5
luts:
  dir: /etc/leptonview/luts
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Camera.Device != "/dev/video2" || cfg.Camera.FPS != 27 {
		t.Errorf("camera overrides lost: %+v", cfg.Camera)
	}
	if cfg.Power.ShutdownThresholdC != 70.5 {
		t.Errorf("threshold = %v, want 70.5", cfg.Power.ShutdownThresholdC)
	}
	if cfg.LUTs.Dir != "/etc/leptonview/luts" {
		t.Errorf("lut dir = %q", cfg.LUTs.Dir)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad rotation":     "display:\n  rotation: 45\n",
		"bad gradient":     "luts:\n  gradient_step: 256\n",
		"colliding lines":  "buttons:\n  colormap_line: 7\n  power_line: 7\n",
		"negative fps":     "camera:\n  fps: -1\n",
		"not yaml at all":  "{{{",
	}
	for name, body := range cases {
		if _, err := config.Load(writeConfig(t, body)); err == nil {
			t.Errorf("%s: Load accepted invalid config", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load accepted a missing file")
	}
}
