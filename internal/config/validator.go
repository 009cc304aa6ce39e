package config

import "fmt"

// Validate checks ranges that would otherwise fail deep inside a component.
func Validate(c *Config) error {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("camera resolution %dx%d is not positive", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera fps %d is not positive", c.Camera.FPS)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("display resolution %dx%d is not positive", c.Display.Width, c.Display.Height)
	}
	switch c.Display.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("display rotation %d must be 0, 90, 180 or 270", c.Display.Rotation)
	}
	if c.Buttons.ColormapLine == c.Buttons.PowerLine {
		return fmt.Errorf("both buttons mapped to line %d", c.Buttons.PowerLine)
	}
	if c.Buttons.DebounceMS < 0 {
		return fmt.Errorf("debounce %dms is negative", c.Buttons.DebounceMS)
	}
	if c.Power.ShutdownThresholdC <= 0 {
		return fmt.Errorf("shutdown threshold %.1fC is not positive", c.Power.ShutdownThresholdC)
	}
	if c.Power.CheckIntervalS <= 0 || c.Power.LogIntervalS <= 0 {
		return fmt.Errorf("thermal intervals must be positive")
	}
	if c.LUTs.GradientStep < 1 || c.LUTs.GradientStep > 255 {
		return fmt.Errorf("gradient step %d must be in [1,255]", c.LUTs.GradientStep)
	}
	if c.Viewer.PopTimeoutMS <= 0 || c.Viewer.IdleSleepMS <= 0 {
		return fmt.Errorf("viewer timings must be positive")
	}
	if c.MQTT.Broker != "" && c.MQTT.IntervalS <= 0 {
		return fmt.Errorf("mqtt interval must be positive when a broker is configured")
	}
	return nil
}
