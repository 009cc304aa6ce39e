//go:build linux

package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/dannen/lepton-viewer-rpi/internal/types"
)

// UVCConfig describes the camera to open.
type UVCConfig struct {
	DevicePath string
	Width      int
	Height     int
	FPS        int
}

// UVC streams packed UYVY frames from a V4L2 capture device.
//
// Goroutine topology: Start spawns one reader goroutine consuming the
// driver's output channel; it validates every buffer at the producer
// boundary and forwards copies to the FrameFunc. Stop tears it down;
// Start may be called again afterwards.
type UVC struct {
	cfg UVCConfig
	dev *device.Device

	mu     sync.Mutex
	active bool
	stopCh chan struct{}
	wg     sync.WaitGroup

	seq      uint64
	emitted  uint64
	rejected uint64
}

// OpenUVC opens and configures the device. Failure here is fatal to
// startup; the caller decides the exit path.
func OpenUVC(cfg UVCConfig) (*UVC, error) {
	dev, err := device.Open(
		cfg.DevicePath,
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtUYVY,
			Width:       uint32(cfg.Width),
			Height:      uint32(cfg.Height),
			Field:       v4l2.FieldNone,
		}),
		device.WithFPS(uint32(cfg.FPS)),
	)
	if err != nil {
		return nil, fmt.Errorf("open capture device %s: %w", cfg.DevicePath, err)
	}

	slog.Info("capture device opened",
		"device", cfg.DevicePath,
		"format", "UYVY",
		"resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"fps", cfg.FPS,
	)

	return &UVC{cfg: cfg, dev: dev}, nil
}

// Start begins streaming and spawns the reader goroutine.
func (u *UVC) Start(ctx context.Context, fn FrameFunc) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.active {
		return nil
	}

	if err := u.dev.Start(ctx); err != nil {
		return fmt.Errorf("start capture stream: %w", err)
	}

	u.stopCh = make(chan struct{})
	u.active = true
	u.wg.Add(1)
	go u.readFrames(ctx, u.stopCh, fn)

	slog.Info("capture stream started", "device", u.cfg.DevicePath)
	return nil
}

func (u *UVC) readFrames(ctx context.Context, stopCh <-chan struct{}, fn FrameFunc) {
	defer u.wg.Done()

	expected := types.ExpectedSize(u.cfg.Width, u.cfg.Height)
	out := u.dev.GetOutput()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case buf, ok := <-out:
			if !ok {
				slog.Warn("capture output channel closed", "device", u.cfg.DevicePath)
				return
			}
			if len(buf) != expected {
				u.mu.Lock()
				u.rejected++
				rejected := u.rejected
				u.mu.Unlock()
				if rejected%100 == 1 {
					slog.Warn("discarding malformed capture buffer",
						"got_bytes", len(buf),
						"want_bytes", expected,
						"rejected_total", rejected,
					)
				}
				continue
			}

			// The driver reuses its buffers; the frame owns a copy.
			data := make([]byte, expected)
			copy(data, buf)

			u.mu.Lock()
			u.seq++
			seq := u.seq
			u.emitted++
			u.mu.Unlock()

			fn(&types.Frame{
				Seq:       seq,
				Timestamp: time.Now(),
				Width:     u.cfg.Width,
				Height:    u.cfg.Height,
				Data:      data,
				TraceID:   uuid.New().String(),
			})
		}
	}
}

// Stop halts streaming. Safe to call when already stopped.
func (u *UVC) Stop() error {
	u.mu.Lock()
	if !u.active {
		u.mu.Unlock()
		return nil
	}
	u.active = false
	close(u.stopCh)
	u.mu.Unlock()

	u.wg.Wait()

	if err := u.dev.Stop(); err != nil {
		return fmt.Errorf("stop capture stream: %w", err)
	}
	slog.Info("capture stream stopped", "device", u.cfg.DevicePath)
	return nil
}

// Close stops streaming and releases the device.
func (u *UVC) Close() error {
	if err := u.Stop(); err != nil {
		slog.Warn("stopping stream during close", "error", err)
	}
	return u.dev.Close()
}

// Stats returns producer counters.
func (u *UVC) Stats() Stats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return Stats{Emitted: u.emitted, Rejected: u.rejected}
}
