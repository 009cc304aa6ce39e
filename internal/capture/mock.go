package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dannen/lepton-viewer-rpi/internal/types"
)

// Mock generates synthetic UYVY frames at a target rate: a warm blob
// drifting across a cold background, enough signal for the AGC and colormap
// stages to produce something visible.
type Mock struct {
	width  int
	height int
	fps    int

	mu      sync.Mutex
	active  bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	seq     uint64
	emitted uint64
}

// NewMock creates a synthetic source.
func NewMock(width, height, fps int) *Mock {
	return &Mock{width: width, height: height, fps: fps}
}

// Start begins generating frames.
func (m *Mock) Start(ctx context.Context, fn FrameFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return nil
	}
	if m.fps <= 0 {
		return fmt.Errorf("mock source: fps must be positive, got %d", m.fps)
	}

	m.stopCh = make(chan struct{})
	m.active = true
	m.wg.Add(1)
	go m.generate(ctx, m.stopCh, fn)

	slog.Info("mock capture started",
		"resolution", fmt.Sprintf("%dx%d", m.width, m.height),
		"fps", m.fps,
	)
	return nil
}

func (m *Mock) generate(ctx context.Context, stopCh <-chan struct{}, fn FrameFunc) {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(m.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			m.mu.Lock()
			m.seq++
			seq := m.seq
			m.emitted++
			m.mu.Unlock()
			fn(m.frame(seq))
		}
	}
}

// frame paints the drifting blob. UYVY packs two pixels in four bytes as
// U Y0 V Y1; chroma stays neutral (128) so only luma carries signal.
func (m *Mock) frame(seq uint64) *types.Frame {
	data := make([]byte, types.ExpectedSize(m.width, m.height))

	cx := int(seq) % m.width
	cy := (int(seq) / 2) % m.height
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x += 2 {
			i := (y*m.width + x) * 2
			data[i] = 128   // U
			data[i+2] = 128 // V
			data[i+1] = blobLuma(x, y, cx, cy)
			data[i+3] = blobLuma(x+1, y, cx, cy)
		}
	}

	return &types.Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     m.width,
		Height:    m.height,
		Data:      data,
		TraceID:   uuid.New().String(),
	}
}

func blobLuma(x, y, cx, cy int) byte {
	dx := x - cx
	dy := y - cy
	d := dx*dx + dy*dy
	if d > 255 {
		d = 255
	}
	return byte(255 - d)
}

// Stop halts generation.
func (m *Mock) Stop() error {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return nil
	}
	m.active = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	slog.Info("mock capture stopped", "frames_emitted", m.emitted)
	return nil
}

// Close stops generation; the mock holds no device.
func (m *Mock) Close() error {
	return m.Stop()
}

// Stats returns producer counters.
func (m *Mock) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Emitted: m.emitted}
}
