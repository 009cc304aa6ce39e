// Package capture provides the frame sources the viewer can run against:
// a UVC thermal camera on V4L2 and a synthetic generator for development
// and tests.
package capture

import (
	"context"

	"github.com/dannen/lepton-viewer-rpi/internal/types"
)

// FrameFunc receives each validated frame from a running source. It is
// invoked from the source's own goroutine and must not block.
type FrameFunc func(*types.Frame)

// Source is a start/stoppable producer of raw frames.
//
// Lifecycle: open → Start → Stop → (Start again) → Close. Start after Stop
// restarts the stream; this is how power-save toggling recovers the device.
type Source interface {
	// Start begins emitting frames to fn. Non-blocking.
	Start(ctx context.Context, fn FrameFunc) error
	// Stop halts frame emission. Idempotent.
	Stop() error
	// Close releases the underlying device. The source is unusable after.
	Close() error
}

// Stats is a snapshot of source counters.
type Stats struct {
	Emitted  uint64
	Rejected uint64 // buffers discarded at the producer boundary
}
