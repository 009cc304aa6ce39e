// Package queue implements the bounded hand-off buffer between the capture
// callback (producer) and the render loop (consumer).
//
// Philosophy: drop frames, never block the producer. A stale thermal frame
// has no value, so when the buffer is full the oldest frame is evicted to
// admit the new one.
package queue

import (
	"sync"
	"time"

	"github.com/dannen/lepton-viewer-rpi/internal/types"
)

// Capacity is the number of in-flight frames the queue holds.
const Capacity = 2

// Stats is a snapshot of queue counters.
type Stats struct {
	Pushed  uint64
	Popped  uint64
	Dropped uint64 // frames evicted by drop-oldest pushes
	Drained uint64 // frames cleared by Drain
}

// FrameQueue is a drop-oldest, keep-latest buffer of at most Capacity
// frames.
//
// Concurrency contract: safe under exactly one producer (the capture
// callback, arbitrary goroutine) and one consumer (the render loop). Push
// never blocks; Pop blocks up to a bounded timeout.
type FrameQueue struct {
	mu     sync.Mutex
	frames []*types.Frame
	stats  Stats
	closed bool

	notify chan struct{} // capacity 1: pending-frame signal for the consumer
	done   chan struct{}
}

// New returns an empty queue.
func New() *FrameQueue {
	return &FrameQueue{
		frames: make([]*types.Frame, 0, Capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push admits a frame, evicting the oldest buffered frame if the queue is
// full. Frames failing the dimension/length invariant are discarded at this
// boundary and never enqueued. Never blocks.
func (q *FrameQueue) Push(f *types.Frame) {
	if !f.Valid() {
		q.mu.Lock()
		q.stats.Dropped++
		q.mu.Unlock()
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if len(q.frames) == Capacity {
		copy(q.frames, q.frames[1:])
		q.frames = q.frames[:Capacity-1]
		q.stats.Dropped++
	}
	q.frames = append(q.frames, f)
	q.stats.Pushed++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest buffered frame, waiting up to timeout
// for one to arrive. A timeout is not an error: it returns (nil, false) and
// the caller simply retries on its next iteration.
func (q *FrameQueue) Pop(timeout time.Duration) (*types.Frame, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.frames) > 0 {
			f := q.frames[0]
			copy(q.frames, q.frames[1:])
			q.frames = q.frames[:len(q.frames)-1]
			q.stats.Popped++
			q.mu.Unlock()
			return f, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-q.notify:
		case <-deadline.C:
			return nil, false
		case <-q.done:
			return nil, false
		}
	}
}

// Drain discards all buffered frames and returns how many were cleared.
// Called when the stream stops so power-save never renders stale frames.
func (q *FrameQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.frames)
	q.frames = q.frames[:0]
	q.stats.Drained += uint64(n)
	return n
}

// Close releases a blocked consumer and makes further pushes no-ops.
// Idempotent.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.done)
}

// Stats returns a snapshot of the queue counters.
func (q *FrameQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Len returns the number of buffered frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
