package types

import "time"

// BytesPerPixel is the size of one packed UYVY pixel pair component.
// The camera delivers 16 bits per pixel (interleaved luma/chroma).
const BytesPerPixel = 2

// Frame is a single raw UYVY sample from the capture source.
//
// Immutability contract: Data must not be modified after the frame is
// published. The queue and the processor share it by reference.
type Frame struct {
	// Seq is a monotonic sequence number assigned by the capture source.
	Seq uint64

	// Timestamp is when the frame was received from the driver.
	Timestamp time.Time

	// Width in pixels
	Width int

	// Height in pixels
	Height int

	// Data is the packed UYVY buffer, exactly Width*Height*BytesPerPixel bytes.
	Data []byte

	// TraceID identifies the frame across pipeline stages in debug logs.
	TraceID string
}

// ExpectedSize returns the byte length a valid buffer must have for the
// given dimensions.
func ExpectedSize(width, height int) int {
	return width * height * BytesPerPixel
}

// Valid reports whether the frame satisfies the producer-boundary invariant:
// non-empty buffer of exactly Width*Height*BytesPerPixel bytes.
func (f *Frame) Valid() bool {
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return false
	}
	return len(f.Data) == ExpectedSize(f.Width, f.Height)
}
