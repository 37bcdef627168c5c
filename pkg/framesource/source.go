// Package framesource provides camera frame streams for the document scanner.
//
// A Source emits already-grabbed JPEG frames over a channel; the scanner
// owns the cadence by consuming them. Implementations cover a spool
// directory written by an external grabber, a WebRTC remote camera, a
// WebSocket ingest hub, and a scripted mock for tests.
package framesource

import "time"

// Frame is a single camera frame.
type Frame struct {
	// Seq is a monotonically increasing frame number within one source.
	Seq uint64

	// JPEG holds the encoded frame.
	JPEG []byte

	// Width and Height are the pixel dimensions, zero when unknown.
	Width  int
	Height int

	// At is the frame arrival time.
	At time.Time
}

// Empty reports whether the frame carries no image data.
func (f Frame) Empty() bool {
	return len(f.JPEG) == 0
}

// Source is a stream of camera frames.
type Source interface {
	// Frames returns the channel frames are delivered on. The channel is
	// closed when the source shuts down.
	Frames() <-chan Frame

	// Close shuts down the source. No further frames will be sent.
	Close() error
}
