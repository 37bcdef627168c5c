package scan

import (
	"time"

	"github.com/teslashibe/go-docscan/internal/log"
	"github.com/teslashibe/go-docscan/pkg/geometry"
)

// RectangleChange classifies a detection transition.
type RectangleChange int

const (
	// RectangleGained fires when a document appears after a no-detection frame.
	RectangleGained RectangleChange = iota
	// RectangleLost fires when detection drops after a document was in view.
	RectangleLost
	// RectangleMoved fires when the detected outline jumps beyond the
	// similarity tolerance while staying in view.
	RectangleMoved
)

// String returns the wire name of the change.
func (c RectangleChange) String() string {
	switch c {
	case RectangleGained:
		return "gained"
	case RectangleLost:
		return "lost"
	case RectangleMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// RectangleEvent reports a detection state change. Frames that merely extend
// the current stable run do not produce events.
type RectangleEvent struct {
	// Change says what happened.
	Change RectangleChange

	// Quad is the new outline, nil for RectangleLost.
	Quad *geometry.Quadrilateral

	// StableCount is the run length after this frame.
	StableCount int

	// FrameSeq is the frame that caused the change.
	FrameSeq uint64

	// At is when the frame was evaluated.
	At time.Time
}

// Sink receives scanner events. Implementations must not block; slow
// consumers should hand off to their own goroutine.
type Sink interface {
	// RectangleChanged is called when detection gains, loses or moves
	// the document outline.
	RectangleChanged(RectangleEvent)

	// PictureTaken is called once per completed capture attempt,
	// successful or not.
	PictureTaken(Outcome)
}

// Sinks fans events out to several sinks in order.
type Sinks []Sink

// RectangleChanged implements Sink.
func (s Sinks) RectangleChanged(ev RectangleEvent) {
	for _, sink := range s {
		sink.RectangleChanged(ev)
	}
}

// PictureTaken implements Sink.
func (s Sinks) PictureTaken(out Outcome) {
	for _, sink := range s {
		sink.PictureTaken(out)
	}
}

// SinkFuncs adapts plain functions into a Sink. Nil fields are skipped.
type SinkFuncs struct {
	OnRectangle func(RectangleEvent)
	OnPicture   func(Outcome)
}

// RectangleChanged implements Sink.
func (s SinkFuncs) RectangleChanged(ev RectangleEvent) {
	if s.OnRectangle != nil {
		s.OnRectangle(ev)
	}
}

// PictureTaken implements Sink.
func (s SinkFuncs) PictureTaken(out Outcome) {
	if s.OnPicture != nil {
		s.OnPicture(out)
	}
}

// LogSink writes events to the structured log. Useful as a default sink in
// headless deployments.
type LogSink struct{}

// RectangleChanged implements Sink.
func (LogSink) RectangleChanged(ev RectangleEvent) {
	log.Debug("rectangle changed",
		"change", ev.Change.String(),
		"stable_count", ev.StableCount,
		"frame_seq", ev.FrameSeq)
}

// PictureTaken implements Sink.
func (LogSink) PictureTaken(out Outcome) {
	if out.Err != nil {
		log.Warn("picture taken with error",
			"request_id", out.RequestID,
			"mode", out.Mode.String(),
			"ok", out.OK,
			"error", out.Err)
		return
	}
	log.Info("picture taken",
		"request_id", out.RequestID,
		"mode", out.Mode.String(),
		"shots", out.Shots)
}

var (
	_ Sink = Sinks(nil)
	_ Sink = SinkFuncs{}
	_ Sink = LogSink{}
)
