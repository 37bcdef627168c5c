package scan

import (
	"time"

	"github.com/teslashibe/go-docscan/pkg/framesource"
	"github.com/teslashibe/go-docscan/pkg/geometry"
)

// Mode says how a capture was requested.
type Mode int

const (
	// ModeAuto marks captures triggered by the stability gate.
	ModeAuto Mode = iota
	// ModeManual marks captures requested explicitly by the host.
	ModeManual
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Stability is a snapshot of the detection stability state after a frame.
type Stability struct {
	// Count is the length of the current run of similar detections.
	Count int

	// Quad is the anchor quadrilateral the run is measured against.
	// Nil while no document is in view.
	Quad *geometry.Quadrilateral
}

// Document is a finished capture: the processed page image plus everything
// known about it.
type Document struct {
	// Data is the encoded image.
	Data []byte

	// Base64 is the text rendering of Data. Empty unless the session
	// encoding asked for it.
	Base64 string

	// Format is the image container, currently always "jpeg".
	Format string

	// Width and Height are the pixel dimensions of the output image.
	Width  int
	Height int

	// Quad is the detected page outline in source-frame coordinates,
	// when the capture had one.
	Quad *geometry.Quadrilateral

	// Text holds recognized text when OCR ran for this capture.
	Text string

	// StoredRef locates the persisted copy (file path or remote id).
	// Empty when persistence was off or failed.
	StoredRef string

	// CapturedAt is when the source frame was grabbed.
	CapturedAt time.Time
}

// Bytes returns the encoded image data.
func (d *Document) Bytes() []byte {
	if d == nil {
		return nil
	}
	return d.Data
}

// Request is one capture order handed to the controller. It carries the
// frame to capture so the pipeline never reaches back into the scanner.
type Request struct {
	// ID identifies the request in logs, events and errors.
	ID string

	// Mode records whether the gate or the host asked for this capture.
	Mode Mode

	// Frame is the source frame to turn into a document.
	Frame framesource.Frame

	// Quad is the page outline detected on Frame, nil for manual captures
	// taken without a detection.
	Quad *geometry.Quadrilateral

	// Config is the session configuration frozen at request time.
	Config Config

	// At is when the request was accepted.
	At time.Time
}

// Outcome reports one completed capture attempt, success or not.
type Outcome struct {
	// RequestID ties the outcome back to its Request.
	RequestID string

	// Mode is copied from the request.
	Mode Mode

	// OK is true when the pipeline produced a document. A failed store
	// still counts as OK; the document exists and is delivered.
	OK bool

	// Document is the capture result, nil when OK is false.
	Document *Document

	// Err carries the pipeline or store failure, nil on full success.
	Err error

	// Shots is the session shot count after this attempt.
	Shots int

	// At is when the attempt finished.
	At time.Time
}

// Status is a point-in-time snapshot of the scanner state.
type Status struct {
	Running    bool
	Gate       GateState
	Stability  Stability
	InFlight   bool
	ShotsTaken int
	FrameSeq   uint64
	LastFrame  time.Time
	Config     Config
}
