package scan

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrAlreadyCapturing is returned when a capture request arrives while
	// another capture is still in flight. The request is rejected, never
	// queued.
	ErrAlreadyCapturing = errors.New("scan: capture already in progress")

	// ErrDetectionUnavailable marks frames whose detector call failed.
	// Treated as a no-detection frame, never fatal.
	ErrDetectionUnavailable = errors.New("scan: detection unavailable")

	// ErrCaptureFailed is matched by capture errors from the pipeline stage.
	ErrCaptureFailed = errors.New("scan: capture pipeline failed")

	// ErrPersistenceFailed is matched by capture errors from the store stage.
	ErrPersistenceFailed = errors.New("scan: document store failed")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("scan: invalid configuration")

	// ErrNoFrame is returned when a capture is requested before any frame
	// has arrived.
	ErrNoFrame = errors.New("scan: no frame available")

	// ErrNoDetector is returned by Run when the scanner was built without
	// a detector.
	ErrNoDetector = errors.New("scan: no detector installed")

	// ErrAlreadyRunning is returned by Run when the frame loop is already
	// active.
	ErrAlreadyRunning = errors.New("scan: scanner already running")
)

// Stage identifies where in the capture flow an error occurred.
type Stage string

// Capture stages.
const (
	StagePipeline Stage = "pipeline"
	StageStore    Stage = "store"
)

// CaptureError wraps a capture failure with its request and stage context.
type CaptureError struct {
	// RequestID is the capture request this error belongs to.
	RequestID string

	// Stage is the capture stage that failed.
	Stage Stage

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	return fmt.Sprintf("scan [%s]: %s stage failed: %v", e.RequestID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Is matches the stage sentinels, so errors.Is(err, ErrCaptureFailed) and
// errors.Is(err, ErrPersistenceFailed) work on wrapped capture errors.
func (e *CaptureError) Is(target error) bool {
	switch target {
	case ErrCaptureFailed:
		return e.Stage == StagePipeline
	case ErrPersistenceFailed:
		return e.Stage == StageStore
	}
	return false
}

// IsCaptureFailed reports whether err is a pipeline-stage capture failure.
func IsCaptureFailed(err error) bool {
	return errors.Is(err, ErrCaptureFailed)
}

// IsPersistenceFailed reports whether err is a store-stage capture failure.
func IsPersistenceFailed(err error) bool {
	return errors.Is(err, ErrPersistenceFailed)
}
