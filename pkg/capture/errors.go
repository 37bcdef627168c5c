package capture

import "errors"

// Sentinel errors for common error conditions.
var (
	// ErrEmptyFrame is returned when a capture request carries no frame
	// data.
	ErrEmptyFrame = errors.New("capture: empty frame")

	// ErrDegenerateQuad is returned when the detected outline is too
	// collapsed to deskew.
	ErrDegenerateQuad = errors.New("capture: degenerate quadrilateral")

	// ErrNotAuthenticated is returned by the Drive store before the OAuth
	// flow has completed.
	ErrNotAuthenticated = errors.New("capture: drive not authenticated")
)
