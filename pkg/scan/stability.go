package scan

import (
	"github.com/teslashibe/go-docscan/pkg/debug"
	"github.com/teslashibe/go-docscan/pkg/geometry"
)

// Tracker maintains the run-length of consecutive frames whose detected
// quadrilateral stayed near the same position. It is a pure sequential fold
// over detection results: one Observe call per frame, in arrival order.
// Skipping a frame is equivalent to not calling Observe for that tick.
//
// The similarity policy is corner drift: a detection is part of the current
// run while no corner has moved more than the tolerance away from the run's
// anchor quadrilateral. The anchor is the first detection of the run and is
// replaced only when a detection breaks the run.
type Tracker struct {
	tolerance float64

	count  int
	anchor *geometry.Quadrilateral
}

// NewTracker returns a tracker with the given corner drift tolerance in
// pixels.
func NewTracker(tolerance float64) *Tracker {
	return &Tracker{tolerance: tolerance}
}

// Observe folds one frame's detection into the run state and returns the
// updated state. quad is nil when the frame had no detection.
//
// The returned change is meaningful only when changed is true: frames that
// merely extend the current run report no change.
func (t *Tracker) Observe(quad *geometry.Quadrilateral) (st Stability, change RectangleChange, changed bool) {
	if quad == nil {
		had := t.anchor != nil
		t.count = 0
		t.anchor = nil
		if had {
			debug.DetectLogln("stability: lost")
			return t.State(), RectangleLost, true
		}
		return t.State(), 0, false
	}

	if t.anchor == nil {
		t.count = 1
		t.anchor = quad
		debug.DetectLogln("stability: gained")
		return t.State(), RectangleGained, true
	}

	drift := t.anchor.MaxCornerDrift(*quad)
	if drift <= t.tolerance {
		t.count++
		return t.State(), 0, false
	}

	t.count = 1
	t.anchor = quad
	debug.DetectLog("stability: moved, drift=%.1fpx\n", drift)
	return t.State(), RectangleMoved, true
}

// State returns the current run state without observing a frame.
func (t *Tracker) State() Stability {
	return Stability{Count: t.count, Quad: t.anchor}
}

// Reset clears the run, as if a no-detection frame had arrived.
func (t *Tracker) Reset() {
	t.count = 0
	t.anchor = nil
}
