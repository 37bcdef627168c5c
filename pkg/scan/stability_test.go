package scan

import (
	"testing"

	"github.com/teslashibe/go-docscan/pkg/geometry"
)

// quadAt builds a letter-sized test quadrilateral with its top-left corner
// at (x, y). Shared by the package tests.
func quadAt(x, y float64) *geometry.Quadrilateral {
	q := geometry.NewQuadrilateral([4]geometry.Point{
		{X: x, Y: y},
		{X: x + 100, Y: y},
		{X: x + 100, Y: y + 140},
		{X: x, Y: y + 140},
	})
	return &q
}

func TestTrackerCountsStableRun(t *testing.T) {
	tr := NewTracker(24)

	st, change, changed := tr.Observe(quadAt(10, 10))
	if st.Count != 1 {
		t.Errorf("Expected count 1 after first detection, got %d", st.Count)
	}
	if !changed || change != RectangleGained {
		t.Errorf("Expected gained change on first detection, got changed=%v change=%v", changed, change)
	}

	for i := 2; i <= 5; i++ {
		st, _, changed = tr.Observe(quadAt(10, 10))
		if changed {
			t.Errorf("Frame %d: identical detection should not report a change", i)
		}
		if st.Count != i {
			t.Errorf("Frame %d: expected count %d, got %d", i, i, st.Count)
		}
	}

	if st.Quad == nil {
		t.Fatal("Expected anchor quadrilateral to be set")
	}
}

func TestTrackerNoneResets(t *testing.T) {
	tr := NewTracker(24)
	tr.Observe(quadAt(0, 0))
	tr.Observe(quadAt(0, 0))
	tr.Observe(quadAt(0, 0))

	st, change, changed := tr.Observe(nil)
	if st.Count != 0 {
		t.Errorf("Expected count 0 after empty frame, got %d", st.Count)
	}
	if st.Quad != nil {
		t.Error("Expected anchor to be cleared after empty frame")
	}
	if !changed || change != RectangleLost {
		t.Errorf("Expected lost change, got changed=%v change=%v", changed, change)
	}

	// A second empty frame changes nothing.
	st, _, changed = tr.Observe(nil)
	if changed {
		t.Error("Second empty frame should not report a change")
	}
	if st.Count != 0 {
		t.Errorf("Expected count to stay 0, got %d", st.Count)
	}
}

func TestTrackerSmallDriftExtendsRun(t *testing.T) {
	tr := NewTracker(24)
	tr.Observe(quadAt(100, 100))

	// 10px of drift is inside the tolerance: same run, anchor unchanged.
	st, _, changed := tr.Observe(quadAt(110, 100))
	if changed {
		t.Error("Drift within tolerance should not report a change")
	}
	if st.Count != 2 {
		t.Errorf("Expected count 2, got %d", st.Count)
	}
	if st.Quad.TopLeft.X != 100 {
		t.Errorf("Expected anchor to stay at x=100, got %v", st.Quad.TopLeft.X)
	}
}

func TestTrackerLargeDriftRestartsRun(t *testing.T) {
	tr := NewTracker(24)
	tr.Observe(quadAt(100, 100))
	tr.Observe(quadAt(100, 100))
	tr.Observe(quadAt(100, 100))

	// 50px exceeds the tolerance: the run restarts at 1 on the new shape.
	st, change, changed := tr.Observe(quadAt(150, 100))
	if !changed || change != RectangleMoved {
		t.Errorf("Expected moved change, got changed=%v change=%v", changed, change)
	}
	if st.Count != 1 {
		t.Errorf("Expected count reset to 1, got %d", st.Count)
	}
	if st.Quad.TopLeft.X != 150 {
		t.Errorf("Expected anchor replaced at x=150, got %v", st.Quad.TopLeft.X)
	}
}

func TestTrackerSlowSlideEventuallyRestarts(t *testing.T) {
	tr := NewTracker(24)

	// A document sliding 10px per frame stays similar to the run anchor
	// for a couple of frames, then breaks the run once total drift from
	// the anchor passes the tolerance.
	tr.Observe(quadAt(0, 0))
	st, _, changed := tr.Observe(quadAt(10, 0))
	if changed || st.Count != 2 {
		t.Fatalf("Expected quiet count 2, got changed=%v count=%d", changed, st.Count)
	}
	st, _, changed = tr.Observe(quadAt(20, 0))
	if changed || st.Count != 3 {
		t.Fatalf("Expected quiet count 3, got changed=%v count=%d", changed, st.Count)
	}

	// 30px from the anchor: run restarts even though the step stayed 10px.
	st, change, changed := tr.Observe(quadAt(30, 0))
	if !changed || change != RectangleMoved {
		t.Errorf("Expected moved change at 30px total drift, got changed=%v change=%v", changed, change)
	}
	if st.Count != 1 {
		t.Errorf("Expected count reset to 1, got %d", st.Count)
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(24)
	tr.Observe(quadAt(0, 0))
	tr.Observe(quadAt(0, 0))

	tr.Reset()
	st := tr.State()
	if st.Count != 0 || st.Quad != nil {
		t.Errorf("Expected cleared state after reset, got count=%d quad=%v", st.Count, st.Quad)
	}

	// The next detection starts a fresh run.
	st, change, changed := tr.Observe(quadAt(0, 0))
	if !changed || change != RectangleGained || st.Count != 1 {
		t.Errorf("Expected fresh gained run, got changed=%v change=%v count=%d", changed, change, st.Count)
	}
}
