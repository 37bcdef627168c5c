package scan

import "testing"

// stableAt builds a stability state with the given run length.
func stableAt(count int) Stability {
	if count == 0 {
		return Stability{}
	}
	return Stability{Count: count, Quad: quadAt(0, 0)}
}

// feedRun evaluates the gate over a sequence of run lengths with no capture
// in flight and returns the indexes that triggered.
func feedRun(g *Gate, cfg Config, counts []int) []int {
	var fired []int
	for i, n := range counts {
		if g.Evaluate(stableAt(n), cfg, false) {
			fired = append(fired, i)
		}
	}
	return fired
}

func TestGateStaysIdleBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StabilityThreshold = 3
	g := NewGate()

	fired := feedRun(g, cfg, []int{1, 2})
	if len(fired) != 0 {
		t.Errorf("Expected no trigger below threshold, got triggers at %v", fired)
	}
	if g.State() != GateIdle {
		t.Errorf("Expected gate idle, got %v", g.State())
	}
}

func TestGateTriggersOnceAtThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StabilityThreshold = 3
	g := NewGate()

	// Counts for four similar frames: the trigger fires on the third and
	// the fourth must not re-trigger.
	fired := feedRun(g, cfg, []int{1, 2, 3, 4})
	if len(fired) != 1 || fired[0] != 2 {
		t.Fatalf("Expected a single trigger at frame index 2, got %v", fired)
	}
	if g.State() != GateDisarmed {
		t.Errorf("Expected single-shot gate disarmed after trigger, got %v", g.State())
	}
}

func TestGateSingleShotLatchesForSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StabilityThreshold = 2
	g := NewGate()

	// First stable episode captures, then the document is removed and a
	// new one placed. Without multi-shot the gate stays down.
	fired := feedRun(g, cfg, []int{1, 2, 3, 0, 1, 2, 3})
	if len(fired) != 1 || fired[0] != 1 {
		t.Errorf("Expected only the first episode to trigger, got %v", fired)
	}

	// Reconfiguring resets the latch.
	g.Reset()
	fired = feedRun(g, cfg, []int{1, 2})
	if len(fired) != 1 {
		t.Errorf("Expected trigger after reset, got %v", fired)
	}
}

func TestGateMultiShotReArmsAfterNone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StabilityThreshold = 2
	cfg.MultiShot = true
	g := NewGate()

	// Two pages: stable, removed, stable again. One trigger each.
	fired := feedRun(g, cfg, []int{1, 2, 0, 1, 2})
	if len(fired) != 2 || fired[0] != 1 || fired[1] != 4 {
		t.Errorf("Expected triggers at frame indexes 1 and 4, got %v", fired)
	}
}

func TestGateMultiShotNeedsZeroCycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StabilityThreshold = 2
	cfg.MultiShot = true
	g := NewGate()

	// The document moves (run restarts at 1) but never leaves the frame
	// (count never touches 0): no re-trigger until it does.
	fired := feedRun(g, cfg, []int{1, 2, 3, 1, 2, 3})
	if len(fired) != 1 || fired[0] != 1 {
		t.Errorf("Expected a moved document not to re-trigger, got %v", fired)
	}

	// Removal and return re-arms.
	fired = feedRun(g, cfg, []int{0, 1, 2})
	if len(fired) != 1 || fired[0] != 2 {
		t.Errorf("Expected re-trigger after removal, got %v", fired)
	}
}

func TestGateManualOnlyNeverTriggers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StabilityThreshold = 2
	cfg.ManualOnly = true
	g := NewGate()

	fired := feedRun(g, cfg, []int{1, 2, 3, 4, 5, 6, 7, 8})
	if len(fired) != 0 {
		t.Errorf("Expected no automatic trigger in manual-only mode, got %v", fired)
	}
	if g.State() != GateIdle {
		t.Errorf("Expected gate idle, got %v", g.State())
	}
}

func TestGateInFlightBlocksArming(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StabilityThreshold = 3
	g := NewGate()

	g.Evaluate(stableAt(1), cfg, false)
	g.Evaluate(stableAt(2), cfg, false)

	// A capture is running when the count crosses the threshold. The
	// crossing is consumed without a trigger and the still-growing run
	// does not fire later.
	if g.Evaluate(stableAt(3), cfg, true) {
		t.Error("Expected no trigger while a capture is in flight")
	}
	if g.Evaluate(stableAt(4), cfg, false) {
		t.Error("Expected no trigger after the threshold crossing was missed")
	}
	if g.State() != GateIdle {
		t.Errorf("Expected gate idle, got %v", g.State())
	}
}

func TestGateThresholdOne(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StabilityThreshold = 1
	cfg.MultiShot = true
	g := NewGate()

	// Every first frame of a fresh run triggers; consecutive frames of
	// the same run do not.
	fired := feedRun(g, cfg, []int{1, 2, 3, 0, 1, 2})
	if len(fired) != 2 || fired[0] != 0 || fired[1] != 4 {
		t.Errorf("Expected triggers at frame indexes 0 and 4, got %v", fired)
	}
}
