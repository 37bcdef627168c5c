package scan

import "github.com/teslashibe/go-docscan/pkg/debug"

// GateState is the capture gate's position in its cycle.
type GateState int

const (
	// GateIdle means the gate is waiting for a stable run to reach the
	// threshold.
	GateIdle GateState = iota
	// GateArmed means the threshold was reached this evaluation. The gate
	// commits to GateTriggered in the same evaluation, so this state is
	// never observable between frames.
	GateArmed
	// GateTriggered means an automatic capture was requested this frame.
	GateTriggered
	// GateDisarmed latches after the one automatic capture of a
	// single-shot session. Only Reset re-arms.
	GateDisarmed
)

// String returns the wire name of the state.
func (s GateState) String() string {
	switch s {
	case GateIdle:
		return "idle"
	case GateArmed:
		return "armed"
	case GateTriggered:
		return "triggered"
	case GateDisarmed:
		return "disarmed"
	default:
		return "unknown"
	}
}

// Gate decides, once per frame, whether the current stability state should
// fire an automatic capture. Triggers are edge-triggered: one per stable
// episode, when the run length crosses the threshold, never again while the
// same run keeps growing.
//
// Manual captures bypass the gate entirely.
type Gate struct {
	state GateState

	// cycled records that the stable count has touched zero since the
	// last trigger. Multi-shot re-arming requires a full cycle: the
	// document must leave the frame before the next automatic capture.
	cycled bool
}

// NewGate returns a gate ready to arm.
func NewGate() *Gate {
	return &Gate{state: GateIdle, cycled: true}
}

// Evaluate advances the gate for one frame and reports whether an automatic
// capture should fire. Must be called exactly once per observed frame, after
// the stability tracker has folded that frame in.
func (g *Gate) Evaluate(st Stability, cfg Config, inFlight bool) bool {
	if st.Count == 0 {
		g.cycled = true
	}

	switch g.state {
	case GateTriggered:
		if cfg.MultiShot {
			g.state = GateIdle
		} else {
			g.state = GateDisarmed
			debug.DetectLogln("gate: disarmed")
		}
	case GateDisarmed:
		return false
	}

	if g.state != GateIdle {
		return false
	}
	if cfg.ManualOnly || inFlight || !g.cycled {
		return false
	}
	if st.Count != cfg.StabilityThreshold {
		return false
	}

	g.state = GateArmed
	// Single-frame debounce: arming commits to a trigger immediately.
	g.state = GateTriggered
	g.cycled = false
	debug.DetectLog("gate: triggered at count=%d\n", st.Count)
	return true
}

// State returns the gate's current state.
func (g *Gate) State() GateState {
	return g.state
}

// Reset returns the gate to idle and forgets the single-shot latch. Called
// when a new session is configured.
func (g *Gate) Reset() {
	g.state = GateIdle
	g.cycled = true
}
