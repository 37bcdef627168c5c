// Package scan implements the document capture engine: per-frame rectangle
// detection folded into a stability run, a gate that turns sustained
// stability into capture triggers, and a controller that serializes the
// captures themselves.
//
// Frames are evaluated strictly in arrival order on one logical sequence.
// The capture pipeline runs asynchronously; evaluation continues while a
// capture is in flight, and the gate keeps a second capture from starting.
package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-docscan/internal/log"
	"github.com/teslashibe/go-docscan/pkg/framesource"
	"github.com/teslashibe/go-docscan/pkg/scan/detection"
)

// Tracer receives every evaluated frame together with its detection and the
// stability state after folding it in. Used for on-disk debug traces.
type Tracer interface {
	Trace(frame framesource.Frame, det detection.Result, st Stability)
}

// Scanner drives the capture engine. It consumes frames from a source, runs
// the detector on each, folds results into the stability tracker, evaluates
// the gate and submits capture requests to the controller.
//
// Hosts that run their own detector can skip Run and feed results through
// HandleDetection; the two paths share one lock, so evaluation order is the
// caller's responsibility in that case.
type Scanner struct {
	ctrl *Controller

	mu       sync.Mutex
	cfg      Config
	tracker  *Tracker
	gate     *Gate
	detector detection.Detector
	sinks    Sinks
	tracer   Tracer

	running   bool
	evalSeq   uint64
	lastFrame framesource.Frame
	lastAt    time.Time
}

// New returns a scanner for the given session configuration. detector may be
// nil when the host feeds detections directly through HandleDetection.
func New(cfg Config, detector detection.Detector, pipeline Pipeline) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scanner{
		cfg:      cfg,
		tracker:  NewTracker(cfg.CornerDriftTolerance),
		gate:     NewGate(),
		detector: detector,
		ctrl:     NewController(pipeline),
	}
	s.ctrl.SetOnDone(s.deliverOutcome)
	return s, nil
}

// SetStore installs the document store used for persisted captures.
func (s *Scanner) SetStore(store Store) {
	s.ctrl.SetStore(store)
}

// SetRecognizer installs the OCR engine used when the session asks for text.
func (s *Scanner) SetRecognizer(r TextRecognizer) {
	s.ctrl.SetRecognizer(r)
}

// SetTracer installs a debug tracer that sees every evaluated frame.
func (s *Scanner) SetTracer(t Tracer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracer = t
}

// AddSink registers an event sink. Sinks must not block.
func (s *Scanner) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Configure replaces the session configuration and starts a fresh stability
// run. The gate re-arms, so a new automatic capture becomes possible even
// after a single-shot session used its one trigger. A capture already in
// flight keeps the configuration it was submitted with.
func (s *Scanner) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.tracker = NewTracker(cfg.CornerDriftTolerance)
	s.gate.Reset()
	log.Info("session configured",
		"threshold", cfg.StabilityThreshold,
		"manual_only", cfg.ManualOnly,
		"multi_shot", cfg.MultiShot,
		"persist", cfg.Persist)
	return nil
}

// Config returns the current session configuration.
func (s *Scanner) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Run consumes frames from src until ctx is cancelled or the source closes.
// Each frame is detected and evaluated in arrival order.
func (s *Scanner) Run(ctx context.Context, src framesource.Source) error {
	if s.detector == nil {
		return ErrNoDetector
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	log.Info("scanner running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-src.Frames():
			if !ok {
				log.Info("frame source closed")
				return nil
			}
			s.HandleDetection(frame, s.detect(frame))
		}
	}
}

// detect runs the detector on one frame. Detector failures are not fatal:
// the frame counts as having no detection, which resets at most the current
// stability run.
func (s *Scanner) detect(frame framesource.Frame) detection.Result {
	res, err := s.detector.Detect(frame.JPEG)
	if err != nil {
		log.Warn("frame skipped",
			"frame_seq", frame.Seq,
			"error", fmt.Errorf("%w: %v", ErrDetectionUnavailable, err))
		return detection.None()
	}
	return res
}

// HandleDetection folds one frame's detection result into the engine. It
// must be called once per frame, in frame order.
func (s *Scanner) HandleDetection(frame framesource.Frame, det detection.Result) {
	now := time.Now()

	s.mu.Lock()
	s.evalSeq++
	if !frame.Empty() {
		s.lastFrame = frame
	}
	s.lastAt = now

	st, change, changed := s.tracker.Observe(det.Quad)

	var ev *RectangleEvent
	if changed {
		ev = &RectangleEvent{
			Change:      change,
			Quad:        st.Quad,
			StableCount: st.Count,
			FrameSeq:    frame.Seq,
			At:          now,
		}
	}

	var req Request
	submit := false
	if s.gate.Evaluate(st, s.cfg, s.ctrl.InFlight()) {
		req = Request{
			ID:     uuid.NewString(),
			Mode:   ModeAuto,
			Frame:  s.lastFrame,
			Quad:   st.Quad,
			Config: s.cfg,
			At:     now,
		}
		submit = true
	}

	sinks := s.sinks
	tracer := s.tracer
	s.mu.Unlock()

	if tracer != nil && !frame.Empty() {
		tracer.Trace(frame, det, st)
	}
	if ev != nil {
		sinks.RectangleChanged(*ev)
	}
	if submit {
		if _, err := s.ctrl.Submit(req); err != nil {
			// A manual capture won the race for the session; this
			// trigger is simply lost, no outcome is owed for it.
			log.Debug("auto capture rejected", "request_id", req.ID, "error", err)
		}
	}
}

// Capture requests a manual capture of the most recent frame, bypassing the
// stability gate. Fire-and-forget: the outcome arrives through the sinks.
// Returns the request id, or ErrAlreadyCapturing / ErrNoFrame.
func (s *Scanner) Capture() (string, error) {
	req, err := s.manualRequest()
	if err != nil {
		return "", err
	}
	if _, err := s.ctrl.Submit(req); err != nil {
		return "", err
	}
	return req.ID, nil
}

// CaptureWait requests a manual capture and blocks for its outcome. If ctx
// ends first the capture still runs to completion and its outcome reaches
// the sinks; only the wait is abandoned.
func (s *Scanner) CaptureWait(ctx context.Context) (Outcome, error) {
	req, err := s.manualRequest()
	if err != nil {
		return Outcome{}, err
	}
	reply, err := s.ctrl.Submit(req)
	if err != nil {
		return Outcome{}, err
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// manualRequest snapshots the engine state into a manual capture request.
func (s *Scanner) manualRequest() (Request, error) {
	s.mu.Lock()
	frame := s.lastFrame
	quad := s.tracker.State().Quad
	cfg := s.cfg
	s.mu.Unlock()

	if frame.Empty() {
		return Request{}, ErrNoFrame
	}
	return Request{
		ID:     uuid.NewString(),
		Mode:   ModeManual,
		Frame:  frame,
		Quad:   quad,
		Config: cfg,
		At:     time.Now(),
	}, nil
}

// Status returns a snapshot of the engine state.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:    s.running,
		Gate:       s.gate.State(),
		Stability:  s.tracker.State(),
		InFlight:   s.ctrl.InFlight(),
		ShotsTaken: s.ctrl.Shots(),
		FrameSeq:   s.evalSeq,
		LastFrame:  s.lastAt,
		Config:     s.cfg,
	}
}

// deliverOutcome fans a completed capture out to the sinks.
func (s *Scanner) deliverOutcome(out Outcome) {
	s.mu.Lock()
	sinks := s.sinks
	s.mu.Unlock()
	sinks.PictureTaken(out)
}
