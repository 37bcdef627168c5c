package scan

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-docscan/internal/log"
)

// Pipeline turns a capture request into a finished document. Implementations
// run the grab/deskew/enhance/encode chain and may take hundreds of
// milliseconds; the controller calls Process from its own goroutine.
type Pipeline interface {
	Process(ctx context.Context, req Request) (*Document, error)
}

// Store persists a captured document and returns a reference to the stored
// copy (a file path or remote id).
type Store interface {
	Save(ctx context.Context, req Request, doc *Document) (string, error)
}

// TextRecognizer extracts text from a captured document image.
type TextRecognizer interface {
	Recognize(ctx context.Context, doc *Document) (string, error)
}

// Controller owns the capture session: it serializes capture attempts,
// tracks the shot count, and delivers exactly one Outcome per accepted
// request. Rejected requests get no outcome.
//
// A request is rejected while another capture is in flight. Requests are
// never queued; a rejected caller retries with a fresh request if it still
// wants a capture. Once accepted, a capture runs to completion, there is no
// cancellation.
type Controller struct {
	pipeline Pipeline

	// Optional collaborators, set before the first request.
	store  Store
	ocr    TextRecognizer
	onDone func(Outcome)

	mu       sync.Mutex
	inFlight bool
	shots    int
}

// NewController returns a controller that captures through pipeline.
func NewController(pipeline Pipeline) *Controller {
	return &Controller{pipeline: pipeline}
}

// SetStore installs the document store used when a request asks to persist.
func (c *Controller) SetStore(s Store) {
	c.store = s
}

// SetRecognizer installs the OCR engine used when a request asks for text.
func (c *Controller) SetRecognizer(r TextRecognizer) {
	c.ocr = r
}

// SetOnDone installs a completion callback invoked once per accepted
// request, after the outcome is ready. Called from the capture goroutine.
func (c *Controller) SetOnDone(fn func(Outcome)) {
	c.onDone = fn
}

// InFlight reports whether a capture is currently running.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Shots returns the number of completed captures this session.
func (c *Controller) Shots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shots
}

// Submit starts a capture for req. It returns a handle that receives the
// single Outcome for this request, or ErrAlreadyCapturing when a capture is
// already in flight. A rejected submit mutates nothing.
func (c *Controller) Submit(req Request) (<-chan Outcome, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrAlreadyCapturing
	}
	c.inFlight = true
	c.mu.Unlock()

	log.Debug("capture accepted",
		"request_id", req.ID,
		"mode", req.Mode.String(),
		"frame_seq", req.Frame.Seq)

	reply := make(chan Outcome, 1)
	go c.run(req, reply)
	return reply, nil
}

// run executes one accepted capture. The pipeline stage holds the in-flight
// flag; recognition and persistence happen after it clears, so a slow store
// never blocks the next capture from starting.
func (c *Controller) run(req Request, reply chan<- Outcome) {
	ctx := context.Background()

	doc, perr := c.pipeline.Process(ctx, req)
	ok := perr == nil && doc != nil

	c.mu.Lock()
	c.inFlight = false
	if ok {
		c.shots++
	}
	shots := c.shots
	c.mu.Unlock()

	var outErr error
	if !ok {
		if perr == nil {
			perr = ErrCaptureFailed
		}
		outErr = &CaptureError{RequestID: req.ID, Stage: StagePipeline, Err: perr}
		doc = nil
		log.Warn("capture pipeline failed", "request_id", req.ID, "error", perr)
	}

	if ok && req.Config.OCR && c.ocr != nil {
		text, err := c.ocr.Recognize(ctx, doc)
		if err != nil {
			log.Warn("text recognition failed", "request_id", req.ID, "error", err)
		} else {
			doc.Text = text
		}
	}

	if ok && req.Config.Persist && c.store != nil {
		ref, err := c.store.Save(ctx, req, doc)
		if err != nil {
			// The document still reaches the caller; only the stored
			// copy is missing. Shot accounting stands.
			outErr = &CaptureError{RequestID: req.ID, Stage: StageStore, Err: err}
			log.Warn("document store failed", "request_id", req.ID, "error", err)
		} else {
			doc.StoredRef = ref
		}
	}

	out := Outcome{
		RequestID: req.ID,
		Mode:      req.Mode,
		OK:        ok,
		Document:  doc,
		Err:       outErr,
		Shots:     shots,
		At:        time.Now(),
	}

	reply <- out
	if c.onDone != nil {
		c.onDone(out)
	}
}
