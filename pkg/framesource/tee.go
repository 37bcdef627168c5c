package framesource

import "sync"

// Tee wraps a source and calls fn on every frame before passing it through.
// Delivery to the consumer stays synchronous, so the consumer keeps owning
// the cadence; fn must be quick or frames back up. Used to feed live
// preview streams without taking frames away from the scanner.
type Tee struct {
	src    Source
	frames chan Frame
	done   chan struct{}
	once   sync.Once
}

// NewTee creates a pass-through source that observes frames with fn.
func NewTee(src Source, fn func(Frame)) *Tee {
	t := &Tee{
		src:    src,
		frames: make(chan Frame),
		done:   make(chan struct{}),
	}
	go t.pump(fn)
	return t
}

func (t *Tee) pump(fn func(Frame)) {
	defer close(t.frames)
	for frame := range t.src.Frames() {
		fn(frame)
		select {
		case t.frames <- frame:
		case <-t.done:
			return
		}
	}
}

// Frames implements Source.
func (t *Tee) Frames() <-chan Frame {
	return t.frames
}

// Close implements Source by closing the wrapped source. Safe to call
// while the consumer has already stopped reading.
func (t *Tee) Close() error {
	t.once.Do(func() { close(t.done) })
	return t.src.Close()
}

var _ Source = (*Tee)(nil)
