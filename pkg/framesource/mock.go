package framesource

import (
	"sync"
	"time"
)

// Mock is a scripted frame source for tests. Frames are pushed explicitly
// with Push; the channel is unbuffered so a Push completes only once the
// consumer has taken the frame, which keeps test sequences deterministic.
type Mock struct {
	mu     sync.Mutex
	frames chan Frame
	seq    uint64
	closed bool
}

// NewMockSource creates a new mock source.
func NewMockSource() *Mock {
	return &Mock{frames: make(chan Frame)}
}

// Frames implements Source.
func (m *Mock) Frames() <-chan Frame {
	return m.frames
}

// Push delivers one frame to the consumer, blocking until it is taken.
// Returns false if the source is closed.
func (m *Mock) Push(jpeg []byte) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.seq++
	f := Frame{Seq: m.seq, JPEG: jpeg, At: time.Now()}
	m.mu.Unlock()

	m.frames <- f
	return true
}

// Close implements Source.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.frames)
	}
	return nil
}

// Ensure Mock implements Source.
var _ Source = (*Mock)(nil)
