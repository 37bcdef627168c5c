package detection

import "sync"

// Mock is a mock implementation of Detector for testing.
// Detect returns scripted results in order and repeats the last one when
// the script runs out.
type Mock struct {
	mu sync.Mutex

	script []Result
	next   int

	// Configurable behavior
	DetectFunc func(jpeg []byte) (Result, error)
	CloseFunc  func() error

	// Captured calls for assertions
	DetectCalls int
	Closed      bool
}

// NewMock creates a new Mock detector with a scripted result sequence.
func NewMock(script ...Result) *Mock {
	return &Mock{script: script}
}

// Detect implements Detector.
func (m *Mock) Detect(jpeg []byte) (Result, error) {
	if m.DetectFunc != nil {
		return m.DetectFunc(jpeg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DetectCalls++
	if len(m.script) == 0 {
		return None(), nil
	}
	r := m.script[m.next]
	if m.next < len(m.script)-1 {
		m.next++
	}
	return r, nil
}

// Close implements Detector.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Reset rewinds the script and clears captured data.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = 0
	m.DetectCalls = 0
	m.Closed = false
}

// Ensure Mock implements Detector.
var _ Detector = (*Mock)(nil)
