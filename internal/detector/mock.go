package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/formcheck/internal/pose"
)

// MockDetector is a test implementation of the Detector interface.
// It replays a fixed sequence of poses, one per Detect call, and keeps
// returning the last one once the sequence is exhausted.
type MockDetector struct {
	mu     sync.Mutex
	frames []pose.Frame
	next   int
	calls  int
	err    error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFrames sets the poses that will be returned by Detect.
func (m *MockDetector) SetFrames(frames []pose.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = frames
	m.next = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next pre-configured pose or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (pose.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return pose.Frame{}, m.err
	}
	if len(m.frames) == 0 {
		return pose.Frame{}, nil
	}

	f := m.frames[m.next]
	if m.next < len(m.frames)-1 {
		m.next++
	}
	return f, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}
