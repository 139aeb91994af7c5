package sensor

import (
	"sync"
	"time"
)

// MockPort implements Port for tests. Fed data is handed out by Read;
// with nothing to hand out, Read waits for the read timeout and returns
// (0, nil) like a real serial port.
type MockPort struct {
	mu          sync.Mutex
	data        []byte
	errs        []error
	readTimeout time.Duration
	closed      bool

	// Block makes Read ignore the read timeout and wait until data, an
	// error or Close arrives.
	Block          bool
	CloseError     error
	SetTimeoutErr  error
	ReadCallCount  int
	CloseCallCount int

	wake     chan struct{}
	closedCh chan struct{}
}

func NewMockPort() *MockPort {
	return &MockPort{
		readTimeout: 10 * time.Millisecond,
		wake:        make(chan struct{}, 1),
		closedCh:    make(chan struct{}),
	}
}

// MockOpener returns an Opener that always hands out port.
func MockOpener(port *MockPort) Opener {
	return func(path string, opts PortOptions) (Port, error) {
		return port, nil
	}
}

// Feed queues bytes for Read.
func (m *MockPort) Feed(s string) {
	m.mu.Lock()
	m.data = append(m.data, s...)
	m.mu.Unlock()
	m.signal()
}

// FailNext makes the next Read return err.
func (m *MockPort) FailNext(err error) {
	m.mu.Lock()
	m.errs = append(m.errs, err)
	m.mu.Unlock()
	m.signal()
}

func (m *MockPort) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	m.ReadCallCount++
	m.mu.Unlock()

	var deadline <-chan time.Time
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return 0, errPortClosed
		}
		if len(m.errs) > 0 {
			err := m.errs[0]
			m.errs = m.errs[1:]
			m.mu.Unlock()
			return 0, err
		}
		if len(m.data) > 0 {
			n := copy(p, m.data)
			m.data = m.data[n:]
			m.mu.Unlock()
			return n, nil
		}
		if deadline == nil && !m.Block {
			deadline = time.After(m.readTimeout)
		}
		m.mu.Unlock()

		select {
		case <-m.wake:
		case <-m.closedCh:
		case <-deadline:
			return 0, nil
		}
	}
}

func (m *MockPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetTimeoutErr != nil {
		return m.SetTimeoutErr
	}
	m.readTimeout = t
	return nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCallCount++
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return m.CloseError
}

// Closed reports whether Close has been called.
func (m *MockPort) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
