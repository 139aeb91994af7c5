package sensor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"vectionlab.net/vection/config"
)

var errPortClosed = errors.New("port closed")

// SimulatedPort emits a sine wave as ASCII lines, one every
// Simulation.Interval, so the channel can run without a device.
type SimulatedPort struct {
	cfg   config.SimulationConfig
	start time.Time
	now   func() time.Time

	mu      sync.Mutex
	timeout time.Duration
	next    time.Time
	pending []byte
	closed  chan struct{}
	once    sync.Once
}

// SimulatedOpener returns an Opener that ignores path and options.
func SimulatedOpener(cfg config.SimulationConfig) Opener {
	return func(path string, opts PortOptions) (Port, error) {
		if cfg.Interval <= 0 {
			return nil, fmt.Errorf("simulation interval must be positive, got %s", cfg.Interval)
		}
		return NewSimulatedPort(cfg), nil
	}
}

func NewSimulatedPort(cfg config.SimulationConfig) *SimulatedPort {
	now := time.Now()
	return &SimulatedPort{
		cfg:     cfg,
		start:   now,
		now:     time.Now,
		timeout: 50 * time.Millisecond,
		next:    now,
		closed:  make(chan struct{}),
	}
}

func (p *SimulatedPort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

// Read waits for the next emission. If it is further away than the read
// timeout, Read sleeps for the timeout and returns (0, nil).
func (p *SimulatedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		p.mu.Unlock()
		return n, nil
	}
	wait := p.next.Sub(p.now())
	timeout := p.timeout
	p.mu.Unlock()

	if wait > timeout {
		if !p.sleep(timeout) {
			return 0, errPortClosed
		}
		return 0, nil
	}
	if wait > 0 && !p.sleep(wait) {
		return 0, errPortClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.now()
	p.pending = append(p.pending, fmt.Sprintf("%.4f\n", p.valueAt(t.Sub(p.start)))...)
	p.next = p.next.Add(p.cfg.Interval)
	if p.next.Before(t) {
		p.next = t.Add(p.cfg.Interval)
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *SimulatedPort) valueAt(elapsed time.Duration) float64 {
	if p.cfg.Period <= 0 {
		return p.cfg.Mean
	}
	phase := 2 * math.Pi * elapsed.Seconds() / p.cfg.Period.Seconds()
	return p.cfg.Mean + p.cfg.Amplitude*math.Sin(phase)
}

// sleep returns false if the port was closed while sleeping.
func (p *SimulatedPort) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.closed:
		return false
	case <-timer.C:
		return true
	}
}

func (p *SimulatedPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
