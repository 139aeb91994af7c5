package sensor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"vectionlab.net/vection/config"
	"vectionlab.net/vection/util"
)

var (
	// ErrTransportUnavailable is returned by Start when the port cannot be opened.
	ErrTransportUnavailable = errors.New("sensor transport unavailable")
	// ErrReadTimeout means no new line arrived within the read timeout.
	ErrReadTimeout = errors.New("sensor read timeout")
	// ErrMalformedReading marks a line that is not a decimal scalar.
	ErrMalformedReading = errors.New("malformed sensor reading")
	// ErrAlreadyRunning is returned by Start on a running channel.
	ErrAlreadyRunning = errors.New("sensor channel already running")
)

// Reading is one parsed scalar. Seq orders readings by arrival.
type Reading struct {
	Value     float64
	Seq       uint64
	Timestamp time.Time
}

// Stats counts what the acquisition loop has seen so far.
type Stats struct {
	Readings  uint64
	Timeouts  uint64
	Malformed uint64
	Faults    uint64
}

// Channel owns the port and the acquisition goroutine. The goroutine is
// the only writer of the latest reading; any number of goroutines may
// call Latest concurrently.
type Channel struct {
	cfg    config.SensorConfig
	opener Opener
	latest *util.AtomicEvent[Reading]

	mu       sync.Mutex // guards the lifecycle fields below
	port     Port
	stopChan chan struct{}
	doneChan chan struct{}
	running  bool

	readings  atomic.Uint64
	timeouts  atomic.Uint64
	malformed atomic.Uint64
	faults    atomic.Uint64
}

// NewChannel creates a stopped channel. A nil opener selects the real or
// the simulated port depending on cfg.Simulate.
func NewChannel(cfg config.SensorConfig, opener Opener) *Channel {
	if opener == nil {
		opener = OpenerFor(cfg)
	}
	return &Channel{
		cfg:    cfg,
		opener: opener,
		latest: util.NewAtomicEvent[Reading](),
	}
}

// Start opens the port and spawns the acquisition goroutine.
func (c *Channel) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}

	port, err := c.opener(c.cfg.Port, PortOptionsFrom(c.cfg))
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrTransportUnavailable, c.cfg.Port, err)
	}
	if err := port.SetReadTimeout(c.cfg.ReadTimeout); err != nil {
		if cerr := port.Close(); cerr != nil {
			slog.Error("Error closing sensor port", "port", c.cfg.Port, "error", cerr)
		}
		return fmt.Errorf("%w: set read timeout on %s: %w", ErrTransportUnavailable, c.cfg.Port, err)
	}

	c.port = port
	c.stopChan = make(chan struct{})
	c.doneChan = make(chan struct{})
	c.running = true

	go c.acquire(newLineReader(port), c.stopChan, c.doneChan)
	slog.Info("Sensor channel started", "port", c.cfg.Port, "simulated", c.cfg.Simulate, "timeout", c.cfg.ReadTimeout)
	return nil
}

// Stop signals the acquisition goroutine, waits at most JoinTimeout for
// it to exit and closes the port afterwards. Calling Stop on a stopped
// or never started channel does nothing.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false

	close(c.stopChan)

	select {
	case <-c.doneChan:
	case <-time.After(c.cfg.JoinTimeout):
		slog.Warn("Sensor acquisition did not stop in time, closing port anyway", "timeout", c.cfg.JoinTimeout)
	}

	if err := c.port.Close(); err != nil {
		slog.Error("Error closing sensor port", "port", c.cfg.Port, "error", err)
	}
	c.port = nil
	slog.Info("Sensor channel stopped", "port", c.cfg.Port)
}

// Running reports whether the acquisition goroutine has been started and
// not stopped.
func (c *Channel) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Latest returns the most recent value, or the configured default before
// the first reading arrived. It never waits for the acquisition goroutine
// beyond copying one value.
func (c *Channel) Latest() float64 {
	return c.LatestOr(c.cfg.DefaultValue)
}

// LatestOr is Latest with a caller supplied default.
func (c *Channel) LatestOr(def float64) float64 {
	r, ok := c.latest.Load()
	if !ok {
		return def
	}
	return r.Value
}

// Reading returns the latest reading and whether there is one.
func (c *Channel) Reading() (Reading, bool) {
	return c.latest.Load()
}

func (c *Channel) Stats() Stats {
	return Stats{
		Readings:  c.readings.Load(),
		Timeouts:  c.timeouts.Load(),
		Malformed: c.malformed.Load(),
		Faults:    c.faults.Load(),
	}
}

func (c *Channel) acquire(lr *lineReader, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			slog.Info("Ending sensor acquisition go-routine")
			return
		default:
		}

		c.readOnce(lr)

		select {
		case <-stop:
			slog.Info("Ending sensor acquisition go-routine")
			return
		case <-time.After(c.cfg.LoopDelay):
		}
	}
}

func (c *Channel) readOnce(lr *lineReader) {
	line, err := lr.ReadLine()
	if err == nil {
		var value float64
		value, err = parseReading(line)
		if err == nil {
			seq := c.readings.Add(1)
			c.latest.Send(Reading{Value: value, Seq: seq, Timestamp: time.Now()})
			return
		}
	}

	switch {
	case errors.Is(err, ErrReadTimeout):
		c.timeouts.Add(1)
	case errors.Is(err, ErrMalformedReading):
		c.malformed.Add(1)
		slog.Debug("Discarding sensor line", "error", err)
	default:
		// A disconnected cable fails every read; log the first fault and
		// then every 100th.
		if n := c.faults.Add(1); n%100 == 1 {
			slog.Error("Sensor transport fault", "port", c.cfg.Port, "faults", n, "error", err)
		}
	}
}
