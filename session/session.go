package session

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"vectionlab.net/vection/config"
	"vectionlab.net/vection/datalog"
	"vectionlab.net/vection/phase"
	"vectionlab.net/vection/recorder"
	"vectionlab.net/vection/stimulus"
)

// SensorSource hands out the latest sensor value without waiting.
type SensorSource interface {
	Latest() float64
}

// Stopper is implemented by sensor sources that own a running
// acquisition. Shutdown stops them.
type Stopper interface {
	Stop()
}

// ConstantSensor always reports the same value. A value of 1 runs the
// continuous pattern at its nominal speed.
type ConstantSensor float64

func (c ConstantSensor) Latest() float64 { return float64(c) }

// Input is sampled by the host once per tick. Elapsed and Dt are seconds
// on the session clock; Elapsed must not decrease.
type Input struct {
	Elapsed  float64
	Dt       float64
	Response bool
}

// Output is everything the host has to apply after one tick.
type Output struct {
	Phase    phase.Phase
	Relative float64
	// Entered is set on the first tick of a phase.
	Entered bool
	// BlankStarted is set when a neutral field was scheduled this tick;
	// Blank is true for as long as it is showing.
	BlankStarted bool
	Blank        bool
	Sensor       float64
	Stimulus     stimulus.Output
	// EndRequested is true on exactly one tick: the first one in Done.
	EndRequested bool
}

// Engine runs one session. Tick is meant to be called from a single
// goroutine; Done and Shutdown may be used from any goroutine.
type Engine struct {
	cfg      config.SessionConfig
	sensor   SensorSource
	driver   stimulus.Driver
	recorder *recorder.Recorder
	log      *datalog.Log
	blanker  *phase.Blanker
	tracker  phase.Tracker

	buffer float64
	trial  float64

	ticks    int
	ended    bool
	endOnce  sync.Once
	done     chan struct{}
	shutdown atomic.Bool
}

// New initializes a session for cfg. A nil sensor behaves like
// ConstantSensor(1).
func New(cfg config.SessionConfig, sensor SensorSource) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	driver, err := stimulus.New(cfg)
	if err != nil {
		return nil, err
	}
	if sensor == nil {
		sensor = ConstantSensor(1)
	}

	e := &Engine{
		cfg:      cfg,
		sensor:   sensor,
		driver:   driver,
		recorder: recorder.New(cfg.RecordDuration.Seconds()),
		log:      datalog.New(driver.Header()),
		blanker:  phase.NewBlanker(cfg.BufferDuration.Seconds()),
		buffer:   cfg.BufferDuration.Seconds(),
		trial:    cfg.TrialDuration.Seconds(),
		done:     make(chan struct{}),
	}
	slog.Info("Session initialized",
		"pattern", cfg.Pattern,
		"direction", cfg.Direction,
		"speed", cfg.CameraSpeed,
		"displayRate", cfg.DisplayRate,
		"buffer", cfg.BufferDuration,
		"trial", cfg.TrialDuration)
	return e, nil
}

// Tick advances the session to in.Elapsed. It never blocks and never
// fails; reaching Done is reported through EndRequested and Done. After
// Shutdown it returns a neutral Done output and logs nothing.
func (e *Engine) Tick(in Input) Output {
	if e.shutdown.Load() {
		return Output{Phase: phase.Done, Relative: in.Elapsed - e.buffer}
	}
	p, rel := phase.Of(in.Elapsed, e.buffer, e.trial)
	out := Output{Phase: p, Relative: rel}

	out.Entered = e.tracker.Observe(p)
	if out.Entered {
		slog.Debug("Phase entered", "phase", p, "elapsed", in.Elapsed)
		if p == phase.PreBuffer || p == phase.PostBuffer {
			out.BlankStarted = e.blanker.Request(in.Elapsed)
		}
	}
	out.Blank = e.blanker.Showing(in.Elapsed)

	if p == phase.Active {
		out.Sensor = e.sensor.Latest()
	}
	out.Stimulus = e.driver.Tick(stimulus.Input{
		Phase:    p,
		Relative: rel,
		Sensor:   out.Sensor,
		Dt:       in.Dt,
		Response: in.Response,
	})
	e.log.Append(out.Stimulus.Row)

	if p == phase.Active && out.Stimulus.Opacity != nil {
		o := out.Stimulus.Opacity
		e.recorder.Record(float32(o.Image1), float32(o.Image2), in.Elapsed)
	}

	if p == phase.Done && !e.ended {
		e.ended = true
		out.EndRequested = true
		e.endOnce.Do(func() { close(e.done) })
		slog.Info("Session end requested", "elapsed", in.Elapsed, "rows", e.log.Len())
	}

	e.ticks++
	return out
}

// Done is closed when the session has requested its end.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Shutdown ends the session: later ticks are neutral and append no
// rows, and a sensor source implementing Stopper is stopped. The log
// stays readable so it can be saved afterwards. Shutdown is idempotent
// and may be called before the session reached Done, but not
// concurrently with Tick.
func (e *Engine) Shutdown() {
	if !e.shutdown.CompareAndSwap(false, true) {
		return
	}
	if s, ok := e.sensor.(Stopper); ok {
		s.Stop()
	}
	slog.Info("Session shut down", "ticks", e.ticks, "rows", e.log.Len(), "ended", e.ended)
}

func (e *Engine) Config() config.SessionConfig {
	return e.cfg
}

func (e *Engine) Driver() stimulus.Driver {
	return e.driver
}

func (e *Engine) Log() *datalog.Log {
	return e.log
}

func (e *Engine) Recorder() *recorder.Recorder {
	return e.recorder
}

// Ticks returns how many ticks have run.
func (e *Engine) Ticks() int {
	return e.ticks
}
