package host

import (
	"context"
	"log/slog"
	"time"

	"vectionlab.net/vection/config"
	"vectionlab.net/vection/datalog"
	"vectionlab.net/vection/recorder"
	"vectionlab.net/vection/session"
	"vectionlab.net/vection/util"
)

// maxCatchUp bounds the extra ticks run after the loop fell behind.
const maxCatchUp = 5

// Snapshot is published after every tick for observers like the monitor.
type Snapshot struct {
	Tick     int
	Elapsed  float64
	Scene    Scene
	FrameNum int
	Row      datalog.Row
	Rows     int
	WindowA  []float64
	WindowB  []float64
}

// Runner is a fixed step tick loop. Elapsed time advances by exactly
// 1/TickRate per tick; the wall clock only decides when ticks run.
type Runner struct {
	cfg       config.HostConfig
	engine    *session.Engine
	input     ResponseInput
	scene     *Scene
	snapshots *util.AtomicEvent[Snapshot]
	now       func() time.Time
	ticks     int
}

func NewRunner(cfg config.HostConfig, engine *session.Engine, input ResponseInput) *Runner {
	if input == nil {
		input = NoInput{}
	}
	return &Runner{
		cfg:       cfg,
		engine:    engine,
		input:     input,
		scene:     NewScene(engine.Driver()),
		snapshots: util.NewAtomicEvent[Snapshot](),
		now:       time.Now,
	}
}

// Snapshots carries the state after the latest tick.
func (r *Runner) Snapshots() *util.AtomicEvent[Snapshot] {
	return r.snapshots
}

// Scene returns the scene. Only valid once Run has returned.
func (r *Runner) Scene() Scene {
	return *r.scene
}

// Run ticks the engine until the session requests its end, which returns
// nil, or ctx is cancelled, which returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	dt := 1 / r.cfg.TickRate
	period := time.Duration(float64(time.Second) / r.cfg.TickRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	slog.Info("Tick loop started", "rate", r.cfg.TickRate)
	start := r.now()
	if r.step(dt) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Tick loop cancelled", "ticks", r.ticks)
			return ctx.Err()
		case <-ticker.C:
			due := int(r.now().Sub(start) / period)
			for i := 0; r.ticks <= due && i < maxCatchUp; i++ {
				if r.step(dt) {
					slog.Info("Tick loop finished", "ticks", r.ticks)
					return nil
				}
			}
		}
	}
}

func (r *Runner) step(dt float64) bool {
	response := r.input.Pressed()
	elapsed := float64(r.ticks) * dt
	out := r.engine.Tick(session.Input{Elapsed: elapsed, Dt: dt, Response: response})
	r.ticks++
	r.scene.Apply(out, response)

	rec := r.engine.Recorder()
	r.snapshots.Send(Snapshot{
		Tick:     r.ticks,
		Elapsed:  elapsed,
		Scene:    *r.scene,
		FrameNum: r.engine.Driver().FrameNum(),
		Row:      out.Stimulus.Row,
		Rows:     r.engine.Log().Len(),
		WindowA:  rec.Values(recorder.ChannelA),
		WindowB:  rec.Values(recorder.ChannelB),
	})
	return out.EndRequested
}
