package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"vectionlab.net/vection/config"
	"vectionlab.net/vection/phase"
	"vectionlab.net/vection/session"
	"vectionlab.net/vection/stimulus"
)

type fixedInput bool

func (f fixedInput) Pressed() bool { return bool(f) }

func shortSession(p config.Pattern) config.SessionConfig {
	return config.SessionConfig{
		Pattern:        p,
		Direction:      config.Forward,
		CameraSpeed:    4,
		DisplayRate:    10,
		BufferDuration: 20 * time.Millisecond,
		TrialDuration:  300 * time.Millisecond,
		RecordDuration: time.Second,
	}
}

func TestRunner_RunsUntilSessionEnds(t *testing.T) {
	engine, err := session.New(shortSession(config.Wobble), nil)
	require.NoError(t, err)
	r := NewRunner(config.HostConfig{TickRate: 500}, engine, fixedInput(true))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	assert.True(t, isDone(engine.Done()))
	scene := r.Scene()
	assert.Equal(t, phase.Done, scene.Phase)
	assert.True(t, scene.Response)
	assert.Equal(t, 3, scene.Steps, "boundaries at 0.1, 0.2 and 0.3")

	start := stimulus.InitialPose(config.Forward)
	moved := r3.Norm(r3.Sub(scene.Cameras[stimulus.Camera1], start))
	assert.InDelta(t, 3*0.4, moved, 1e-9)

	// 0.34 s at 500 Hz plus the tick at zero.
	assert.Equal(t, engine.Log().Len(), engine.Ticks())
	assert.GreaterOrEqual(t, engine.Ticks(), 171)

	snap, ok := r.Snapshots().Load()
	require.True(t, ok)
	assert.Equal(t, engine.Ticks(), snap.Tick)
	assert.Equal(t, phase.Done, snap.Scene.Phase)
}

func TestRunner_Cancel(t *testing.T) {
	s := shortSession(config.Continuous)
	s.TrialDuration = time.Hour
	engine, err := session.New(s, nil)
	require.NoError(t, err)
	r := NewRunner(config.HostConfig{TickRate: 200}, engine, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err = r.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, isDone(engine.Done()))
	assert.Greater(t, engine.Ticks(), 1)
}

func TestRunner_LuminanceSnapshotCarriesWindows(t *testing.T) {
	engine, err := session.New(shortSession(config.LuminanceMixture), nil)
	require.NoError(t, err)
	r := NewRunner(config.HostConfig{TickRate: 500}, engine, nil)

	var sawWindow bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-r.Snapshots().Channel():
				snap := r.Snapshots().Value()
				if snap.Scene.Phase == phase.Active && len(snap.WindowA) > 0 {
					sawWindow = true
					assert.Len(t, snap.WindowB, len(snap.WindowA))
				}
			case <-engine.Done():
				return
			}
		}
	}()

	require.NoError(t, r.Run(context.Background()))
	<-done
	assert.True(t, sawWindow)
}

func TestScene_Apply(t *testing.T) {
	d := stimulus.NewLuminanceMixture(shortSession(config.LuminanceMixture))
	s := NewScene(d)
	assert.Equal(t, d.Cameras(), s.Cameras)

	delta := r3.Vec{X: 1}
	s.Apply(session.Output{
		Phase: phase.Active,
		Blank: true,
		Stimulus: stimulus.Output{
			Moves:    []stimulus.Move{{Camera: stimulus.Camera2, Delta: delta}},
			Opacity:  &stimulus.Opacity{Image1: 0.25, Image2: 0.75},
			Visible:  [stimulus.NumCameras]bool{false, true, true},
			Boundary: true,
		},
	}, true)

	assert.Equal(t, r3.Add(d.Cameras()[stimulus.Camera2], delta), s.Cameras[stimulus.Camera2])
	assert.Equal(t, stimulus.Opacity{Image1: 0.25, Image2: 0.75}, s.Opacity)
	assert.True(t, s.Blank)
	assert.True(t, s.Response)
	assert.Equal(t, 1, s.Steps)

	// Without an opacity the previous alphas stay.
	s.Apply(session.Output{Phase: phase.Active}, false)
	assert.Equal(t, stimulus.Opacity{Image1: 0.25, Image2: 0.75}, s.Opacity)
	assert.Equal(t, [stimulus.NumCameras]bool{}, s.Visible)
}

func TestHoldInput(t *testing.T) {
	h := NewHoldInput(100 * time.Millisecond)
	now := time.Unix(1000, 0)
	h.now = func() time.Time { return now }

	assert.False(t, h.Pressed())
	h.Press()
	assert.True(t, h.Pressed())

	now = now.Add(100 * time.Millisecond)
	assert.True(t, h.Pressed())
	now = now.Add(time.Millisecond)
	assert.False(t, h.Pressed())
}

func TestAnyInput(t *testing.T) {
	assert.False(t, AnyInput{}.Pressed())
	assert.False(t, AnyInput{NoInput{}, nil, fixedInput(false)}.Pressed())
	assert.True(t, AnyInput{NoInput{}, fixedInput(true)}.Pressed())
}

func isDone(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
