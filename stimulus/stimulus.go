package stimulus

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/spatial/r3"

	"vectionlab.net/vection/config"
	"vectionlab.net/vection/datalog"
	"vectionlab.net/vection/phase"
)

// Camera identifies one of the three scene cameras. Image i shows what
// camera i sees.
type Camera int

const (
	Camera0 Camera = iota // continuous view
	Camera1               // wobble view, first luminance frame
	Camera2               // second luminance frame

	NumCameras = 3
)

const (
	rightYaw   = 48.5
	forwardYaw = 146.8
)

var (
	rightPose   = r3.Vec{X: 4, Y: 28, Z: 130}
	forwardPose = r3.Vec{X: 30.5, Y: 28, Z: 160.4}
)

// Input is what a driver sees on one tick. Relative and Dt are seconds.
type Input struct {
	Phase    phase.Phase
	Relative float64
	Sensor   float64
	Dt       float64
	Response bool
}

// Move displaces one camera.
type Move struct {
	Camera Camera
	Delta  r3.Vec
}

// Opacity is the alpha pair of the two luminance images.
type Opacity struct {
	Image1 float64
	Image2 float64
}

// Output is the result of one tick, applied by the host in order.
type Output struct {
	Moves []Move
	// Opacity is nil when the driver does not own image alphas.
	Opacity *Opacity
	Visible [NumCameras]bool
	// Boundary is set on the tick a discrete frame step fired.
	Boundary bool
	Row      datalog.Row
}

// Driver computes the stimulus for one pattern. Drivers keep their own
// state and are driven by a single goroutine.
type Driver interface {
	Pattern() config.Pattern
	Header() datalog.Row
	Tick(in Input) Output
	// FrameNum is the current frame counter.
	FrameNum() int
	// Cameras returns the current camera positions.
	Cameras() [NumCameras]r3.Vec
}

// New builds the driver selected by s.Pattern.
func New(s config.SessionConfig) (Driver, error) {
	switch s.Pattern {
	case config.Continuous:
		return NewContinuous(s), nil
	case config.Wobble:
		return NewWobble(s), nil
	case config.LuminanceMixture:
		return NewLuminanceMixture(s), nil
	default:
		return nil, fmt.Errorf("unknown pattern %q", s.Pattern)
	}
}

// Direction returns the unit movement vector for d: the world right or
// forward axis turned about +Y by the direction's yaw.
func Direction(d config.Direction) r3.Vec {
	switch d {
	case config.Forward:
		return yaw(forwardYaw, r3.Vec{Z: 1})
	default:
		return yaw(rightYaw, r3.Vec{X: 1})
	}
}

// InitialPose is where every camera starts for d.
func InitialPose(d config.Direction) r3.Vec {
	if d == config.Forward {
		return forwardPose
	}
	return rightPose
}

func yaw(degrees float64, axis r3.Vec) r3.Vec {
	return r3.NewRotation(degrees*math.Pi/180, r3.Vec{Y: 1}).Rotate(axis)
}

func clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// base holds what all drivers share.
type base struct {
	direction r3.Vec
	speed     float64
	interval  float64
	frameNum  int
	cameras   [NumCameras]r3.Vec
}

func newBase(s config.SessionConfig, frameNum int) base {
	b := base{
		direction: Direction(s.Direction),
		speed:     s.CameraSpeed,
		interval:  s.UpdateInterval(),
		frameNum:  frameNum,
	}
	pose := InitialPose(s.Direction)
	for i := range b.cameras {
		b.cameras[i] = pose
	}
	return b
}

func (b *base) FrameNum() int {
	return b.frameNum
}

func (b *base) Cameras() [NumCameras]r3.Vec {
	return b.cameras
}

func (b *base) move(c Camera, delta r3.Vec) Move {
	b.cameras[c] = r3.Add(b.cameras[c], delta)
	return Move{Camera: c, Delta: delta}
}

// stepDue reports whether relative time has reached the next discrete
// frame boundary at frameNum*interval. Since the caller advances
// frameNum when a step fires, each boundary fires once.
func (b *base) stepDue(relative, epsilon float64) bool {
	return relative >= float64(b.frameNum)*b.interval-epsilon
}
