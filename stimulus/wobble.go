package stimulus

import (
	"gonum.org/v1/gonum/spatial/r3"

	"vectionlab.net/vection/config"
	"vectionlab.net/vection/datalog"
	"vectionlab.net/vection/phase"
)

// wobbleEpsilon absorbs float error when the tick lands on a boundary.
const wobbleEpsilon = 1e-5

// Wobble moves camera 1 in discrete steps of one capture distance, one
// step per update interval, independent of the host tick rate.
type Wobble struct {
	base
}

func NewWobble(s config.SessionConfig) *Wobble {
	return &Wobble{base: newBase(s, 1)}
}

func (d *Wobble) Pattern() config.Pattern { return config.Wobble }

func (d *Wobble) Header() datalog.Row { return datalog.FrameHeader }

func (d *Wobble) Tick(in Input) Output {
	if in.Phase != phase.Active {
		return Output{Row: frameRow(0, in.Relative, 3, in.Response)}
	}

	var out Output
	if d.stepDue(in.Relative, wobbleEpsilon) {
		d.frameNum++
		out.Moves = []Move{d.move(Camera1, r3.Scale(d.speed*d.interval, d.direction))}
		out.Boundary = true
	}
	out.Visible[Camera1] = true
	out.Row = frameRow(d.frameNum, in.Relative, 4, in.Response)
	return out
}
