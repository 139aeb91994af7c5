package stimulus

import (
	"gonum.org/v1/gonum/spatial/r3"

	"vectionlab.net/vection/config"
	"vectionlab.net/vection/datalog"
	"vectionlab.net/vection/phase"
)

// Continuous moves camera 0 every tick at the nominal speed scaled by the
// sensor value.
type Continuous struct {
	base
}

func NewContinuous(s config.SessionConfig) *Continuous {
	return &Continuous{base: newBase(s, 0)}
}

func (d *Continuous) Pattern() config.Pattern { return config.Continuous }

func (d *Continuous) Header() datalog.Row { return datalog.FrameHeader }

func (d *Continuous) Tick(in Input) Output {
	if in.Phase != phase.Active {
		return Output{Row: frameRow(0, in.Relative, 3, in.Response)}
	}

	d.frameNum++
	delta := r3.Scale(in.Sensor*d.speed*in.Dt, d.direction)
	out := Output{
		Moves: []Move{d.move(Camera0, delta)},
		Row:   frameRow(d.frameNum, in.Relative, 3, in.Response),
	}
	out.Visible[Camera0] = true
	return out
}

func frameRow(frame int, relative float64, decimals int, response bool) datalog.Row {
	return datalog.Row{
		datalog.Int(frame),
		datalog.Fixed(datalog.Millis(relative), decimals),
		datalog.Flag(response),
	}
}
