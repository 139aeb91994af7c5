package stimulus

import (
	"gonum.org/v1/gonum/spatial/r3"

	"vectionlab.net/vection/config"
	"vectionlab.net/vection/datalog"
	"vectionlab.net/vection/phase"
)

const luminanceEpsilon = 1e-4

// LuminanceMixture cross-fades images 1 and 2. Their cameras leapfrog
// each other by two capture distances, so the blend of both frames moves
// smoothly at the nominal speed.
type LuminanceMixture struct {
	base
	opacity Opacity
}

// NewLuminanceMixture places camera 2 one capture distance ahead of
// camera 1.
func NewLuminanceMixture(s config.SessionConfig) *LuminanceMixture {
	d := &LuminanceMixture{base: newBase(s, 1)}
	d.move(Camera2, r3.Scale(s.CaptureIntervalDistance(), d.direction))
	return d
}

func (d *LuminanceMixture) Pattern() config.Pattern { return config.LuminanceMixture }

func (d *LuminanceMixture) Header() datalog.Row { return datalog.LuminanceHeader }

// Opacity returns the pair computed on the last tick.
func (d *LuminanceMixture) Opacity() Opacity {
	return d.opacity
}

// Tick runs one Active step. On a boundary it advances the frame counter
// and moves the camera of the image that fades in next. The cross-fade
// for the current time is computed afterwards in the same tick, so at a
// boundary that image starts at opacity zero.
func (d *LuminanceMixture) Tick(in Input) Output {
	if in.Phase != phase.Active {
		d.opacity = Opacity{}
		out := Output{Row: datalog.Row{"0", "0", "0", "0",
			datalog.Fixed(datalog.Millis(in.Relative), 3), datalog.Flag(in.Response)}}
		if in.Phase == phase.PostBuffer || in.Phase == phase.Done {
			out.Opacity = &Opacity{}
		}
		return out
	}

	var out Output
	if d.stepDue(in.Relative, luminanceEpsilon) {
		d.frameNum++
		delta := r3.Scale(d.speed*d.interval*2, d.direction)
		if d.frameNum%2 == 0 {
			out.Moves = []Move{d.move(Camera1, delta)}
		} else {
			out.Moves = []Move{d.move(Camera2, delta)}
		}
		out.Boundary = true
	}

	ratio := clamp((in.Relative-float64(d.frameNum-1)*d.interval)/d.interval, 0, 1)
	if d.frameNum%2 == 0 {
		d.opacity = Opacity{Image1: ratio, Image2: 1 - ratio}
	} else {
		d.opacity = Opacity{Image1: 1 - ratio, Image2: ratio}
	}

	opacity := d.opacity
	out.Opacity = &opacity
	out.Visible[Camera1] = true
	out.Visible[Camera2] = true
	out.Row = datalog.Row{
		datalog.Int(d.frameNum),
		datalog.Fixed(opacity.Image1, 3),
		datalog.Int(d.frameNum + 1),
		datalog.Fixed(opacity.Image2, 3),
		datalog.Fixed(datalog.Millis(in.Relative), 3),
		datalog.Flag(in.Response),
	}
	return out
}
