package host

import (
	"gonum.org/v1/gonum/spatial/r3"

	"vectionlab.net/vection/phase"
	"vectionlab.net/vection/session"
	"vectionlab.net/vection/stimulus"
)

// Scene is the headless stand-in for the renderer: it applies each tick's
// output to camera positions, image alphas and visibility.
type Scene struct {
	Cameras  [stimulus.NumCameras]r3.Vec
	Opacity  stimulus.Opacity
	Visible  [stimulus.NumCameras]bool
	Blank    bool
	Phase    phase.Phase
	Relative float64
	Sensor   float64
	Response bool
	Steps    int
}

// NewScene starts from the driver's initial camera poses.
func NewScene(d stimulus.Driver) *Scene {
	return &Scene{Cameras: d.Cameras()}
}

// Apply moves cameras first, then sets alphas and visibility.
func (s *Scene) Apply(out session.Output, response bool) {
	for _, m := range out.Stimulus.Moves {
		s.Cameras[m.Camera] = r3.Add(s.Cameras[m.Camera], m.Delta)
	}
	if out.Stimulus.Opacity != nil {
		s.Opacity = *out.Stimulus.Opacity
	}
	if out.Stimulus.Boundary {
		s.Steps++
	}
	s.Visible = out.Stimulus.Visible
	s.Blank = out.Blank
	s.Phase = out.Phase
	s.Relative = out.Relative
	s.Sensor = out.Sensor
	s.Response = response
}
