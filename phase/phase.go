package phase

import "fmt"

// Phase is a section of the session timeline.
type Phase int

const (
	PreBuffer Phase = iota
	Active
	PostBuffer
	Done
)

func (p Phase) String() string {
	switch p {
	case PreBuffer:
		return "PreBuffer"
	case Active:
		return "Active"
	case PostBuffer:
		return "PostBuffer"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Of maps elapsed session time to its phase. The returned relative time
// is elapsed-buffer in every phase, so it is negative during PreBuffer.
// All values are seconds.
//
//	elapsed <  buffer                   PreBuffer
//	elapsed <= buffer+trial             Active
//	elapsed <= trial+2*buffer           PostBuffer
//	otherwise                           Done
func Of(elapsed, buffer, trial float64) (Phase, float64) {
	rel := elapsed - buffer
	switch {
	case elapsed < buffer:
		return PreBuffer, rel
	case elapsed <= buffer+trial:
		return Active, rel
	case elapsed <= trial+2*buffer:
		return PostBuffer, rel
	default:
		return Done, rel
	}
}

// Tracker remembers the last observed phase and reports transitions.
type Tracker struct {
	current  Phase
	observed bool
}

// Observe records p and reports whether it was just entered. The very
// first observation is always an entry.
func (t *Tracker) Observe(p Phase) bool {
	entered := !t.observed || p != t.current
	t.current = p
	t.observed = true
	return entered
}

// Current returns the last observed phase and false before any observation.
func (t *Tracker) Current() (Phase, bool) {
	return t.current, t.observed
}

// Blanker schedules a neutral visual field for a fixed duration on the
// tick clock. A request while one is still showing is ignored.
type Blanker struct {
	duration float64
	until    float64
	showing  bool
}

func NewBlanker(duration float64) *Blanker {
	return &Blanker{duration: duration}
}

// Request starts a blank at now. It returns false if a blank is already
// showing or the duration is not positive.
func (b *Blanker) Request(now float64) bool {
	if b.duration <= 0 || b.Showing(now) {
		return false
	}
	b.until = now + b.duration
	b.showing = true
	return true
}

// Showing reports whether the neutral field is visible at now and ends
// the blank once its time has passed.
func (b *Blanker) Showing(now float64) bool {
	if b.showing && now >= b.until {
		b.showing = false
	}
	return b.showing
}
