package recorder

import (
	"fmt"

	"github.com/gammazero/deque"
)

// Channel selects one of the two recorded series.
type Channel int

const (
	ChannelA Channel = iota
	ChannelB
)

func (c Channel) String() string {
	switch c {
	case ChannelA:
		return "A"
	case ChannelB:
		return "B"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// Sample is one recorded value. Time is in seconds on the session clock.
type Sample struct {
	Time  float64
	Value float32
}

// Recorder keeps a sliding window of samples for two channels. It is
// owned by the tick goroutine and is not safe for concurrent use;
// readers get copies through Values.
type Recorder struct {
	retention float64
	windows   [2]*deque.Deque[Sample]
}

// New creates a recorder that keeps samples for retention seconds.
func New(retention float64) *Recorder {
	r := &Recorder{retention: retention}
	for i := range r.windows {
		r.windows[i] = &deque.Deque[Sample]{}
	}
	return r
}

// Record appends one sample to each channel and prunes both windows.
// now must not decrease between calls.
func (r *Recorder) Record(a, b float32, now float64) {
	r.windows[ChannelA].PushBack(Sample{Time: now, Value: a})
	r.windows[ChannelB].PushBack(Sample{Time: now, Value: b})
	r.Prune(now, r.retention)
}

// Prune drops samples older than now-retention from the head of each window.
func (r *Recorder) Prune(now, retention float64) {
	horizon := now - retention
	for _, w := range r.windows {
		for w.Len() > 0 && w.Front().Time < horizon {
			w.PopFront()
		}
	}
}

// window returns a copy of the samples of ch, oldest first.
func (r *Recorder) window(ch Channel) []Sample {
	w := r.windows[ch]
	out := make([]Sample, w.Len())
	for i := range out {
		out[i] = w.At(i)
	}
	return out
}

func (r *Recorder) Len(ch Channel) int {
	return r.windows[ch].Len()
}

// Values returns the bare values of ch, oldest first.
func (r *Recorder) Values(ch Channel) []float64 {
	w := r.windows[ch]
	out := make([]float64, w.Len())
	for i := range out {
		out[i] = float64(w.At(i).Value)
	}
	return out
}
