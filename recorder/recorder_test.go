package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder_RecordAppends(t *testing.T) {
	r := New(1.0)
	r.Record(0.25, 0.75, 0.1)
	r.Record(0.5, 0.5, 0.2)

	assert.Equal(t, []Sample{{0.1, 0.25}, {0.2, 0.5}}, r.window(ChannelA))
	assert.Equal(t, []Sample{{0.1, 0.75}, {0.2, 0.5}}, r.window(ChannelB))
	assert.Equal(t, 2, r.Len(ChannelA))
}

func TestRecorder_PrunesOldSamples(t *testing.T) {
	r := New(1.0)
	for i := 0; i <= 30; i++ {
		now := float64(i) * 0.1
		r.Record(float32(i), float32(-i), now)

		for _, ch := range []Channel{ChannelA, ChannelB} {
			for _, s := range r.window(ch) {
				assert.LessOrEqual(t, now-s.Time, 1.0+1e-9, "sample at %f retained at %f", s.Time, now)
			}
		}
	}

	// Samples at t=2.0 (within float error) up to 3.0 remain.
	w := r.window(ChannelA)
	assert.InDelta(t, 3.0, w[len(w)-1].Time, 1e-9)
	assert.GreaterOrEqual(t, w[0].Time, 2.0-1e-9)
	assert.Equal(t, r.Len(ChannelA), r.Len(ChannelB))
}

func TestRecorder_PruneBoundaryIsInclusive(t *testing.T) {
	r := New(10)
	r.Record(1, 1, 1.0)
	r.Record(2, 2, 2.0)

	r.Prune(3.0, 2.0)
	assert.Len(t, r.window(ChannelA), 2, "a sample exactly at the horizon is kept")

	r.Prune(3.5, 2.0)
	assert.Equal(t, []Sample{{2.0, 2}}, r.window(ChannelA))

	r.Prune(100, 1)
	assert.Empty(t, r.window(ChannelA))
	assert.Empty(t, r.window(ChannelB))
}

func TestRecorder_WindowIsACopy(t *testing.T) {
	r := New(1)
	r.Record(1, 2, 0)
	w := r.window(ChannelA)
	w[0].Value = 42
	assert.Equal(t, float32(1), r.window(ChannelA)[0].Value)
}

func TestRecorder_Values(t *testing.T) {
	r := New(5)
	r.Record(0.5, 0.25, 0)
	r.Record(1, 0, 1)
	assert.Equal(t, []float64{0.5, 1}, r.Values(ChannelA))
	assert.Equal(t, []float64{0.25, 0}, r.Values(ChannelB))
}

func TestChannel_String(t *testing.T) {
	assert.Equal(t, "A", ChannelA.String())
	assert.Equal(t, "B", ChannelB.String())
	assert.Equal(t, "Channel(7)", Channel(7).String())
}
