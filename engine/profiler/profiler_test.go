package profiler

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-rt/engine/raytracing"
	"github.com/stretchr/testify/assert"
)

func TestTickHonorsInterval(t *testing.T) {
	p := NewProfiler()
	p.SetInterval(time.Hour)
	assert.False(t, p.Tick())

	p.SetInterval(0)
	assert.True(t, p.Tick())
}

func TestSummaryListsCounters(t *testing.T) {
	p := NewProfiler()
	p.Frame(2*time.Millisecond, raytracing.Stats{Refits: 1})
	p.Frame(4*time.Millisecond, raytracing.Stats{Refits: 2, TopLevelBuilds: 1, ShaderTableBuilds: 3})

	assert.Equal(t, 2, p.Frames())
	assert.Equal(t, uint64(2), p.Stats().Refits)

	out := p.Summary()
	assert.Contains(t, out, "Top-level refits")
	assert.Contains(t, out, "3ms")
	assert.Contains(t, out, "4ms")
}
