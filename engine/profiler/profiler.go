package profiler

import (
	"bytes"
	"fmt"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-rt/engine/log"
	"github.com/Carmen-Shannon/oxy-rt/engine/raytracing"
	"github.com/olekukonko/tablewriter"
)

var logger = log.New("profiler")

// Profiler tracks frame rate, frame time, and memory statistics along with the
// acceleration structure and shader table rebuild counters of a raytracer.
type Profiler struct {
	frameCount     int
	totalFrames    int
	lastTime       time.Time
	started        time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	frameTime time.Duration
	slowest   time.Duration
	last      raytracing.Stats
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	now := time.Now()
	return &Profiler{
		lastTime:       now,
		started:        now,
		updateInterval: time.Second,
	}
}

// SetInterval changes how often Tick logs.
//
// Parameters:
//   - d: the logging interval; values <= 0 log on every tick
func (p *Profiler) SetInterval(d time.Duration) {
	p.updateInterval = max(d, 0)
}

// Frame records the duration of one rendered frame and the raytracer counters after it.
//
// Parameters:
//   - d: wall time from action drain to fence completion
//   - stats: the raytracer counters after the frame
func (p *Profiler) Frame(d time.Duration, stats raytracing.Stats) {
	p.totalFrames++
	p.frameTime += d
	p.slowest = max(p.slowest, d)
	p.last = stats
}

// Frames returns the number of frames recorded with Frame.
func (p *Profiler) Frames() int {
	return p.totalFrames
}

// Stats returns the raytracer counters recorded with the most recent frame.
func (p *Profiler) Stats() raytracing.Stats {
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs FPS, heap usage, allocation rate, GC pauses, and rebuild counters when the
// update interval has elapsed.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / max(elapsed.Seconds(), 1e-9)

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / max(elapsed.Seconds(), 1e-9)

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	logger.Infof("FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB | refits %d, TLAS builds %d, SBT builds %d",
		fps, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB,
		p.last.Refits, p.last.TopLevelBuilds, p.last.ShaderTableBuilds)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Summary renders the recorded frames and rebuild counters as a table.
//
// Returns:
//   - string: the rendered table
func (p *Profiler) Summary() string {
	var avg time.Duration
	if p.totalFrames > 0 {
		avg = p.frameTime / time.Duration(p.totalFrames)
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Counter", "Value"})
	table.Append([]string{"Frames", fmt.Sprintf("%d", p.totalFrames)})
	table.Append([]string{"Average frame", avg.String()})
	table.Append([]string{"Slowest frame", p.slowest.String()})
	table.Append([]string{"Bottom-level builds", fmt.Sprintf("%d", p.last.BottomLevelBuilds)})
	table.Append([]string{"Top-level builds", fmt.Sprintf("%d", p.last.TopLevelBuilds)})
	table.Append([]string{"Top-level refits", fmt.Sprintf("%d", p.last.Refits)})
	table.Append([]string{"Shader table builds", fmt.Sprintf("%d", p.last.ShaderTableBuilds)})
	table.Append([]string{"Pipeline builds", fmt.Sprintf("%d", p.last.PipelineBuilds)})
	table.SetFooter([]string{"Wall time", time.Since(p.started).Round(time.Millisecond).String()})
	table.Render()
	return buf.String()
}
