package profiler

import (
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Profiler tracks build throughput and memory statistics for performance monitoring.
// Outputs stats to its logger at a configurable interval. It is safe for concurrent use.
type Profiler struct {
	mu             sync.Mutex
	logger         *slog.Logger
	unitCount      int
	totalUnits     int
	start          time.Time
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// ProfilerBuilderOption is a functional option for configuring a Profiler via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often stats are logged. Defaults to 1 second.
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithLogger sets the logger stats are written to. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProfiler creates a new Profiler.
//
// Parameters:
//   - options: a variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	now := time.Now()
	p := &Profiler{
		logger:         slog.Default(),
		start:          now,
		lastTime:       now,
		updateInterval: time.Second,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Tick should be called once per finished build unit (a pipeline) to track throughput.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: units/sec, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unitCount++
	p.totalUnits++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}
	p.report(currentTime, elapsed, "build progress")
	return true
}

// Report logs the stats accumulated since the last report together with the total
// number of units and the wall time since the profiler was created.
func (p *Profiler) Report() {
	p.mu.Lock()
	defer p.mu.Unlock()

	currentTime := time.Now()
	p.report(currentTime, currentTime.Sub(p.lastTime), "build finished")
}

// Units returns the number of ticks recorded so far.
func (p *Profiler) Units() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalUnits
}

func (p *Profiler) report(currentTime time.Time, elapsed time.Duration, msg string) {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		seconds = time.Millisecond.Seconds()
	}
	rate := float64(p.unitCount) / seconds

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / seconds

	// PauseNs is a circular buffer of the last 256 GC pauses
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	p.logger.Info(msg,
		"units", p.totalUnits,
		"units_per_sec", rate,
		"heap_mb", allocMB,
		"alloc_rate_mb_s", allocRateMB,
		"gc", gcCount,
		"gc_last_us", lastPauseUs,
		"gc_max_us", maxPauseUs,
		"sys_mb", sysMB,
		"wall", currentTime.Sub(p.start))

	p.unitCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}
