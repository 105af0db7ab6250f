package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-rt/common"
)

// Profiler tracks frame rate, memory statistics and named timing scopes.
// Outputs stats to the engine logger at a configurable interval.
// A nil *Profiler is valid and records nothing.
type Profiler struct {
	mu             sync.Mutex
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	open   map[string]time.Time
	scopes map[string]*ScopeStats
	order  []string
}

// ScopeStats accumulates the time spent in one named scope since the last report.
type ScopeStats struct {
	Calls int
	Total time.Duration
	Max   time.Duration
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		open:           make(map[string]time.Time),
		scopes:         make(map[string]*ScopeStats),
	}
}

// SetInterval changes how often Tick reports.
//
// Parameters:
//   - d: the report interval
func (p *Profiler) SetInterval(d time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateInterval = d
}

// BeginScope starts timing the named scope. Scopes with different names may nest.
//
// Parameters:
//   - name: the scope name
func (p *Profiler) BeginScope(name string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open[name] = time.Now()
}

// EndScope stops timing the named scope. Ending a scope that was not begun is a no-op.
//
// Parameters:
//   - name: the scope name
func (p *Profiler) EndScope(name string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	start, ok := p.open[name]
	if !ok {
		return
	}
	delete(p.open, name)
	d := time.Since(start)
	s, ok := p.scopes[name]
	if !ok {
		s = &ScopeStats{}
		p.scopes[name] = s
		p.order = append(p.order, name)
	}
	s.Calls++
	s.Total += d
	s.Max = max(s.Max, d)
}

// Scope returns the statistics accumulated for name since the last report.
//
// Parameters:
//   - name: the scope name
//
// Returns:
//   - ScopeStats: the statistics, zero if the scope never ended
func (p *Profiler) Scope(name string) ScopeStats {
	if p == nil {
		return ScopeStats{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.scopes[name]; ok {
		return *s
	}
	return ScopeStats{}
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed: FPS, heap
// usage, allocation rate, GC count and pause times, total memory, and the average
// and worst time of every scope. Scope statistics reset after each report.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses.
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	log := common.Logger()
	log.Info("profiler",
		"fps", fps,
		"heap_mb", allocMB,
		"alloc_rate_mb_s", allocRateMB,
		"gc", gcCount,
		"gc_last_us", lastPauseUs,
		"gc_max_us", maxPauseUs,
		"sys_mb", sysMB,
	)
	for _, name := range p.order {
		s := p.scopes[name]
		if s.Calls == 0 {
			continue
		}
		log.Info("profiler scope",
			"scope", name,
			"calls", s.Calls,
			"avg", s.Total/time.Duration(s.Calls),
			"max", s.Max,
		)
		*s = ScopeStats{}
	}

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
