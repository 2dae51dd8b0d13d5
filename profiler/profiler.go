// Package profiler - Per-stage timing and metric windows for the navigation pipeline.
package profiler

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/nvr-ai/go-wayfinder/internal/log"
)

// MetricsCollector is polled on every sample tick for gauges that live
// elsewhere, such as publisher delivery counters.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// Options configures a Profiler.
type Options struct {
	// ReportInterval is how often a summary is logged (default: 30s, 0 keeps the default,
	// negative disables reporting).
	ReportInterval time.Duration
	// SampleInterval is how often collectors and memory stats are sampled (default: 1s).
	SampleInterval time.Duration
	// MaxSamples bounds every rolling window (default: 600).
	MaxSamples int
	// Logger receives the periodic reports (default: the global logger).
	Logger *slog.Logger
}

// MetricStats summarises one rolling window of metric values.
type MetricStats struct {
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Last    float64 `json:"last"`
	Samples int     `json:"samples"`
	Total   int64   `json:"total"`
}

// OperationStats summarises one rolling window of operation durations.
type OperationStats struct {
	Avg   time.Duration `json:"avg_ns"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
	Count int64         `json:"count"`
}

// Stats is a point in time snapshot of a Profiler.
type Stats struct {
	Uptime     time.Duration             `json:"uptime_ns"`
	Goroutines int                       `json:"goroutines"`
	HeapAlloc  uint64                    `json:"heap_alloc"`
	NumGC      uint32                    `json:"num_gc"`
	Metrics    map[string]MetricStats    `json:"metrics"`
	Operations map[string]OperationStats `json:"operations"`
}

// window is a bounded FIFO of samples with a running sum. Min and max are
// lifetime values so a spike stays visible after it leaves the window.
type window struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

func (w *window) add(v float64, limit int) {
	if w.count == 0 || v < w.min {
		w.min = v
	}
	if w.count == 0 || v > w.max {
		w.max = v
	}
	w.values = append(w.values, v)
	w.sum += v
	w.count++
	if len(w.values) > limit {
		w.sum -= w.values[0]
		w.values = w.values[1:]
	}
}

func (w *window) avg() float64 {
	if len(w.values) == 0 {
		return 0
	}
	return w.sum / float64(len(w.values))
}

// Profiler tracks pipeline stage durations and custom metrics.
//
// All methods are safe for concurrent use. A nil *Profiler is valid and
// records nothing, so callers never need to guard optional profiling.
type Profiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	maxSamples     int
	logger         *slog.Logger

	mu         sync.RWMutex
	startTime  time.Time
	memStats   runtime.MemStats
	metrics    map[string]*window
	operations map[string]*window
	collectors []MetricsCollector

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProfiler creates a profiler. It records immediately; Start only adds
// the background sampling and reporting loops.
//
// Arguments:
//   - opts: Profiler options, zero values take defaults.
//
// Returns:
//   - *Profiler: The profiler.
func NewProfiler(opts Options) *Profiler {
	if opts.ReportInterval == 0 {
		opts.ReportInterval = 30 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if opts.Logger == nil {
		opts.Logger = log.L()
	}

	return &Profiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		maxSamples:     opts.MaxSamples,
		logger:         opts.Logger.With("component", "profiler"),
		startTime:      time.Now(),
		metrics:        make(map[string]*window),
		operations:     make(map[string]*window),
	}
}

// Start launches the sampling and reporting loops. They stop when ctx is
// cancelled or Stop is called. Calling Start twice is a no-op.
func (p *Profiler) Start(ctx context.Context) {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(ctx, p.sampleInterval, p.sample)

	if p.reportInterval > 0 {
		p.wg.Add(1)
		go p.loop(ctx, p.reportInterval, p.report)
	}
}

// Stop cancels the background loops and waits for them to exit.
func (p *Profiler) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.wg.Wait()
	}
}

func (p *Profiler) loop(ctx context.Context, every time.Duration, fn func()) {
	defer p.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// AddMetricsCollector registers a collector polled on every sample tick.
func (p *Profiler) AddMetricsCollector(collector MetricsCollector) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collectors = append(p.collectors, collector)
}

// RecordMetric adds a value to the named metric window.
//
// Arguments:
//   - name: Metric name, e.g. "fusion.suppressed".
//   - value: The value to record.
func (p *Profiler) RecordMetric(name string, value float64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(p.metrics, name, value)
}

// StartOperation begins timing a stage.
//
// Arguments:
//   - name: Stage name, e.g. "pipeline.fuse".
//
// Returns:
//   - func(): Call when the stage completes.
func (p *Profiler) StartOperation(name string) func() {
	if p == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.RecordOperation(name, time.Since(start))
	}
}

// RecordOperation adds a measured duration to the named stage.
func (p *Profiler) RecordOperation(name string, d time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(p.operations, name, float64(d))
}

func (p *Profiler) record(into map[string]*window, name string, v float64) {
	w, ok := into[name]
	if !ok {
		w = &window{values: make([]float64, 0, p.maxSamples)}
		into[name] = w
	}
	w.add(v, p.maxSamples)
}

func (p *Profiler) sample() {
	p.mu.Lock()
	collectors := append([]MetricsCollector(nil), p.collectors...)
	runtime.ReadMemStats(&p.memStats)
	p.mu.Unlock()

	// Collectors may take their own locks, so they run outside ours.
	for _, c := range collectors {
		for name, v := range c.CollectMetrics() {
			p.RecordMetric(name, v)
		}
	}
}

// Snapshot returns the current statistics.
func (p *Profiler) Snapshot() Stats {
	if p == nil {
		return Stats{Metrics: map[string]MetricStats{}, Operations: map[string]OperationStats{}}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{
		Uptime:     time.Since(p.startTime),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  p.memStats.HeapAlloc,
		NumGC:      p.memStats.NumGC,
		Metrics:    make(map[string]MetricStats, len(p.metrics)),
		Operations: make(map[string]OperationStats, len(p.operations)),
	}
	for name, w := range p.metrics {
		stats.Metrics[name] = MetricStats{
			Avg:     w.avg(),
			Min:     w.min,
			Max:     w.max,
			Last:    w.values[len(w.values)-1],
			Samples: len(w.values),
			Total:   w.count,
		}
	}
	for name, w := range p.operations {
		stats.Operations[name] = OperationStats{
			Avg:   time.Duration(w.avg()),
			Min:   time.Duration(w.min),
			Max:   time.Duration(w.max),
			Count: w.count,
		}
	}
	return stats
}

func (p *Profiler) report() {
	stats := p.Snapshot()

	p.logger.Info("status",
		"uptime", stats.Uptime.Truncate(time.Second),
		"goroutines", stats.Goroutines,
		"heap", formatBytes(stats.HeapAlloc),
		"gc", stats.NumGC,
	)

	for _, name := range sortedKeys(stats.Operations) {
		op := stats.Operations[name]
		p.logger.Info("operation",
			"name", name,
			"avg", op.Avg.Truncate(time.Microsecond),
			"min", op.Min.Truncate(time.Microsecond),
			"max", op.Max.Truncate(time.Microsecond),
			"count", op.Count,
		)
	}
	for _, name := range sortedKeys(stats.Metrics) {
		m := stats.Metrics[name]
		p.logger.Info("metric", "name", name, "avg", m.Avg, "min", m.Min, "max", m.Max, "last", m.Last)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
