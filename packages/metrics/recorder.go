package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Recorder aggregates call latencies and outcomes
type Recorder struct {
	mu sync.RWMutex

	// Counters
	totalCalls   atomic.Int64
	successCalls atomic.Int64
	errorCalls   atomic.Int64
	abortedCalls atomic.Int64

	// Latency histogram (in microseconds for precision)
	histogram *hdrhistogram.Histogram

	// Per-target metrics
	targets map[string]*targetMetrics
}

type targetMetrics struct {
	total     atomic.Int64
	errors    atomic.Int64
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
}

// NewRecorder creates a new Recorder
func NewRecorder() *Recorder {
	return &Recorder{
		// Histogram: 1us to 60s range, 3 significant digits
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		targets:   make(map[string]*targetMetrics),
	}
}

// Record records the outcome of one call against name
func (r *Recorder) Record(name string, duration time.Duration, err error) {
	r.totalCalls.Add(1)
	if err != nil {
		r.errorCalls.Add(1)
	} else {
		r.successCalls.Add(1)
	}

	latencyUs := clampLatency(duration)

	r.mu.Lock()
	_ = r.histogram.RecordValue(latencyUs)
	tm, ok := r.targets[name]
	if !ok && name != "" {
		tm = &targetMetrics{histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)}
		r.targets[name] = tm
	}
	r.mu.Unlock()

	if tm == nil {
		return
	}
	tm.total.Add(1)
	if err != nil {
		tm.errors.Add(1)
	}
	tm.mu.Lock()
	_ = tm.histogram.RecordValue(latencyUs)
	tm.mu.Unlock()
}

// RecordAbort counts a cancelled call in addition to Record
func (r *Recorder) RecordAbort() {
	r.abortedCalls.Add(1)
}

// Reset discards everything recorded so far
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalCalls.Store(0)
	r.successCalls.Store(0)
	r.errorCalls.Store(0)
	r.abortedCalls.Store(0)
	r.histogram.Reset()
	r.targets = make(map[string]*targetMetrics)
}

// Summary is a point-in-time view of a Recorder
type Summary struct {
	Count   int64
	Success int64
	Errors  int64
	Aborted int64

	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration

	Targets map[string]*TargetSummary
}

// TargetSummary holds the summary for one target
type TargetSummary struct {
	Name   string
	Count  int64
	Errors int64
	P50    time.Duration
	P95    time.Duration
	Mean   time.Duration
}

// ErrorRate returns the fraction of failed calls
func (s *Summary) ErrorRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Count)
}

// Snapshot returns the current summary
func (r *Recorder) Snapshot() *Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := &Summary{
		Count:   r.totalCalls.Load(),
		Success: r.successCalls.Load(),
		Errors:  r.errorCalls.Load(),
		Aborted: r.abortedCalls.Load(),
		P50:     us(r.histogram.ValueAtQuantile(50)),
		P95:     us(r.histogram.ValueAtQuantile(95)),
		P99:     us(r.histogram.ValueAtQuantile(99)),
		Min:     us(r.histogram.Min()),
		Max:     us(r.histogram.Max()),
		Mean:    time.Duration(r.histogram.Mean()) * time.Microsecond,
		Targets: make(map[string]*TargetSummary, len(r.targets)),
	}

	for name, tm := range r.targets {
		tm.mu.Lock()
		s.Targets[name] = &TargetSummary{
			Name:   name,
			Count:  tm.total.Load(),
			Errors: tm.errors.Load(),
			P50:    us(tm.histogram.ValueAtQuantile(50)),
			P95:    us(tm.histogram.ValueAtQuantile(95)),
			Mean:   time.Duration(tm.histogram.Mean()) * time.Microsecond,
		}
		tm.mu.Unlock()
	}

	return s
}

func clampLatency(d time.Duration) int64 {
	v := d.Microseconds()
	if v < minLatencyUs {
		v = minLatencyUs
	}
	if v > maxLatencyUs {
		v = maxLatencyUs
	}
	return v
}

func us(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
