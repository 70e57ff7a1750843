package mlfq

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the run-slice duration histogram buckets in
// nanoseconds, covering from 1ms (a fraction of a UT) to 100s (many
// full quanta at the highest priority level).
var LatencyBuckets = []uint64{
	1_000_000,       // 1ms
	10_000_000,      // 10ms
	100_000_000,     // 100ms
	1_000_000_000,   // 1s
	2_000_000_000,   // 2s (one base quantum)
	10_000_000_000,  // 10s
	30_000_000_000,  // 30s
	100_000_000_000, // 100s
}

const numLatencyBuckets = 8

// Metrics tracks scheduling statistics across the lifetime of a running
// Scheduler.
type Metrics struct {
	AdmissionOps    atomic.Uint64 // Successful admissions
	AdmissionErrors atomic.Uint64 // Rejected/failed admissions

	RunSlices  atomic.Uint64 // Total run-slices dispatched
	Promotions atomic.Uint64 // Run-slices ending in a promotion
	Demotions  atomic.Uint64 // Run-slices ending in a demotion
	IOBegins   atomic.Uint64 // IO_BEGIN events observed
	IOEnds     atomic.Uint64 // IO_END events observed
	Retirements atomic.Uint64 // Processes reaped and retired

	QueueDepthTotal atomic.Uint64 // Cumulative queue depth samples
	QueueDepthCount atomic.Uint64 // Number of queue depth measurements
	MaxQueueDepth   atomic.Uint32 // Maximum observed queue depth

	TotalLatencyNs atomic.Uint64 // Cumulative run-slice duration
	OpCount        atomic.Uint64 // Total run-slices (for average latency)

	// LatencyBuckets holds cumulative counts: bucket[i] counts run-slices
	// with duration <= LatencyBuckets[i].
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64 // Scheduler start timestamp (UnixNano)
	StopTime  atomic.Int64 // Scheduler stop timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordAdmission records the outcome of one admission attempt.
func (m *Metrics) RecordAdmission(success bool) {
	if success {
		m.AdmissionOps.Add(1)
	} else {
		m.AdmissionErrors.Add(1)
	}
}

// RecordRunSlice records one completed run-slice.
func (m *Metrics) RecordRunSlice(priority int, durationNs uint64, promoted bool) {
	m.RunSlices.Add(1)
	if promoted {
		m.Promotions.Add(1)
	} else {
		m.Demotions.Add(1)
	}
	m.recordLatency(durationNs)
}

// RecordRunSliceNeutral records a completed run-slice that was neither
// promoted nor demoted (an I/O block that did not leave more than half
// a base quantum unused). It still counts toward RunSlices and latency, but
// leaves Promotions and Demotions untouched.
func (m *Metrics) RecordRunSliceNeutral(priority int, durationNs uint64) {
	m.RunSlices.Add(1)
	m.recordLatency(durationNs)
}

// RecordIOBegin records an IO_BEGIN event.
func (m *Metrics) RecordIOBegin() { m.IOBegins.Add(1) }

// RecordIOEnd records an IO_END event.
func (m *Metrics) RecordIOEnd() { m.IOEnds.Add(1) }

// RecordRetirement records a process exiting and being reaped.
func (m *Metrics) RecordRetirement() { m.Retirements.Add(1) }

// RecordQueueDepth records the current total queue depth.
func (m *Metrics) RecordQueueDepth(depth int) {
	d := uint64(depth)
	m.QueueDepthTotal.Add(d)
	m.QueueDepthCount.Add(1)
	for {
		current := m.MaxQueueDepth.Load()
		if uint32(depth) <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, uint32(depth)) {
			break
		}
	}
}

func (m *Metrics) recordLatency(durationNs uint64) {
	m.TotalLatencyNs.Add(durationNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if durationNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the scheduler as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	AdmissionOps    uint64
	AdmissionErrors uint64

	RunSlices   uint64
	Promotions  uint64
	Demotions   uint64
	IOBegins    uint64
	IOEnds      uint64
	Retirements uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalOps  uint64
	ErrorRate float64
}

// Snapshot creates a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		AdmissionOps:    m.AdmissionOps.Load(),
		AdmissionErrors: m.AdmissionErrors.Load(),
		RunSlices:       m.RunSlices.Load(),
		Promotions:      m.Promotions.Load(),
		Demotions:       m.Demotions.Load(),
		IOBegins:        m.IOBegins.Load(),
		IOEnds:          m.IOEnds.Load(),
		Retirements:     m.Retirements.Load(),
		MaxQueueDepth:   m.MaxQueueDepth.Load(),
	}

	snap.TotalOps = snap.AdmissionOps + snap.AdmissionErrors

	depthTotal := m.QueueDepthTotal.Load()
	depthCount := m.QueueDepthCount.Load()
	if depthCount > 0 {
		snap.AvgQueueDepth = float64(depthTotal) / float64(depthCount)
	}

	totalLatency := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatency / opCount
	}

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}

	if snap.AdmissionOps+snap.AdmissionErrors > 0 {
		snap.ErrorRate = float64(snap.AdmissionErrors) / float64(snap.AdmissionOps+snap.AdmissionErrors) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	total := m.OpCount.Load()
	if total == 0 {
		return 0
	}
	target := uint64(float64(total) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		count := m.LatencyBuckets[i].Load()
		if count >= target {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if count == prevCount {
				return bucket
			}
			fraction := float64(target-prevCount) / float64(count-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters. Useful for testing.
func (m *Metrics) Reset() {
	m.AdmissionOps.Store(0)
	m.AdmissionErrors.Store(0)
	m.RunSlices.Store(0)
	m.Promotions.Store(0)
	m.Demotions.Store(0)
	m.IOBegins.Store(0)
	m.IOEnds.Store(0)
	m.Retirements.Store(0)
	m.QueueDepthTotal.Store(0)
	m.QueueDepthCount.Store(0)
	m.MaxQueueDepth.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable collection of scheduling events. It mirrors
// internal/interfaces.Observer; the duplicate definition avoids an
// import cycle between this package and internal packages.
type Observer interface {
	ObserveAdmission(success bool)
	ObserveRunSlice(priority int, durationNs uint64, promoted bool)
	ObserveRunSliceNeutral(priority int, durationNs uint64)
	ObserveIOBegin()
	ObserveIOEnd()
	ObserveRetirement()
	ObserveQueueDepth(depth int)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveAdmission(bool)                 {}
func (NoOpObserver) ObserveRunSlice(int, uint64, bool)     {}
func (NoOpObserver) ObserveRunSliceNeutral(int, uint64)    {}
func (NoOpObserver) ObserveIOBegin()                       {}
func (NoOpObserver) ObserveIOEnd()                         {}
func (NoOpObserver) ObserveRetirement()                    {}
func (NoOpObserver) ObserveQueueDepth(int)                 {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveAdmission(success bool) { o.metrics.RecordAdmission(success) }
func (o *MetricsObserver) ObserveRunSlice(priority int, durationNs uint64, promoted bool) {
	o.metrics.RecordRunSlice(priority, durationNs, promoted)
}
func (o *MetricsObserver) ObserveRunSliceNeutral(priority int, durationNs uint64) {
	o.metrics.RecordRunSliceNeutral(priority, durationNs)
}
func (o *MetricsObserver) ObserveIOBegin()    { o.metrics.RecordIOBegin() }
func (o *MetricsObserver) ObserveIOEnd()      { o.metrics.RecordIOEnd() }
func (o *MetricsObserver) ObserveRetirement() { o.metrics.RecordRetirement() }
func (o *MetricsObserver) ObserveQueueDepth(depth int) { o.metrics.RecordQueueDepth(depth) }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
