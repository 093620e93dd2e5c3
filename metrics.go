package aikart

import (
	"sync/atomic"
	"time"

	"github.com/aikart-go/aikart/internal/sched"
)

// LatencyBuckets defines the dispatch-latency histogram buckets in
// nanoseconds, logarithmically spaced from 1us to 10s, matching the
// teacher's latency-histogram convention.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks kernel-level operational counters: context switches,
// elapsed ticks, scheduler events, and allocator usage, using the same
// sync/atomic counter style the teacher uses for its I/O metrics.
type Metrics struct {
	ContextSwitches      atomic.Uint64
	TicksElapsed         atomic.Uint64
	TasksAdded           atomic.Uint64
	TasksCompleted       atomic.Uint64
	EDFDeadlineMisses    atomic.Uint64
	OtherSchedulerEvents atomic.Uint64

	AllocBytesInUse     atomic.Int64
	AllocHighWaterMark  atomic.Int64
	AllocFailures       atomic.Uint64

	TotalDispatchLatencyNs atomic.Uint64
	DispatchCount          atomic.Uint64
	DispatchLatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
}

// NewMetrics creates a new metrics instance with its start time set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordContextSwitch increments the context-switch counter.
func (m *Metrics) RecordContextSwitch() { m.ContextSwitches.Add(1) }

// RecordTick increments the elapsed-tick counter.
func (m *Metrics) RecordTick() { m.TicksElapsed.Add(1) }

// RecordTaskAdded increments the tasks-added counter.
func (m *Metrics) RecordTaskAdded() { m.TasksAdded.Add(1) }

// RecordTaskCompleted increments the tasks-completed counter.
func (m *Metrics) RecordTaskCompleted() { m.TasksCompleted.Add(1) }

// RecordSchedulerEvent classifies and counts a non-OK scheduler event.
func (m *Metrics) RecordSchedulerEvent(evt sched.Event) {
	switch evt {
	case sched.EventOK:
		return
	case sched.EventEDFDeadlineMiss:
		m.EDFDeadlineMisses.Add(1)
	default:
		m.OtherSchedulerEvents.Add(1)
	}
}

// RecordAlloc updates the bytes-in-use gauge and its high-water mark after
// an allocation of delta bytes (negative on free).
func (m *Metrics) RecordAlloc(delta int64) {
	inUse := m.AllocBytesInUse.Add(delta)
	for {
		hwm := m.AllocHighWaterMark.Load()
		if inUse <= hwm {
			break
		}
		if m.AllocHighWaterMark.CompareAndSwap(hwm, inUse) {
			break
		}
	}
}

// RecordAllocFailure increments the allocator-exhaustion counter.
func (m *Metrics) RecordAllocFailure() { m.AllocFailures.Add(1) }

// RecordDispatchLatency records one dispatch-loop iteration's wall-clock
// cost and updates the latency histogram.
func (m *Metrics) RecordDispatchLatency(latencyNs uint64) {
	m.TotalDispatchLatencyNs.Add(latencyNs)
	m.DispatchCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.DispatchLatencyBuckets[i].Add(1)
		}
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics' counters plus a few
// derived statistics.
type MetricsSnapshot struct {
	ContextSwitches      uint64
	TicksElapsed         uint64
	TasksAdded           uint64
	TasksCompleted       uint64
	EDFDeadlineMisses    uint64
	OtherSchedulerEvents uint64

	AllocBytesInUse    int64
	AllocHighWaterMark int64
	AllocFailures      uint64

	AvgDispatchLatencyNs uint64
	UptimeNs             uint64
	LatencyHistogram     [numLatencyBuckets]uint64
}

// Snapshot takes a consistent-enough point-in-time copy of m.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ContextSwitches:      m.ContextSwitches.Load(),
		TicksElapsed:         m.TicksElapsed.Load(),
		TasksAdded:           m.TasksAdded.Load(),
		TasksCompleted:       m.TasksCompleted.Load(),
		EDFDeadlineMisses:    m.EDFDeadlineMisses.Load(),
		OtherSchedulerEvents: m.OtherSchedulerEvents.Load(),
		AllocBytesInUse:      m.AllocBytesInUse.Load(),
		AllocHighWaterMark:   m.AllocHighWaterMark.Load(),
		AllocFailures:        m.AllocFailures.Load(),
		UptimeNs:             uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}
	total := m.TotalDispatchLatencyNs.Load()
	count := m.DispatchCount.Load()
	if count > 0 {
		snap.AvgDispatchLatencyNs = total / count
	}
	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.DispatchLatencyBuckets[i].Load()
	}
	return snap
}

// Reset zeroes all counters, useful for tests.
func (m *Metrics) Reset() {
	m.ContextSwitches.Store(0)
	m.TicksElapsed.Store(0)
	m.TasksAdded.Store(0)
	m.TasksCompleted.Store(0)
	m.EDFDeadlineMisses.Store(0)
	m.OtherSchedulerEvents.Store(0)
	m.AllocBytesInUse.Store(0)
	m.AllocHighWaterMark.Store(0)
	m.AllocFailures.Store(0)
	m.TotalDispatchLatencyNs.Store(0)
	m.DispatchCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.DispatchLatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
}
