package sched

import (
	"github.com/aikart-go/aikart/internal/container"
	"github.com/aikart-go/aikart/internal/pool"
	"github.com/aikart-go/aikart/internal/task"
)

// MLFQLevels is the fixed number of feedback-queue levels.
const MLFQLevels = 3

// DefaultLevelQuanta is the default per-level tick allowance, the
// original's {10, 20, 40}.
var DefaultLevelQuanta = [MLFQLevels]uint32{10, 20, 40}

// MLFQBoostPeriod is how often (in ticks) the global anti-starvation
// boost runs.
const MLFQBoostPeriod = 500

// Statistics field ids MLFQ publishes through its Statistics() grid: the
// task's current level and how much of that level's quantum it has used
// so far. Populated on every Tick, so a caller polling Statistics during
// a run sees the live values, not just the value at task completion.
const (
	FieldMLFQLevel = iota
	FieldMLFQQuantumUsed
)

// FlagBoostQuanta is the one-hot configuration flag MLFQ reads a task's
// own boost-eligibility window from.
const FlagBoostQuanta task.Flag = 1 << 0

type mlfqData struct {
	level       int
	quantumUsed uint32
	lastBoost   uint32
	boostQuanta uint32
}

// MLFQ (multilevel feedback queue) demotes CPU-bound tasks to lower
// levels over time and periodically boosts everyone back to level 0 to
// bound starvation. Grounded on aikartos/inc/aikartos/sch/scheduler_mlfq.hpp
// and spec.md §4.2.8.
type MLFQ struct {
	levelQuanta     [MLFQLevels]uint32
	ready           [MLFQLevels]*container.Deque[*task.TCB]
	waiting         *waitQueue
	sink            EventSink
	clock           Clock
	data            *pool.Pool[mlfqData]
	stats           *Statistics
	lastGlobalBoost uint32
}

// NewMLFQ constructs an MLFQ policy with room for capacity tasks and the
// default per-level quanta. Callers that need non-default quanta can
// call SetLevelQuanta on the returned policy before installing it.
func NewMLFQ(capacity int, sink EventSink, clock Clock) *MLFQ {
	m := &MLFQ{
		levelQuanta: DefaultLevelQuanta,
		waiting:     newWaitQueue(capacity),
		sink:        sink,
		clock:       clock,
		data:        pool.New[mlfqData](capacity),
		stats:       NewStatistics(capacity, 2),
	}
	for i := range m.ready {
		m.ready[i] = container.NewDeque[*task.TCB](capacity)
	}
	return m
}

// SetLevelQuanta overrides the per-level tick allowance.
func (m *MLFQ) SetLevelQuanta(q [MLFQLevels]uint32) { m.levelQuanta = q }

// Statistics returns the per-task level/quantum-used grid, refreshed on
// every Tick call. A caller can poll it mid-run for diagnostics without
// the framework itself ever reading it back.
func (m *MLFQ) Statistics() *Statistics { return m.stats }

// ConfigureTask starts every task at level 0 with a default boost window
// equal to the level-0 quantum, overridable from cfg.
func (m *MLFQ) ConfigureTask(tcb *task.TCB, cfg *task.TaskFlags) {
	d := m.data.Alloc()
	if d == nil {
		panic("sched: mlfq: scheduler data pool exhausted")
	}
	d.boostQuanta = m.levelQuanta[0]
	task.UpdateValue(cfg, FlagBoostQuanta, &d.boostQuanta)
	tcb.SchedulerData = d
}

// ClearTask returns tcb's scheduler data to the pool.
func (m *MLFQ) ClearTask(tcb *task.TCB) {
	if d, ok := tcb.SchedulerData.(*mlfqData); ok {
		m.data.Free(d)
	}
}

func mlfqOf(tcb *task.TCB) *mlfqData {
	d, _ := tcb.SchedulerData.(*mlfqData)
	return d
}

// AddTask enqueues tcb at its current level; a voluntary wait resets its
// quantum usage (spec.md §4.2.8: "voluntary WAIT also resets
// quantum_used").
func (m *MLFQ) AddTask(tcb *task.TCB) {
	d := mlfqOf(tcb)
	d.quantumUsed = 0
	m.ready[d.level].PushBack(tcb)
}

// GetNextTask drains the highest-populated level first and runs the
// global anti-starvation boost when its period has elapsed.
func (m *MLFQ) GetNextTask() (*task.TCB, Event) {
	now := m.clock.TickCount()
	m.waiting.Process(now, m.AddTask)
	m.globalBoost(now)

	for level := range m.ready {
		for {
			next, ok := m.ready[level].PopFront()
			if !ok {
				break
			}
			switch next.Descriptor.State {
			case task.StateReady, task.StateRunning:
				m.ready[level].PushBack(next)
				return next, EventOK
			case task.StateDone:
				if m.sink != nil {
					m.sink.OnTaskDone(next)
				}
			case task.StateWait:
				m.waiting.Push(next)
			}
		}
	}
	return nil, EventOK
}

// Tick implements SystickHook: called once per tick with the currently
// running task, it demotes that task a level once it has exhausted its
// current level's quantum. The demotion is visible to the very next
// GetNextTask call, which is what actually re-evaluates scheduling.
func (m *MLFQ) Tick(running *task.TCB) {
	if running == nil {
		return
	}
	d := mlfqOf(running)
	if d == nil {
		return
	}
	d.quantumUsed++
	if d.quantumUsed >= m.levelQuanta[d.level] {
		d.quantumUsed = 0
		if d.level < MLFQLevels-1 {
			d.level++
		}
	}
	if idx := m.data.IndexOf(d); idx >= 0 {
		m.stats.AddField(idx, FieldMLFQLevel, d.level)
		m.stats.AddField(idx, FieldMLFQQuantumUsed, d.quantumUsed)
	}
}

func (m *MLFQ) globalBoost(now uint32) {
	if now-m.lastGlobalBoost < MLFQBoostPeriod {
		return
	}
	m.lastGlobalBoost = now
	for level := 1; level < MLFQLevels; level++ {
		qsize := m.ready[level].Len()
		for i := 0; i < qsize; i++ {
			t, ok := m.ready[level].PopFront()
			if !ok {
				break
			}
			d := mlfqOf(t)
			if now-d.lastBoost >= d.boostQuanta {
				d.level = 0
				d.quantumUsed = 0
				d.lastBoost = now
				m.ready[0].PushBack(t)
			} else {
				m.ready[level].PushBack(t)
			}
		}
	}
}
