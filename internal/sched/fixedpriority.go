package sched

import (
	"github.com/aikart-go/aikart/internal/container"
	"github.com/aikart-go/aikart/internal/task"
)

// MaxPriority is the number of static priority bands, shared by
// FixedPriority and PriorityAging (spec.md §4.2.2: "MAX_PRIORITY = 3").
const MaxPriority = 3

// FlagPriority is the one-hot configuration flag both FixedPriority and
// PriorityAging read the static/base priority from.
const FlagPriority task.Flag = 1 << 0

// FixedPriority visits its priority bands low-numeric-first (0 =
// highest), round-robining within a band. Grounded on
// aikartos/inc/aikartos/sch/scheduler_fixed_priority.hpp.
type FixedPriority struct {
	ready   [MaxPriority]*container.Deque[*task.TCB]
	waiting *waitQueue
	sink    EventSink
	clock   Clock
}

// NewFixedPriority constructs a FixedPriority policy with room for
// capacity tasks per band.
func NewFixedPriority(capacity int, sink EventSink, clock Clock) *FixedPriority {
	f := &FixedPriority{waiting: newWaitQueue(capacity), sink: sink, clock: clock}
	for i := range f.ready {
		f.ready[i] = container.NewDeque[*task.TCB](capacity)
	}
	return f
}

// ConfigureTask reads the static priority out of cfg and stashes it as
// the task's scheduler data (panics if it is out of range, matching the
// original's ASSERT on a structural configuration mistake).
func (f *FixedPriority) ConfigureTask(tcb *task.TCB, cfg *task.TaskFlags) {
	var priority uint8
	task.UpdateValue(cfg, FlagPriority, &priority)
	if priority >= MaxPriority {
		panic("sched: fixed-priority: priority out of range")
	}
	tcb.SchedulerData = priority
}

// ClearTask is a no-op: the priority is stored by value, not pooled.
func (f *FixedPriority) ClearTask(*task.TCB) {}

func priorityOf(tcb *task.TCB) uint8 {
	p, _ := tcb.SchedulerData.(uint8)
	return p
}

// AddTask enqueues tcb at the back of its configured priority band.
func (f *FixedPriority) AddTask(tcb *task.TCB) {
	f.ready[priorityOf(tcb)].PushBack(tcb)
}

// GetNextTask drains the highest-populated band first.
func (f *FixedPriority) GetNextTask() (*task.TCB, Event) {
	f.waiting.Process(f.clock.TickCount(), f.AddTask)

	for band := range f.ready {
		for {
			next, ok := f.ready[band].PopFront()
			if !ok {
				break
			}
			switch next.Descriptor.State {
			case task.StateReady, task.StateRunning:
				f.ready[band].PushBack(next)
				return next, EventOK
			case task.StateDone:
				if f.sink != nil {
					f.sink.OnTaskDone(next)
				}
			case task.StateWait:
				f.waiting.Push(next)
			}
		}
	}
	return nil, EventOK
}
