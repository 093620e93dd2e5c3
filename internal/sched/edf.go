package sched

import (
	"github.com/aikart-go/aikart/internal/container"
	"github.com/aikart-go/aikart/internal/pool"
	"github.com/aikart-go/aikart/internal/task"
)

// FlagDeadline is the one-hot configuration flag EDF reads a task's
// relative deadline (in ticks) from.
const FlagDeadline task.Flag = 1 << 0

type edfData struct {
	deadline uint32 // absolute: tick-at-install + relative deadline
}

// EDF (earliest-deadline-first) keeps its ready structure as a min-heap
// on absolute deadline and raises EventEDFDeadlineMiss when the head has
// already missed its deadline. Grounded on
// aikartos/inc/aikartos/sch/scheduler_edf.hpp and spec.md §4.2.6.
type EDF struct {
	ready   *container.Heap[*task.TCB]
	waiting *waitQueue
	sink    EventSink
	clock   Clock
	data    *pool.Pool[edfData]
}

// NewEDF constructs an EDF policy with room for capacity tasks.
func NewEDF(capacity int, sink EventSink, clock Clock) *EDF {
	e := &EDF{waiting: newWaitQueue(capacity), sink: sink, clock: clock, data: pool.New[edfData](capacity)}
	e.ready = container.NewHeap[*task.TCB](capacity, func(a, b *task.TCB) bool {
		return edfOf(a).deadline < edfOf(b).deadline
	})
	return e
}

// ConfigureTask computes the task's absolute deadline from the relative
// deadline in cfg and the current tick.
func (e *EDF) ConfigureTask(tcb *task.TCB, cfg *task.TaskFlags) {
	d := e.data.Alloc()
	if d == nil {
		panic("sched: edf: scheduler data pool exhausted")
	}
	var relative uint32
	task.UpdateValue(cfg, FlagDeadline, &relative)
	d.deadline = e.clock.TickCount() + relative
	tcb.SchedulerData = d
}

// ClearTask returns tcb's scheduler data to the pool.
func (e *EDF) ClearTask(tcb *task.TCB) {
	if d, ok := tcb.SchedulerData.(*edfData); ok {
		e.data.Free(d)
	}
}

func edfOf(tcb *task.TCB) *edfData {
	d, _ := tcb.SchedulerData.(*edfData)
	return d
}

// AddTask inserts tcb into the deadline heap.
func (e *EDF) AddTask(tcb *task.TCB) {
	e.ready.TryPush(tcb)
}

// GetNextTask pops the earliest deadline. Any non-DONE task whose
// absolute deadline has already passed (deadline <= now) is pushed back
// onto the ready heap and returned with EventEDFDeadlineMiss regardless
// of its actual state — a WAIT task past its deadline is still a missed
// deadline the caller needs to hear about, not something the scheduler
// should quietly re-file into the wait queue.
func (e *EDF) GetNextTask() (*task.TCB, Event) {
	e.waiting.Process(e.clock.TickCount(), e.AddTask)

	now := e.clock.TickCount()
	for {
		next, ok := e.ready.TryPop()
		if !ok {
			return nil, EventOK
		}
		if next.Descriptor.State != task.StateDone && edfOf(next).deadline <= now {
			e.ready.TryPush(next)
			return next, EventEDFDeadlineMiss
		}
		switch next.Descriptor.State {
		case task.StateReady, task.StateRunning:
			e.ready.TryPush(next)
			return next, EventOK
		case task.StateDone:
			if e.sink != nil {
				e.sink.OnTaskDone(next)
			}
		case task.StateWait:
			e.waiting.Push(next)
		}
	}
}
