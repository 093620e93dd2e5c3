package sched

import (
	"github.com/aikart-go/aikart/internal/container"
	"github.com/aikart-go/aikart/internal/task"
)

// RoundRobin is the simplest policy: a single ring buffer, visited
// front-to-back, runnable tasks re-enqueued at the back. Grounded on
// aikartos/inc/aikartos/sch/scheduler_round_robin.hpp.
type RoundRobin struct {
	ready   *container.Deque[*task.TCB]
	waiting *waitQueue
	sink    EventSink
	clock   Clock
}

// NewRoundRobin constructs a RoundRobin policy with room for capacity
// tasks.
func NewRoundRobin(capacity int, sink EventSink, clock Clock) *RoundRobin {
	return &RoundRobin{
		ready:   container.NewDeque[*task.TCB](capacity),
		waiting: newWaitQueue(capacity),
		sink:    sink,
		clock:   clock,
	}
}

// ConfigureTask is a no-op: round-robin carries no per-task state.
func (r *RoundRobin) ConfigureTask(*task.TCB, *task.TaskFlags) {}

// ClearTask is a no-op for the same reason.
func (r *RoundRobin) ClearTask(*task.TCB) {}

// AddTask enqueues a READY task at the back of the ring.
func (r *RoundRobin) AddTask(tcb *task.TCB) {
	r.ready.PushBack(tcb)
}

// GetNextTask implements the common pattern described in spec.md §4.2.
func (r *RoundRobin) GetNextTask() (*task.TCB, Event) {
	r.waiting.Process(r.clock.TickCount(), r.AddTask)

	for {
		next, ok := r.ready.PopFront()
		if !ok {
			return nil, EventOK
		}
		switch next.Descriptor.State {
		case task.StateReady, task.StateRunning:
			r.ready.PushBack(next)
			return next, EventOK
		case task.StateDone:
			if r.sink != nil {
				r.sink.OnTaskDone(next)
			}
		case task.StateWait:
			r.waiting.Push(next)
		}
	}
}
