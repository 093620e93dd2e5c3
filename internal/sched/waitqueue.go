package sched

import (
	"github.com/aikart-go/aikart/internal/container"
	"github.com/aikart-go/aikart/internal/task"
)

// waitQueue is the min-heap-on-next_run structure shared by every policy
// (spec.md §3 "shared 'waiting tasks' queue"), grounded on
// aikartos/Inc/aikartos/sch/waiting_tasks_queue.hpp.
type waitQueue struct {
	heap *container.Heap[*task.TCB]
}

func newWaitQueue(capacity int) *waitQueue {
	return &waitQueue{
		heap: container.NewHeap[*task.TCB](capacity, func(a, b *task.TCB) bool {
			return a.Descriptor.Timing.NextRun < b.Descriptor.Timing.NextRun
		}),
	}
}

// Push inserts a WAIT-state task keyed by its next_run tick.
func (w *waitQueue) Push(t *task.TCB) bool {
	return w.heap.TryPush(t)
}

// Process releases every task whose wakeup tick has arrived, marking it
// READY and handing it to cb (invariably the policy's own AddTask).
func (w *waitQueue) Process(now uint32, cb func(*task.TCB)) {
	for {
		top, ok := w.heap.Peek()
		if !ok || top.Descriptor.Timing.NextRun > now {
			return
		}
		t, _ := w.heap.TryPop()
		t.Descriptor.State = task.StateReady
		cb(t)
	}
}
