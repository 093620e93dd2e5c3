package sched

import (
	"github.com/aikart-go/aikart/internal/container"
	"github.com/aikart-go/aikart/internal/pool"
	"github.com/aikart-go/aikart/internal/task"
)

type cfsData struct {
	vruntime  uint32
	startTick uint32 // 0 means "not currently accruing" (never ran, or asleep)
}

// CFSLike keeps a FIFO-stable min-heap on accumulated virtual runtime.
// Sleeping tasks stop accruing vruntime while asleep, so they resume
// "poorer" than their awake peers and are favoured on wake — the
// fairness-with-responsiveness property of CFS. Grounded on
// aikartos/inc/aikartos/sch/scheduler_cfs_like.hpp and spec.md §4.2.7.
type CFSLike struct {
	ready   *container.StableHeap[*task.TCB]
	waiting *waitQueue
	sink    EventSink
	clock   Clock
	data    *pool.Pool[cfsData]
}

// NewCFSLike constructs a CFSLike policy with room for capacity tasks.
func NewCFSLike(capacity int, sink EventSink, clock Clock) *CFSLike {
	c := &CFSLike{waiting: newWaitQueue(capacity), sink: sink, clock: clock, data: pool.New[cfsData](capacity)}
	c.ready = container.NewStableHeap[*task.TCB](capacity, func(a, b *task.TCB) bool {
		return cfsOf(a).vruntime < cfsOf(b).vruntime
	})
	return c
}

// ConfigureTask allocates a fresh vruntime starting at zero.
func (c *CFSLike) ConfigureTask(tcb *task.TCB, _ *task.TaskFlags) {
	d := c.data.Alloc()
	if d == nil {
		panic("sched: cfs-like: scheduler data pool exhausted")
	}
	tcb.SchedulerData = d
}

// ClearTask returns tcb's scheduler data to the pool.
func (c *CFSLike) ClearTask(tcb *task.TCB) {
	if d, ok := tcb.SchedulerData.(*cfsData); ok {
		c.data.Free(d)
	}
}

func cfsOf(tcb *task.TCB) *cfsData {
	d, _ := tcb.SchedulerData.(*cfsData)
	return d
}

// AddTask inserts tcb into the vruntime heap.
func (c *CFSLike) AddTask(tcb *task.TCB) {
	c.ready.TryPush(tcb)
}

// GetNextTask pops the current minimum-vruntime task, charges it for time
// elapsed since it last ran (if it was accruing), pushes it back, then
// peeks the new minimum and returns it if runnable.
func (c *CFSLike) GetNextTask() (*task.TCB, Event) {
	now := c.clock.TickCount()
	c.waiting.Process(now, c.AddTask)

	for {
		top, ok := c.ready.TryPop()
		if !ok {
			return nil, EventOK
		}
		d := cfsOf(top)
		if d.startTick != 0 {
			d.vruntime += now - d.startTick
			d.startTick = 0
		}
		c.ready.TryPush(top)

		peeked, ok := c.ready.Peek()
		if !ok {
			return nil, EventOK
		}
		switch peeked.Descriptor.State {
		case task.StateReady, task.StateRunning:
			cfsOf(peeked).startTick = now
			return peeked, EventOK
		case task.StateDone:
			c.ready.TryPop()
			if c.sink != nil {
				c.sink.OnTaskDone(peeked)
			}
		case task.StateWait:
			c.ready.TryPop()
			c.waiting.Push(peeked)
		}
	}
}
