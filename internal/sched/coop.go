package sched

import (
	"github.com/aikart-go/aikart/internal/container"
	"github.com/aikart-go/aikart/internal/pool"
	"github.com/aikart-go/aikart/internal/task"
)

// InfiniteQuantum is the sentinel quantum value meaning "never preempt by
// SysTick"; a task configured with it runs purely cooperatively until it
// sleeps, yields, or terminates. Preserved exactly as the original's
// 0xFFFFFFFF — see DESIGN.md's Open Question notes.
const InfiniteQuantum uint32 = 0xFFFFFFFF

// FlagQuantum is the one-hot configuration flag CoopPreemptive reads a
// task's own quantum from.
const FlagQuantum task.Flag = 1 << 0

type coopData struct {
	quantum uint32
}

// CoopPreemptive is a round-robin ring buffer where each task carries its
// own quantum, pushed to the kernel's preempt counter via OnQuantaChange
// whenever that task is selected. Grounded on
// aikartos/inc/aikartos/sch/scheduler_coop_preemptive.hpp and spec.md
// §4.2.9.
type CoopPreemptive struct {
	ready          *container.Deque[*task.TCB]
	waiting        *waitQueue
	sink           EventSink
	clock          Clock
	data           *pool.Pool[coopData]
	onQuantaChange func(uint32)
}

// NewCoopPreemptive constructs a CoopPreemptive policy with room for
// capacity tasks.
func NewCoopPreemptive(capacity int, sink EventSink, clock Clock) *CoopPreemptive {
	return &CoopPreemptive{
		ready:   container.NewDeque[*task.TCB](capacity),
		waiting: newWaitQueue(capacity),
		sink:    sink,
		clock:   clock,
		data:    pool.New[coopData](capacity),
	}
}

// OnQuantaChange implements QuantumSetter: the kernel registers the
// callback it wants invoked whenever this policy selects a new task.
func (c *CoopPreemptive) OnQuantaChange(fn func(uint32)) {
	c.onQuantaChange = fn
}

// ConfigureTask reads the task's quantum (default InfiniteQuantum) from
// cfg.
func (c *CoopPreemptive) ConfigureTask(tcb *task.TCB, cfg *task.TaskFlags) {
	d := c.data.Alloc()
	if d == nil {
		panic("sched: coop-preemptive: scheduler data pool exhausted")
	}
	d.quantum = InfiniteQuantum
	task.UpdateValue(cfg, FlagQuantum, &d.quantum)
	tcb.SchedulerData = d
}

// ClearTask returns tcb's scheduler data to the pool.
func (c *CoopPreemptive) ClearTask(tcb *task.TCB) {
	if d, ok := tcb.SchedulerData.(*coopData); ok {
		c.data.Free(d)
	}
}

func coopOf(tcb *task.TCB) *coopData {
	d, _ := tcb.SchedulerData.(*coopData)
	return d
}

// AddTask enqueues tcb at the back of the ring.
func (c *CoopPreemptive) AddTask(tcb *task.TCB) {
	c.ready.PushBack(tcb)
}

// GetNextTask picks the next runnable task round-robin, then publishes
// its quantum to the kernel via OnQuantaChange.
func (c *CoopPreemptive) GetNextTask() (*task.TCB, Event) {
	c.waiting.Process(c.clock.TickCount(), c.AddTask)

	for {
		next, ok := c.ready.PopFront()
		if !ok {
			return nil, EventOK
		}
		switch next.Descriptor.State {
		case task.StateReady, task.StateRunning:
			c.ready.PushBack(next)
			if c.onQuantaChange != nil {
				c.onQuantaChange(coopOf(next).quantum)
			}
			return next, EventOK
		case task.StateDone:
			if c.sink != nil {
				c.sink.OnTaskDone(next)
			}
		case task.StateWait:
			c.waiting.Push(next)
		}
	}
}
