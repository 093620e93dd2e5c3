package sched

import (
	"github.com/aikart-go/aikart/internal/container"
	"github.com/aikart-go/aikart/internal/pool"
	"github.com/aikart-go/aikart/internal/task"
)

// FlagAgingThreshold is the one-hot configuration flag PriorityAging
// reads the starvation threshold from.
const FlagAgingThreshold task.Flag = 1 << 1

type agingData struct {
	currentPriority uint8
	basePriority    uint8
	agingThreshold  uint8
	agingScore      uint8
}

// PriorityAging extends FixedPriority's band structure with starvation
// counteraction: every selection cycle, every ready task outside the
// highest band accrues an aging score and is promoted one band once that
// score reaches its threshold. Grounded on
// aikartos/Inc/aikartos/sch/scheduler_priority_aging.hpp.
type PriorityAging struct {
	ready   [MaxPriority]*container.Deque[*task.TCB]
	waiting *waitQueue
	sink    EventSink
	clock   Clock
	data    *pool.Pool[agingData]
}

// NewPriorityAging constructs a PriorityAging policy with room for
// capacity tasks per band.
func NewPriorityAging(capacity int, sink EventSink, clock Clock) *PriorityAging {
	p := &PriorityAging{
		waiting: newWaitQueue(capacity),
		sink:    sink,
		clock:   clock,
		data:    pool.New[agingData](capacity),
	}
	for i := range p.ready {
		p.ready[i] = container.NewDeque[*task.TCB](capacity)
	}
	return p
}

// ConfigureTask reads the static priority (default 1) and the aging
// threshold (default 1) from cfg.
func (p *PriorityAging) ConfigureTask(tcb *task.TCB, cfg *task.TaskFlags) {
	d := p.data.Alloc()
	if d == nil {
		panic("sched: priority-aging: scheduler data pool exhausted")
	}
	d.currentPriority = 1
	d.agingThreshold = 1
	task.UpdateValue(cfg, FlagPriority, &d.currentPriority)
	if d.currentPriority >= MaxPriority {
		panic("sched: priority-aging: priority out of range")
	}
	d.basePriority = d.currentPriority
	task.UpdateValue(cfg, FlagAgingThreshold, &d.agingThreshold)
	tcb.SchedulerData = d
}

// ClearTask returns tcb's scheduler data to the pool.
func (p *PriorityAging) ClearTask(tcb *task.TCB) {
	if d, ok := tcb.SchedulerData.(*agingData); ok {
		p.data.Free(d)
	}
}

func agingOf(tcb *task.TCB) *agingData {
	d, _ := tcb.SchedulerData.(*agingData)
	return d
}

// AddTask enqueues tcb at the back of its current priority band.
func (p *PriorityAging) AddTask(tcb *task.TCB) {
	p.ready[agingOf(tcb).currentPriority].PushBack(tcb)
}

// GetNextTask selects the head of the highest populated band, resets its
// priority to its base, then ages every other ready task outside band 0.
func (p *PriorityAging) GetNextTask() (*task.TCB, Event) {
	p.waiting.Process(p.clock.TickCount(), p.AddTask)

	next := p.selectNext()
	p.ageRemaining(next)
	return next, EventOK
}

func (p *PriorityAging) selectNext() *task.TCB {
	for band := range p.ready {
		for {
			next, ok := p.ready[band].PopFront()
			if !ok {
				break
			}
			switch next.Descriptor.State {
			case task.StateReady, task.StateRunning:
				d := agingOf(next)
				d.currentPriority = d.basePriority
				p.ready[d.currentPriority].PushBack(next)
				return next
			case task.StateDone:
				if p.sink != nil {
					p.sink.OnTaskDone(next)
				}
			case task.StateWait:
				p.waiting.Push(next)
			}
		}
	}
	return nil
}

func (p *PriorityAging) ageRemaining(selected *task.TCB) {
	for band := 1; band < MaxPriority; band++ {
		qsize := p.ready[band].Len()
		for i := 0; i < qsize; i++ {
			t, ok := p.ready[band].PopFront()
			if !ok {
				break
			}
			if t == selected {
				p.ready[band].PushBack(t)
				continue
			}
			d := agingOf(t)
			d.agingScore++
			if d.agingScore >= d.agingThreshold {
				d.agingScore = 0
				d.currentPriority = uint8(band - 1)
				p.ready[band-1].PushBack(t)
			} else {
				p.ready[band].PushBack(t)
			}
		}
	}
}
