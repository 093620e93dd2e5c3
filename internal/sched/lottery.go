package sched

import (
	"github.com/aikart-go/aikart/internal/pool"
	"github.com/aikart-go/aikart/internal/rnd"
	"github.com/aikart-go/aikart/internal/task"
)

// FlagTickets is the one-hot configuration flag Lottery (and
// WeightedLottery) reads a task's base ticket count from.
const FlagTickets task.Flag = 1 << 0

type lotteryData struct {
	tickets uint8
}

// Lottery draws a uniformly random ticket index over all runnable tasks'
// pooled ticket counts and returns whichever task's range it falls in.
// Grounded on aikartos/inc/aikartos/sch/scheduler_lottery.hpp.
type Lottery struct {
	ready        []*task.TCB // fixed-size slot array; nil slots are free, mirroring the original's array-of-pointers
	readyCount   int
	totalTickets uint32
	waiting      *waitQueue
	sink         EventSink
	clock        Clock
	rng          *rnd.XorShift32
	data         *pool.Pool[lotteryData]
}

// NewLottery constructs a Lottery policy with room for capacity tasks.
func NewLottery(capacity int, sink EventSink, clock Clock) *Lottery {
	return &Lottery{
		ready:   make([]*task.TCB, capacity),
		waiting: newWaitQueue(capacity),
		sink:    sink,
		clock:   clock,
		rng:     rnd.NewXorShift32(uint32(clock.SubTick())),
		data:    pool.New[lotteryData](capacity),
	}
}

// ConfigureTask reads the base ticket count (default 1) from cfg.
func (l *Lottery) ConfigureTask(tcb *task.TCB, cfg *task.TaskFlags) {
	d := l.data.Alloc()
	if d == nil {
		panic("sched: lottery: scheduler data pool exhausted")
	}
	d.tickets = 1
	task.UpdateValue(cfg, FlagTickets, &d.tickets)
	tcb.SchedulerData = d
}

// ClearTask returns tcb's scheduler data to the pool.
func (l *Lottery) ClearTask(tcb *task.TCB) {
	if d, ok := tcb.SchedulerData.(*lotteryData); ok {
		l.data.Free(d)
	}
}

func ticketsOf(tcb *task.TCB) uint8 {
	d, _ := tcb.SchedulerData.(*lotteryData)
	if d == nil {
		return 1
	}
	return d.tickets
}

// AddTask places tcb into the first free slot and reseeds the PRNG from
// the current sub-tick counter (spec.md §4.2.4).
func (l *Lottery) AddTask(tcb *task.TCB) {
	for i := range l.ready {
		if l.ready[i] == nil {
			l.ready[i] = tcb
			l.readyCount++
			l.totalTickets += uint32(ticketsOf(tcb))
			break
		}
	}
	l.rng.Reset(l.clock.SubTick())
}

func (l *Lottery) removeTask(tcb *task.TCB) {
	for i := range l.ready {
		if l.ready[i] == tcb {
			l.readyCount--
			l.totalTickets -= uint32(ticketsOf(tcb))
			l.ready[i] = nil
			return
		}
	}
}

// GetNextTask draws a winner proportional to ticket weight.
func (l *Lottery) GetNextTask() (*task.TCB, Event) {
	l.waiting.Process(l.clock.TickCount(), l.AddTask)

	for {
		next := l.draw()
		if next != nil {
			return next, EventOK
		}
		if l.readyCount == 0 {
			return nil, EventOK
		}
	}
}

func (l *Lottery) draw() *task.TCB {
	if l.totalTickets == 0 {
		return nil
	}
	win := l.rng.Next() % l.totalTickets
	var checked int
	var accumulated uint32
	for i := range l.ready {
		if checked >= l.readyCount {
			break
		}
		t := l.ready[i]
		if t == nil {
			continue
		}
		checked++
		switch t.Descriptor.State {
		case task.StateReady, task.StateRunning:
			accumulated += uint32(ticketsOf(t))
			if win < accumulated {
				return t
			}
		case task.StateDone:
			l.removeTask(t)
			if l.sink != nil {
				l.sink.OnTaskDone(t)
			}
		case task.StateWait:
			l.removeTask(t)
			l.waiting.Push(t)
		}
	}
	return nil
}
