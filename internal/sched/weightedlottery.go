package sched

import (
	"github.com/aikart-go/aikart/internal/pool"
	"github.com/aikart-go/aikart/internal/rnd"
	"github.com/aikart-go/aikart/internal/task"
)

// MaxTickets is the ceiling a task's adjusted ticket count is clamped to
// (the original's maximum_tikets_value).
const MaxTickets uint8 = 255

// Flags read by WeightedLottery's ConfigureTask, layered on top of
// FlagTickets (the base ticket count shared with Lottery).
const (
	FlagWinDelta       task.Flag = 1 << 1
	FlagWinThreshold   task.Flag = 1 << 2
	FlagWinAggressive  task.Flag = 1 << 3
	FlagLoseDelta      task.Flag = 1 << 4
	FlagLoseThreshold  task.Flag = 1 << 5
	FlagLoseAggressive task.Flag = 1 << 6
)

type adjustment struct {
	delta      uint8
	threshold  uint8
	rounds     uint8
	aggressive bool
}

type weightedData struct {
	tickets     uint8
	baseTickets uint8
	win         adjustment
	lose        adjustment
}

// WeightedLottery is Lottery plus dynamic ticket adjustment: winners'
// tickets decay toward starvation-resistance for others, and long-losing
// tasks earn tickets back. Grounded on
// aikartos/inc/aikartos/sch/scheduler_weighted_lottery.hpp and spec.md
// §4.2.5 (spec.md's description is authoritative over the header's own
// comments where the two diverge).
type WeightedLottery struct {
	ready        []*task.TCB
	readyCount   int
	totalTickets uint32
	waiting      *waitQueue
	sink         EventSink
	clock        Clock
	rng          *rnd.XorShift32
	data         *pool.Pool[weightedData]
}

// NewWeightedLottery constructs a WeightedLottery policy with room for
// capacity tasks.
func NewWeightedLottery(capacity int, sink EventSink, clock Clock) *WeightedLottery {
	return &WeightedLottery{
		ready:   make([]*task.TCB, capacity),
		waiting: newWaitQueue(capacity),
		sink:    sink,
		clock:   clock,
		rng:     rnd.NewXorShift32(uint32(clock.SubTick())),
		data:    pool.New[weightedData](capacity),
	}
}

// ConfigureTask reads the base ticket count and the win/lose adjustment
// parameters from cfg; every numeric field defaults to 1 when unset so a
// task that configures nothing behaves like plain Lottery.
func (w *WeightedLottery) ConfigureTask(tcb *task.TCB, cfg *task.TaskFlags) {
	d := w.data.Alloc()
	if d == nil {
		panic("sched: weighted-lottery: scheduler data pool exhausted")
	}
	d.tickets = 1
	task.UpdateValue(cfg, FlagTickets, &d.tickets)
	d.baseTickets = d.tickets

	d.win.delta, d.win.threshold = 1, 1
	d.lose.delta, d.lose.threshold = 1, 1
	task.UpdateValue(cfg, FlagWinDelta, &d.win.delta)
	task.UpdateValue(cfg, FlagWinThreshold, &d.win.threshold)
	task.UpdateValue(cfg, FlagWinAggressive, &d.win.aggressive)
	task.UpdateValue(cfg, FlagLoseDelta, &d.lose.delta)
	task.UpdateValue(cfg, FlagLoseThreshold, &d.lose.threshold)
	task.UpdateValue(cfg, FlagLoseAggressive, &d.lose.aggressive)

	tcb.SchedulerData = d
}

// ClearTask returns tcb's scheduler data to the pool.
func (w *WeightedLottery) ClearTask(tcb *task.TCB) {
	if d, ok := tcb.SchedulerData.(*weightedData); ok {
		w.data.Free(d)
	}
}

func weightedOf(tcb *task.TCB) *weightedData {
	d, _ := tcb.SchedulerData.(*weightedData)
	return d
}

// AddTask places tcb into the first free slot and reseeds the PRNG.
func (w *WeightedLottery) AddTask(tcb *task.TCB) {
	for i := range w.ready {
		if w.ready[i] == nil {
			w.ready[i] = tcb
			w.readyCount++
			w.totalTickets += uint32(weightedOf(tcb).tickets)
			break
		}
	}
	w.rng.Reset(w.clock.SubTick())
}

func (w *WeightedLottery) removeTask(tcb *task.TCB) {
	for i := range w.ready {
		if w.ready[i] == tcb {
			w.readyCount--
			w.totalTickets -= uint32(weightedOf(tcb).tickets)
			w.ready[i] = nil
			return
		}
	}
}

// GetNextTask draws a winner, applies the winner's decay, applies every
// other ready task's loss accrual, then returns the winner.
func (w *WeightedLottery) GetNextTask() (*task.TCB, Event) {
	w.waiting.Process(w.clock.TickCount(), w.AddTask)

	var winner *task.TCB
	for {
		winner = w.draw()
		if winner != nil || w.readyCount == 0 {
			break
		}
	}
	if winner != nil {
		w.adjustLosers(winner)
	}
	return winner, EventOK
}

func (w *WeightedLottery) draw() *task.TCB {
	if w.totalTickets == 0 {
		return nil
	}
	win := w.rng.Next() % w.totalTickets
	var checked int
	var accumulated uint32
	for i := range w.ready {
		if checked >= w.readyCount {
			break
		}
		t := w.ready[i]
		if t == nil {
			continue
		}
		checked++
		switch t.Descriptor.State {
		case task.StateReady, task.StateRunning:
			accumulated += uint32(weightedOf(t).tickets)
			if win < accumulated {
				w.decayWinner(t)
				return t
			}
		case task.StateDone:
			w.removeTask(t)
			if w.sink != nil {
				w.sink.OnTaskDone(t)
			}
		case task.StateWait:
			w.removeTask(t)
			w.waiting.Push(t)
		}
	}
	return nil
}

func (w *WeightedLottery) decayWinner(winner *task.TCB) {
	d := weightedOf(winner)
	d.win.rounds++
	if d.lose.rounds > 0 {
		d.lose.rounds = 0
		w.totalTickets -= uint32(d.tickets - d.baseTickets)
		d.tickets = d.baseTickets
	}
	if d.win.rounds >= d.win.threshold {
		if d.tickets > d.win.delta {
			w.totalTickets -= uint32(d.win.delta)
			d.tickets -= d.win.delta
		} else {
			w.totalTickets -= uint32(d.tickets - 1)
			d.tickets = 1
		}
		if !d.win.aggressive {
			d.win.rounds = 0
		}
	}
}

// resetTickets restores the winner's ticket count to its base value,
// keeping totalTickets in step.
func (w *WeightedLottery) resetTickets(winner *task.TCB) {
	d := weightedOf(winner)
	if d.tickets > d.baseTickets {
		w.totalTickets -= uint32(d.tickets - d.baseTickets)
	} else {
		w.totalTickets += uint32(d.baseTickets - d.tickets)
	}
	d.tickets = d.baseTickets
}

func (w *WeightedLottery) adjustLosers(winner *task.TCB) {
	for i := range w.ready {
		current := w.ready[i]
		if current == nil || current == winner {
			continue
		}
		d := weightedOf(current)
		currentTickets := d.tickets

		if d.win.rounds > 0 {
			d.win.rounds = 0
			w.totalTickets += uint32(d.baseTickets) - uint32(d.tickets)
			d.tickets = d.baseTickets
		}

		d.lose.rounds++
		if d.lose.rounds >= d.lose.threshold {
			if uint32(currentTickets)+uint32(d.lose.delta) <= uint32(MaxTickets) {
				w.totalTickets += uint32(d.lose.delta)
				d.tickets += d.lose.delta
			} else {
				delta := MaxTickets - currentTickets
				w.totalTickets += uint32(delta)
				d.tickets = MaxTickets
			}
		}
		if !d.lose.aggressive {
			d.lose.rounds = 0
		}
	}
}
