package sched

import (
	"testing"

	"github.com/aikart-go/aikart/internal/task"
)

// fakeClock is a manually advanced Clock for deterministic tests.
type fakeClock struct {
	tick    uint32
	subtick uint32
}

func (c *fakeClock) TickCount() uint32 { return c.tick }
func (c *fakeClock) SubTick() uint32   { return c.subtick }

// recordingSink counts how many tasks a policy reported DONE.
type recordingSink struct {
	done []*task.TCB
}

func (r *recordingSink) OnTaskDone(tcb *task.TCB) { r.done = append(r.done, tcb) }

func newTCB(id task.ID, state task.State) *task.TCB {
	return &task.TCB{Descriptor: task.Descriptor{ID: id, State: state}}
}

func TestRoundRobinFairness(t *testing.T) {
	clock := &fakeClock{}
	rr := NewRoundRobin(8, nil, clock)

	a, b, c := newTCB(1, task.StateReady), newTCB(2, task.StateReady), newTCB(3, task.StateReady)
	rr.AddTask(a)
	rr.AddTask(b)
	rr.AddTask(c)

	var order []task.ID
	for i := 0; i < 6; i++ {
		next, ev := rr.GetNextTask()
		if ev != EventOK {
			t.Fatalf("unexpected event %v", ev)
		}
		order = append(order, next.Descriptor.ID)
	}
	want := []task.ID{1, 2, 3, 1, 2, 3}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRoundRobinDoneNotifiesSink(t *testing.T) {
	clock := &fakeClock{}
	sink := &recordingSink{}
	rr := NewRoundRobin(8, sink, clock)

	a := newTCB(1, task.StateReady)
	rr.AddTask(a)
	rr.GetNextTask() // returns a, a stays READY re-enqueued
	a.Descriptor.State = task.StateDone
	// a is at the front again; draining it should report it DONE and find no one else.
	next, _ := rr.GetNextTask()
	if next != nil {
		t.Fatalf("expected nil after the only task finished, got %v", next)
	}
	if len(sink.done) != 1 || sink.done[0] != a {
		t.Fatalf("sink.done = %v, want [a]", sink.done)
	}
}

func TestFixedPriorityDominance(t *testing.T) {
	clock := &fakeClock{}
	fp := NewFixedPriority(8, nil, clock)

	high := newTCB(1, task.StateReady)
	low := newTCB(2, task.StateReady)

	var cfgHigh, cfgLow task.TaskFlags
	cfgHigh.Set(FlagPriority, uint8(0))
	cfgLow.Set(FlagPriority, uint8(2))

	fp.ConfigureTask(high, &cfgHigh)
	fp.ConfigureTask(low, &cfgLow)
	fp.AddTask(high)
	fp.AddTask(low)

	for i := 0; i < 5; i++ {
		next, _ := fp.GetNextTask()
		if next != high {
			t.Fatalf("iteration %d: expected the high-priority task, got %v", i, next.Descriptor.ID)
		}
	}
}

func TestFixedPriorityRejectsBadPriority(t *testing.T) {
	clock := &fakeClock{}
	fp := NewFixedPriority(8, nil, clock)

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an out-of-range priority")
		}
	}()
	var cfg task.TaskFlags
	cfg.Set(FlagPriority, uint8(MaxPriority))
	fp.ConfigureTask(newTCB(1, task.StateReady), &cfg)
}

func TestPriorityAgingPromotesStarvedTask(t *testing.T) {
	clock := &fakeClock{}
	pa := NewPriorityAging(8, nil, clock)

	high := newTCB(1, task.StateReady)
	low := newTCB(2, task.StateReady)

	var cfgHigh, cfgLow task.TaskFlags
	cfgHigh.Set(FlagPriority, uint8(0))
	cfgLow.Set(FlagPriority, uint8(2))
	cfgLow.Set(FlagAgingThreshold, uint8(2))

	pa.ConfigureTask(high, &cfgHigh)
	pa.ConfigureTask(low, &cfgLow)
	pa.AddTask(high)
	pa.AddTask(low)

	// Two selection cycles age `low` past its threshold of 2 and promote
	// it from band 2 to band 1.
	pa.GetNextTask()
	pa.GetNextTask()

	if agingOf(low).currentPriority != 1 {
		t.Fatalf("low task priority = %d, want promoted to 1", agingOf(low).currentPriority)
	}
}

func TestLotteryOnlyPicksRunnable(t *testing.T) {
	clock := &fakeClock{}
	l := NewLottery(8, nil, clock)

	only := newTCB(1, task.StateReady)
	var cfg task.TaskFlags
	cfg.Set(FlagTickets, uint8(5))
	l.ConfigureTask(only, &cfg)
	l.AddTask(only)

	for i := 0; i < 20; i++ {
		next, ev := l.GetNextTask()
		if ev != EventOK || next != only {
			t.Fatalf("iteration %d: got (%v, %v), want (only, OK)", i, next, ev)
		}
	}
}

func TestLotteryEmptyReturnsNil(t *testing.T) {
	clock := &fakeClock{}
	l := NewLottery(8, nil, clock)
	next, ev := l.GetNextTask()
	if next != nil || ev != EventOK {
		t.Fatalf("got (%v, %v), want (nil, OK)", next, ev)
	}
}

func TestWeightedLotteryWinnerDecays(t *testing.T) {
	clock := &fakeClock{}
	wl := NewWeightedLottery(8, nil, clock)

	solo := newTCB(1, task.StateReady)
	var cfg task.TaskFlags
	cfg.Set(FlagTickets, uint8(10))
	cfg.Set(FlagWinDelta, uint8(3))
	cfg.Set(FlagWinThreshold, uint8(1))
	wl.ConfigureTask(solo, &cfg)
	wl.AddTask(solo)

	wl.GetNextTask()
	// One win meets the threshold of 1, so the winner gives up win.delta
	// tickets (10 -> 7) and, being non-aggressive, its win-rounds counter
	// is cleared.
	if got := weightedOf(solo).tickets; got != 7 {
		t.Fatalf("tickets = %d, want 7 after one win with delta 3", got)
	}
	if weightedOf(solo).win.rounds != 0 {
		t.Fatalf("win.rounds = %d, want reset to 0 (threshold 1, non-aggressive)", weightedOf(solo).win.rounds)
	}
}

func TestWeightedLotteryLoserGainsTickets(t *testing.T) {
	clock := &fakeClock{}
	wl := NewWeightedLottery(8, nil, clock)

	winner := newTCB(1, task.StateReady)
	loser := newTCB(2, task.StateReady)

	var cfgWinner, cfgLoser task.TaskFlags
	cfgWinner.Set(FlagTickets, uint8(250))
	cfgLoser.Set(FlagTickets, uint8(1))
	cfgLoser.Set(FlagLoseDelta, uint8(5))
	cfgLoser.Set(FlagLoseThreshold, uint8(1))

	wl.ConfigureTask(winner, &cfgWinner)
	wl.ConfigureTask(loser, &cfgLoser)
	wl.AddTask(winner)
	wl.AddTask(loser)

	// winner has overwhelming odds (250:1); one draw should pick it and
	// bump the loser's ticket count.
	wl.GetNextTask()
	if weightedOf(loser).tickets <= 1 {
		t.Fatalf("loser tickets = %d, want > 1 after losing a round", weightedOf(loser).tickets)
	}
}

func TestEDFReturnsDeadlineMissEvent(t *testing.T) {
	clock := &fakeClock{tick: 0}
	e := NewEDF(8, nil, clock)

	missed := newTCB(1, task.StateReady)
	var cfg task.TaskFlags
	cfg.Set(FlagDeadline, uint32(5))
	e.ConfigureTask(missed, &cfg)
	e.AddTask(missed)

	clock.tick = 10 // well past the deadline of 5
	next, ev := e.GetNextTask()
	if next != missed || ev != EventEDFDeadlineMiss {
		t.Fatalf("got (%v, %v), want (missed, EventEDFDeadlineMiss)", next, ev)
	}
}

func TestEDFReturnsDeadlineMissAtExactBoundary(t *testing.T) {
	clock := &fakeClock{tick: 0}
	e := NewEDF(8, nil, clock)

	onTime := newTCB(1, task.StateReady)
	var cfg task.TaskFlags
	cfg.Set(FlagDeadline, uint32(5))
	e.ConfigureTask(onTime, &cfg)
	e.AddTask(onTime)

	clock.tick = 5 // exactly at the deadline, not past it
	next, ev := e.GetNextTask()
	if next != onTime || ev != EventEDFDeadlineMiss {
		t.Fatalf("got (%v, %v), want (onTime, EventEDFDeadlineMiss) — deadline <= now must count as missed", next, ev)
	}
}

func TestEDFReportsMissForWaitingTask(t *testing.T) {
	clock := &fakeClock{tick: 0}
	e := NewEDF(8, nil, clock)

	blocked := newTCB(1, task.StateWait)
	var cfg task.TaskFlags
	cfg.Set(FlagDeadline, uint32(5))
	e.ConfigureTask(blocked, &cfg)
	e.AddTask(blocked)

	clock.tick = 10 // well past the deadline while still WAIT
	next, ev := e.GetNextTask()
	if next != blocked || ev != EventEDFDeadlineMiss {
		t.Fatalf("got (%v, %v), want (blocked, EventEDFDeadlineMiss) — a WAIT task past its deadline is still a miss", next, ev)
	}
}

func TestEDFPicksEarliestDeadline(t *testing.T) {
	clock := &fakeClock{}
	e := NewEDF(8, nil, clock)

	urgent := newTCB(1, task.StateReady)
	relaxed := newTCB(2, task.StateReady)
	var cfgUrgent, cfgRelaxed task.TaskFlags
	cfgUrgent.Set(FlagDeadline, uint32(5))
	cfgRelaxed.Set(FlagDeadline, uint32(50))

	e.ConfigureTask(urgent, &cfgUrgent)
	e.ConfigureTask(relaxed, &cfgRelaxed)
	e.AddTask(relaxed)
	e.AddTask(urgent)

	next, ev := e.GetNextTask()
	if next != urgent || ev != EventOK {
		t.Fatalf("got (%v, %v), want (urgent, OK)", next, ev)
	}
}

func TestCFSLikeFavoursLowerVruntime(t *testing.T) {
	clock := &fakeClock{}
	c := NewCFSLike(8, nil, clock)

	a := newTCB(1, task.StateReady)
	b := newTCB(2, task.StateReady)
	c.ConfigureTask(a, nil)
	c.ConfigureTask(b, nil)
	c.AddTask(a)
	c.AddTask(b)

	clock.tick = 1 // a start tick of 0 means "not accruing", so begin at 1
	first, _ := c.GetNextTask()
	clock.tick = 11 // `first` accrues 10 ticks of vruntime
	c.GetNextTask()

	// `first` now has vruntime 10, the other task still 0, so the other
	// task must win the next selection.
	clock.tick = 11
	third, _ := c.GetNextTask()
	if third == first {
		t.Fatalf("expected the untouched task to be favoured, got the same task back")
	}
}

func TestCFSLikeSleepingTaskAccruesNoVruntime(t *testing.T) {
	clock := &fakeClock{}
	c := NewCFSLike(8, nil, clock)
	a := newTCB(1, task.StateReady)
	c.ConfigureTask(a, nil)
	c.AddTask(a)

	clock.tick = 0
	c.GetNextTask()
	a.Descriptor.State = task.StateWait
	a.Descriptor.Timing.NextRun = 5
	clock.tick = 3
	c.GetNextTask() // drains a into the waiting heap; a was picked at tick 0, so its start tick is the "not accruing" 0 and nothing is charged.

	vrAtSleep := cfsOf(a).vruntime
	clock.tick = 100
	c.waiting.Process(100, c.AddTask)
	if cfsOf(a).vruntime != vrAtSleep {
		t.Fatalf("vruntime changed from %d to %d while asleep", vrAtSleep, cfsOf(a).vruntime)
	}
}

func TestMLFQDemotesOnQuantumExhaustion(t *testing.T) {
	clock := &fakeClock{}
	m := NewMLFQ(8, nil, clock)
	m.SetLevelQuanta([MLFQLevels]uint32{2, 4, 8})

	a := newTCB(1, task.StateReady)
	var cfg task.TaskFlags
	m.ConfigureTask(a, &cfg)
	m.AddTask(a)

	if mlfqOf(a).level != 0 {
		t.Fatalf("level = %d, want 0", mlfqOf(a).level)
	}
	m.Tick(a)
	m.Tick(a)
	if mlfqOf(a).level != 1 {
		t.Fatalf("level = %d, want demoted to 1 after quantum (2) is exhausted", mlfqOf(a).level)
	}

	idx := m.data.IndexOf(mlfqOf(a))
	level, ok := m.Statistics().GetField(idx, FieldMLFQLevel)
	if !ok || level != 1 {
		t.Fatalf("Statistics level = %v (ok=%v), want 1", level, ok)
	}
	used, ok := m.Statistics().GetField(idx, FieldMLFQQuantumUsed)
	if !ok || used != uint32(0) {
		t.Fatalf("Statistics quantum_used = %v (ok=%v), want 0 right after a demotion resets it", used, ok)
	}
}

func TestMLFQGlobalBoostResetsLevel(t *testing.T) {
	clock := &fakeClock{}
	m := NewMLFQ(8, nil, clock)
	a := newTCB(1, task.StateReady)
	var cfg task.TaskFlags
	m.ConfigureTask(a, &cfg)
	mlfqOf(a).level = 2
	m.ready[2].PushBack(a)

	clock.tick = MLFQBoostPeriod
	m.GetNextTask()

	if mlfqOf(a).level != 0 {
		t.Fatalf("level = %d, want boosted to 0", mlfqOf(a).level)
	}
}

func TestCoopPreemptiveInfiniteQuantumSentinel(t *testing.T) {
	clock := &fakeClock{}
	c := NewCoopPreemptive(8, nil, clock)
	var published uint32
	c.OnQuantaChange(func(q uint32) { published = q })

	a := newTCB(1, task.StateReady)
	var cfg task.TaskFlags
	c.ConfigureTask(a, &cfg) // no FlagQuantum set -> defaults to InfiniteQuantum
	c.AddTask(a)
	c.GetNextTask()

	if published != InfiniteQuantum {
		t.Fatalf("published quantum = %#x, want sentinel %#x", published, InfiniteQuantum)
	}
}

func TestCoopPreemptivePublishesConfiguredQuantum(t *testing.T) {
	clock := &fakeClock{}
	c := NewCoopPreemptive(8, nil, clock)
	var published uint32
	c.OnQuantaChange(func(q uint32) { published = q })

	a := newTCB(1, task.StateReady)
	var cfg task.TaskFlags
	cfg.Set(FlagQuantum, uint32(7))
	c.ConfigureTask(a, &cfg)
	c.AddTask(a)
	c.GetNextTask()

	if published != 7 {
		t.Fatalf("published quantum = %d, want 7", published)
	}
}

func TestStatisticsBoundsChecked(t *testing.T) {
	s := NewStatistics(4, 4)
	s.AddField(1, 2, 42)
	if v, ok := s.GetField(1, 2); !ok || v != 42 {
		t.Fatalf("GetField(1,2) = (%v, %v), want (42, true)", v, ok)
	}
	if _, ok := s.GetField(99, 0); ok {
		t.Fatal("out-of-range pos should report not-found")
	}
	if _, ok := s.GetField(0, 0); ok {
		t.Fatal("never-set field should report not-found")
	}
}
