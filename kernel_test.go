package aikart

import (
	"testing"

	"github.com/aikart-go/aikart/internal/sched"
	"github.com/aikart-go/aikart/internal/task"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	return NewKernel(Config{StackWords: 64, MaxTasks: 8})
}

func TestAddTaskBeforeInitFails(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.AddTask(func(task.Suspender) {}, nil)
	if !IsCode(err, ErrCodeNotInitialized) {
		t.Fatalf("expected ErrCodeNotInitialized, got %v", err)
	}
}

func TestRoundRobinFairnessEndToEnd(t *testing.T) {
	k := newTestKernel(t)
	policy := sched.NewRoundRobin(8, k, k)
	k.Init(policy)

	var counts [3]int
	for i := 0; i < 3; i++ {
		idx := i
		_, err := k.AddTask(func(ctx task.Suspender) {
			for counts[idx] < 5 {
				counts[idx]++
				ctx.CheckPoint()
			}
		}, nil)
		if err != nil {
			t.Fatalf("AddTask: %v", err)
		}
	}

	if err := k.RunUntilIdle(1000); err != nil {
		t.Fatalf("RunUntilIdle: %v", err)
	}
	for i, c := range counts {
		if c != 5 {
			t.Fatalf("task %d ran %d times, want 5", i, c)
		}
	}
}

func TestTaskSleepThenCompletes(t *testing.T) {
	k := newTestKernel(t)
	policy := sched.NewRoundRobin(8, k, k)
	k.Init(policy)

	woke := false
	_, err := k.AddTask(func(ctx task.Suspender) {
		ctx.Sleep(5)
		woke = true
	}, nil)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	if err := k.RunUntilIdle(100); err != nil {
		t.Fatalf("RunUntilIdle: %v", err)
	}
	if !woke {
		t.Fatal("task never resumed after sleeping")
	}
	if k.GetTickCount() < 5 {
		t.Fatalf("tick count = %d, want >= 5", k.GetTickCount())
	}
}

func TestTaskLimitEnforced(t *testing.T) {
	k := NewKernel(Config{StackWords: 64, MaxTasks: 1})
	policy := sched.NewRoundRobin(4, k, k)
	k.Init(policy)

	if _, err := k.AddTask(func(ctx task.Suspender) { ctx.Sleep(1000) }, nil); err != nil {
		t.Fatalf("first AddTask: %v", err)
	}
	_, err := k.AddTask(func(task.Suspender) {}, nil)
	if !IsCode(err, ErrCodeTaskLimit) {
		t.Fatalf("expected ErrCodeTaskLimit, got %v", err)
	}
}

func TestFixedPriorityDominatesLowerBand(t *testing.T) {
	k := newTestKernel(t)
	policy := sched.NewFixedPriority(8, k, k)
	k.Init(policy)

	order := []int{}
	highCfg := (&task.TaskFlags{}).Set(sched.FlagPriority, uint8(0))
	lowCfg := (&task.TaskFlags{}).Set(sched.FlagPriority, uint8(2))

	_, err := k.AddTask(func(ctx task.Suspender) {
		for i := 0; i < 3; i++ {
			order = append(order, 0)
			ctx.CheckPoint()
		}
	}, highCfg)
	if err != nil {
		t.Fatalf("AddTask high: %v", err)
	}
	_, err = k.AddTask(func(ctx task.Suspender) {
		order = append(order, 1)
	}, lowCfg)
	if err != nil {
		t.Fatalf("AddTask low: %v", err)
	}

	if err := k.RunUntilIdle(100); err != nil {
		t.Fatalf("RunUntilIdle: %v", err)
	}
	if order[0] != 0 || order[1] != 0 {
		t.Fatalf("expected the high priority task to dominate first, got %v", order)
	}
}

func TestEDFDeadlineMissInvokesHandler(t *testing.T) {
	k := newTestKernel(t)
	policy := sched.NewEDF(8, k, k)
	k.Init(policy)

	var sawMiss bool
	k.RegisterSchedulerEventHandler(func(evt sched.Event) sched.Decision {
		if evt == sched.EventEDFDeadlineMiss {
			sawMiss = true
		}
		return sched.DecisionContinue
	})

	cfg := (&task.TaskFlags{}).Set(sched.FlagDeadline, uint32(0))
	_, err := k.AddTask(func(ctx task.Suspender) {}, cfg)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	for i := 0; i < 3 && !sawMiss; i++ {
		k.Tick()
	}
	if !sawMiss {
		t.Fatal("expected a deadline-miss event for a task whose deadline already passed")
	}
}

func TestMetricsTrackContextSwitchesAndCompletions(t *testing.T) {
	k := newTestKernel(t)
	policy := sched.NewRoundRobin(8, k, k)
	k.Init(policy)

	_, err := k.AddTask(func(task.Suspender) {}, nil)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := k.RunUntilIdle(100); err != nil {
		t.Fatalf("RunUntilIdle: %v", err)
	}

	snap := k.Metrics().Snapshot()
	if snap.TasksCompleted != 1 {
		t.Fatalf("TasksCompleted = %d, want 1", snap.TasksCompleted)
	}
	if snap.ContextSwitches == 0 {
		t.Fatal("expected at least one context switch to be recorded")
	}
}
