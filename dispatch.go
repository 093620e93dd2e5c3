package aikart

import (
	"context"
	"runtime"
	"time"

	"github.com/aikart-go/aikart/internal/sched"
	"github.com/aikart-go/aikart/internal/task"
)

// taskHandle is the kernel-side half of a task's goroutine: resume grants
// it permission to run one more step, report carries back what happened
// when it next hits a suspension point.
type taskHandle struct {
	tcb    *task.TCB
	resume chan struct{}
	report chan suspendReport
}

// suspendReport is what a task's goroutine sends the dispatch loop at a
// suspension point (task.Suspender's CheckPoint/Yield/Sleep/Terminate).
type suspendReport struct {
	state    task.State
	wakeTick uint32
}

// Context is the task.Suspender a task body receives from its StepFunc.
// Each suspension point blocks the task's own goroutine on its resume
// channel until the kernel's dispatch loop grants it the CPU again,
// implementing the "exactly one task RUNNING at a time" invariant
// through an unbuffered handoff rather than real interrupts.
type Context struct {
	k *Kernel
	h *taskHandle
}

var _ task.Suspender = (*Context)(nil)

// CheckPoint is a voluntary preemption point: it returns once the
// scheduler has granted this task the CPU again, having given other
// READY tasks a chance to run in between.
func (c *Context) CheckPoint() {
	c.k.suspend(c.h, task.StateReady, 0)
}

// Yield gives up the remainder of this task's quantum.
func (c *Context) Yield() {
	c.k.suspend(c.h, task.StateReady, 0)
}

// Sleep suspends the task until the tick count has advanced by ms.
func (c *Context) Sleep(ms uint32) {
	wake := c.k.GetTickCount() + ms
	c.k.suspend(c.h, task.StateWait, wake)
}

// Terminate marks the task DONE and ends its goroutine. It does not
// return.
func (c *Context) Terminate() {
	c.k.suspend(c.h, task.StateDone, 0)
	runtime.Goexit()
}

// runTaskBody is the entry point of every task goroutine: it waits for
// its first grant, runs fn, then auto-terminates if fn returns normally.
func runTaskBody(k *Kernel, h *taskHandle, fn task.StepFunc) {
	<-h.resume
	ctx := &Context{k: k, h: h}
	fn(ctx)
	ctx.Terminate()
}

// suspend records tcb's new state/wake tick and hands control back to the
// dispatch loop. It blocks until the loop resumes the task again, unless
// state is StateDone, in which case the goroutine is expected to exit
// immediately afterward.
func (k *Kernel) suspend(h *taskHandle, state task.State, wakeTick uint32) {
	h.tcb.Descriptor.State = state
	h.tcb.Descriptor.Timing.NextRun = wakeTick
	h.report <- suspendReport{state: state, wakeTick: wakeTick}
	if state != task.StateDone {
		<-h.resume
	}
}

// Tick runs exactly one iteration of the dispatch loop: select the next
// task via the installed policy, run it for one step, and absorb its
// suspension report. It is the Go analogue of SysTick firing followed by
// a PendSV context switch.
func (k *Kernel) Tick() error {
	k.mu.Lock()
	if k.policy == nil {
		k.mu.Unlock()
		return NewError("SCHED", ErrCodeNotInitialized, "kernel not initialized")
	}
	k.tick++
	k.subtick++
	policy := k.policy
	handler := k.eventHandler
	hook := k.systickHook
	idleHook := k.cfg.IdleHook
	k.mu.Unlock()

	k.metr.RecordTick()

	start := time.Now()
	defer func() { k.metr.RecordDispatchLatency(uint64(time.Since(start).Nanoseconds())) }()

	next, evt := policy.GetNextTask()
	if evt != sched.EventOK {
		k.metr.RecordSchedulerEvent(evt)
		decision := sched.DecisionContinue
		if handler != nil {
			decision = handler(evt)
		}
		if decision == sched.DecisionRetry {
			next, evt = policy.GetNextTask()
			if evt != sched.EventOK {
				k.metr.RecordSchedulerEvent(evt)
			}
		}
	}

	if next == nil {
		if idleHook != nil {
			idleHook()
		}
		return nil
	}

	k.mu.Lock()
	h, ok := k.tasks[next.Descriptor.ID]
	if !ok {
		k.mu.Unlock()
		return NewTaskError("SCHED", uint32(next.Descriptor.ID), ErrCodeInternal, "scheduler returned an unknown task")
	}
	next.Descriptor.State = task.StateRunning
	k.running = h
	k.mu.Unlock()

	k.metr.RecordContextSwitch()
	if hook != nil {
		hook.Tick(next)
	}

	h.resume <- struct{}{}
	<-h.report

	k.mu.Lock()
	k.running = nil
	k.mu.Unlock()

	return nil
}

// allDone reports whether every task has reached StateDone and been
// reclaimed.
func (k *Kernel) allDone() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.tasks) == 0
}

// Launch runs the dispatch loop until every task has terminated or ctx is
// cancelled, matching the teacher's context.Context-driven run-loop idiom
// (cmd/ublk-mem/main.go) in place of a bare-metal "never returns" entry
// vector.
func (k *Kernel) Launch(ctx context.Context, defaultQuantum uint32) error {
	k.mu.Lock()
	if k.quantum == 0 {
		k.quantum = defaultQuantum
	}
	k.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if k.allDone() {
			return nil
		}
		if err := k.Tick(); err != nil {
			return err
		}
	}
}

// RunUntilIdle is a test-harness variant of Launch with no wall-clock
// dependency: it runs until every task is DONE or maxTicks is exceeded.
func (k *Kernel) RunUntilIdle(maxTicks int) error {
	for i := 0; i < maxTicks; i++ {
		if k.allDone() {
			return nil
		}
		if err := k.Tick(); err != nil {
			return err
		}
	}
	if k.allDone() {
		return nil
	}
	return NewError("SCHED", ErrCodeNoSchedulable, "RunUntilIdle exceeded maxTicks without all tasks completing")
}
