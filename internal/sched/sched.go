// Package sched implements the pluggable scheduler framework: the common
// Policy contract and nine concrete policies, each owning its own
// per-task state pool and ready/wait structures.
//
// Grounded on aikartos/inc/aikartos/sch/*.hpp and spec.md §4.2.
package sched

import "github.com/aikart-go/aikart/internal/task"

// Event is a scheduler-specific out-of-band signal returned alongside a
// task from GetNextTask, grounded on aikartos/inc/aikartos/sch/events.hpp.
type Event uint32

// EventOK means nothing unusual happened; the returned task should be
// accepted as-is.
const EventOK Event = 0

// EventEDFDeadlineMiss is raised by the EDF policy when the task at the
// head of its deadline heap has already missed its deadline.
const EventEDFDeadlineMiss Event = 100

// Decision is what a registered event handler tells the dispatch loop to
// do about a non-OK event.
type Decision int

const (
	// DecisionContinue accepts the task GetNextTask returned despite the
	// event.
	DecisionContinue Decision = iota
	// DecisionRetry asks the scheduler for another task, typically after
	// the handler terminated and replaced the offending one.
	DecisionRetry
)

// EventHandler is invoked by the kernel's context-switch loop whenever a
// policy reports an Event other than EventOK. A nil handler is treated as
// always returning DecisionContinue (spec.md §7: "without a registered
// handler, non-OK events are treated as OK").
type EventHandler func(Event) Decision

// EventSink is how a policy tells the kernel that a task it drained from
// its ready structure has reached task.StateDone, so the kernel can
// reclaim the TCB and its stack. Grounded on the "tasks_events_type"
// template parameter every concrete scheduler in the original takes.
type EventSink interface {
	OnTaskDone(tcb *task.TCB)
}

// Clock is the time source a policy needs: the monotonic tick counter
// (for deadline/wakeup comparisons) and a fast-moving sub-tick counter
// used only to reseed the lottery policies' PRNG.
type Clock interface {
	TickCount() uint32
	SubTick() uint32
}

// Policy is the contract every scheduler implements against the kernel
// (spec.md §4.2).
type Policy interface {
	// ConfigureTask populates per-task scheduler state from cfg, the
	// flagged-storage configuration blob passed to AddTask.
	ConfigureTask(tcb *task.TCB, cfg *task.TaskFlags)
	// ClearTask releases the per-task scheduler state allocated by
	// ConfigureTask. Called once the kernel has observed a task as DONE.
	ClearTask(tcb *task.TCB)
	// AddTask enqueues a READY task into the policy's ready structure.
	AddTask(tcb *task.TCB)
	// GetNextTask selects the task that should run next, or nil if none
	// is runnable (the kernel then runs its configured IdleHook, if any).
	GetNextTask() (*task.TCB, Event)
}

// StatisticsProvider is implemented by policies (currently only MLFQ)
// that publish an opt-in per-task diagnostics grid (see statistics.go).
type StatisticsProvider interface {
	Statistics() *Statistics
}

// QuantumSetter is implemented by policies (currently only the
// cooperative/preemptive hybrid) that want to change the kernel's current
// preemption quantum whenever they select a new task.
type QuantumSetter interface {
	OnQuantaChange(func(quantum uint32))
}

// SystickHook is implemented by policies (currently only MLFQ) that need
// a per-tick callback to update their own bookkeeping (quantum-used
// counters, level demotion, ...) alongside the kernel's tick counter.
//
// There is no "pend a context switch now" effect to trigger here: in
// this virtual-time cooperative model a task only ever runs from one
// voluntary suspension point to the next, and the kernel's dispatch loop
// already calls GetNextTask afresh on every single Tick. Any bookkeeping
// Tick performs (e.g. MLFQ demoting a task a level) is already visible
// to the very next GetNextTask call, so there is nothing left for a
// forced-reschedule signal to do.
type SystickHook interface {
	// Tick is called once per SysTick from the kernel, passing the
	// currently running task, so the hook can update its own per-task
	// scheduling state.
	Tick(running *task.TCB)
}
