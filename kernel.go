// Package aikart is the root of a small preemptive real-time kernel
// core: task/context-switch engine, pluggable scheduler framework,
// dynamic memory allocators, and a relocatable module loader, built
// around a virtual-time cooperative scheduling model (see dispatch.go).
//
// Grounded on aikartos/inc/aikartos/kernel.hpp and aikartos/inc/aikartos/sch/*.
package aikart

import (
	"sync"

	"github.com/aikart-go/aikart/internal/logging"
	"github.com/aikart-go/aikart/internal/sched"
	"github.com/aikart-go/aikart/internal/syscall"
	"github.com/aikart-go/aikart/internal/task"
)

// Kernel owns the task table, the installed scheduler policy, and the
// virtual tick counter. It implements sched.Clock and sched.EventSink so
// a caller can pass it directly to a sched.NewXxx constructor before
// calling Init.
type Kernel struct {
	mu     sync.Mutex
	cfg    Config
	logger *logging.Logger
	metr   *Metrics

	policy       sched.Policy
	quantumSet   sched.QuantumSetter
	systickHook  sched.SystickHook
	eventHandler sched.EventHandler
	statsSource  sched.StatisticsProvider

	tasks  map[task.ID]*taskHandle
	nextID task.ID

	tick    uint32
	subtick uint32
	quantum uint32

	running *taskHandle

	bodies   map[uintptr]task.StepFunc
	nextBody uintptr
}

var _ sched.Clock = (*Kernel)(nil)
var _ sched.EventSink = (*Kernel)(nil)
var _ syscall.Handler = (*Kernel)(nil)

// NewKernel constructs a Kernel. The returned value already satisfies
// sched.Clock and sched.EventSink, so it can be handed to a sched.NewXxx
// constructor before Init is called.
func NewKernel(cfg Config) *Kernel {
	cfg = cfg.normalized()
	return &Kernel{
		cfg:     cfg,
		logger:  logging.Default().With("component", "kernel"),
		metr:    NewMetrics(),
		tasks:   make(map[task.ID]*taskHandle),
		quantum: cfg.DefaultQuantum,
		bodies:  make(map[uintptr]task.StepFunc),
	}
}

// Metrics returns the kernel's metrics instance.
func (k *Kernel) Metrics() *Metrics { return k.metr }

// Init installs policy as the kernel's scheduler, auto-detecting the
// optional sched.QuantumSetter and sched.SystickHook interfaces.
func (k *Kernel) Init(policy sched.Policy) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.policy = policy
	if qs, ok := policy.(sched.QuantumSetter); ok {
		k.quantumSet = qs
		qs.OnQuantaChange(func(q uint32) {
			k.mu.Lock()
			k.quantum = q
			k.mu.Unlock()
		})
	}
	if hook, ok := policy.(sched.SystickHook); ok {
		k.systickHook = hook
	}
	if sp, ok := policy.(sched.StatisticsProvider); ok {
		k.statsSource = sp
	}
}

// SchedulerStatistics returns the installed policy's diagnostics grid, or
// nil if the policy doesn't implement sched.StatisticsProvider.
func (k *Kernel) SchedulerStatistics() *sched.Statistics {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.statsSource == nil {
		return nil
	}
	return k.statsSource.Statistics()
}

// RegisterSchedulerEventHandler installs the handler invoked whenever the
// policy reports a non-OK scheduler event.
func (k *Kernel) RegisterSchedulerEventHandler(h sched.EventHandler) {
	k.mu.Lock()
	k.eventHandler = h
	k.mu.Unlock()
}

// RegisterSystickHook overrides the scheduler-supplied SystickHook, if
// any, with a caller-supplied one.
func (k *Kernel) RegisterSystickHook(h sched.SystickHook) {
	k.mu.Lock()
	k.systickHook = h
	k.mu.Unlock()
}

// GetTickCount returns the current virtual tick count.
func (k *Kernel) GetTickCount() uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tick
}

// CurrentQuantum returns the preemption quantum currently in effect.
func (k *Kernel) CurrentQuantum() uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.quantum
}

// TickCount implements sched.Clock.
func (k *Kernel) TickCount() uint32 { return k.GetTickCount() }

// SubTick implements sched.Clock: a fast-moving counter used only to
// reseed the lottery policies' PRNG.
func (k *Kernel) SubTick() uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.subtick
}

// OnTaskDone implements sched.EventSink: reclaims a task's bookkeeping
// once the policy has observed it reached task.StateDone.
func (k *Kernel) OnTaskDone(tcb *task.TCB) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.tasks, tcb.Descriptor.ID)
	if k.policy != nil {
		k.policy.ClearTask(tcb)
	}
	k.metr.RecordTaskCompleted()
	k.logger.Debug("task done", "task_id", tcb.Descriptor.ID)
}

// AddTask creates a new task running fn and enqueues it as READY. cfg is
// the flagged-storage configuration blob forwarded to the policy's
// ConfigureTask (priority, tickets, deadline, quantum, ...).
func (k *Kernel) AddTask(fn task.StepFunc, cfg *task.TaskFlags) (task.ID, error) {
	k.mu.Lock()
	if k.policy == nil {
		k.mu.Unlock()
		return 0, NewError("ADD_TASK", ErrCodeNotInitialized, "kernel not initialized")
	}
	if len(k.tasks) >= k.cfg.MaxTasks {
		k.mu.Unlock()
		return 0, NewError("ADD_TASK", ErrCodeTaskLimit, "task table full")
	}

	k.nextID++
	id := k.nextID
	policy := k.policy
	k.mu.Unlock()

	// The policy may read the kernel's Clock, which takes k.mu, so it is
	// configured and enqueued without the lock held.
	tcb := &task.TCB{
		Stack: task.NewStack(k.cfg.StackWords, k.cfg.Debug),
		Descriptor: task.Descriptor{
			ID:    id,
			State: task.StateReady,
		},
	}
	if cfg != nil {
		policy.ConfigureTask(tcb, cfg)
	} else {
		policy.ConfigureTask(tcb, &task.TaskFlags{})
	}

	h := &taskHandle{
		tcb:    tcb,
		resume: make(chan struct{}),
		report: make(chan suspendReport),
	}
	k.mu.Lock()
	k.tasks[id] = h
	k.mu.Unlock()
	policy.AddTask(tcb)
	k.metr.RecordTaskAdded()

	go runTaskBody(k, h, fn)

	k.logger.Debug("task added", "task_id", id)
	return id, nil
}

// RegisterTaskBody records fn in the kernel's body table and returns an
// opaque handle, the Go substitute for "the address execution would jump
// to" in SyscallAddTask's register-frame argument.
func (k *Kernel) RegisterTaskBody(fn task.StepFunc) uintptr {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.nextBody++
	id := k.nextBody
	k.bodies[id] = fn
	return id
}

// SyscallYield implements internal/syscall.Handler.
func (k *Kernel) SyscallYield() { k.Yield() }

// SyscallSleep implements internal/syscall.Handler.
func (k *Kernel) SyscallSleep(ticks uint32) { k.Sleep(ticks) }

// SyscallAddTask implements internal/syscall.Handler: taskPtr is a handle
// previously returned by RegisterTaskBody, priority is forwarded as the
// FixedPriority/PriorityAging FlagPriority field.
func (k *Kernel) SyscallAddTask(taskPtr uintptr, priority uint32) uintptr {
	k.mu.Lock()
	fn, ok := k.bodies[taskPtr]
	k.mu.Unlock()
	if !ok {
		return syscall.ResultUnknownCall
	}
	cfg := (&task.TaskFlags{}).Set(sched.FlagPriority, uint8(priority))
	id, err := k.AddTask(fn, cfg)
	if err != nil {
		return syscall.ResultUnknownCall
	}
	return uintptr(id)
}

// Yield suspends the currently running task, returning it to READY.
// Intended for use by the syscall gate; task bodies should prefer their
// own *Context.
func (k *Kernel) Yield() {
	h := k.currentHandle()
	if h != nil {
		k.suspend(h, task.StateReady, 0)
	}
}

// Sleep suspends the currently running task until tick count advances by
// ticks.
func (k *Kernel) Sleep(ticks uint32) {
	h := k.currentHandle()
	if h == nil {
		return
	}
	wake := k.GetTickCount() + ticks
	k.suspend(h, task.StateWait, wake)
}

// TerminateCurrent marks the currently running task DONE; its goroutine
// exits and its resources are reclaimed once the scheduler observes it.
func (k *Kernel) TerminateCurrent() {
	h := k.currentHandle()
	if h != nil {
		k.suspend(h, task.StateDone, 0)
	}
}

func (k *Kernel) currentHandle() *taskHandle {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running
}
