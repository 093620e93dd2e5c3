package aikart

import "github.com/aikart-go/aikart/internal/task"

// Config configures a Kernel at construction time. Go's first-class
// interfaces replace the original's compile-time template parameters:
// the caller supplies a ready-made sched.Policy value instead of a
// scheduler type parameter.
type Config struct {
	// StackWords is the word count for each task's Stack. Values below
	// task.MinStackWords are rounded up, matching the original's
	// enforced minimum.
	StackWords int
	// MaxTasks bounds how many tasks may be live at once.
	MaxTasks int
	// DefaultQuantum is the preemption quantum (in ticks) a
	// CoopPreemptive-style policy starts with before it has configured
	// any task. Unused by cooperative-only policies.
	DefaultQuantum uint32
	// IdleHook runs once per Tick when no task is runnable.
	IdleHook func()
	// Debug enables stack-sentinel painting (task.NewStack's debug mode).
	Debug bool
}

const defaultMaxTasks = 32

// normalized returns a copy of cfg with zero-valued fields replaced by
// defaults.
func (cfg Config) normalized() Config {
	if cfg.StackWords < task.MinStackWords {
		cfg.StackWords = task.MinStackWords
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = defaultMaxTasks
	}
	return cfg
}
