// Command aikartctl boots the kernel with a chosen scheduler policy and
// runs a small fixed set of demo tasks to completion, printing per-task
// checkpoint counts. It is the runnable analogue of the round-robin fairness
// scenario the kernel's own tests exercise in isolation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aikart-go/aikart"
	"github.com/aikart-go/aikart/internal/logging"
	"github.com/aikart-go/aikart/internal/sched"
	"github.com/aikart-go/aikart/internal/task"
)

func main() {
	var (
		policyName = flag.String("policy", "roundrobin", "scheduler policy: roundrobin, fixedpriority, edf, coop, lottery, weightedlottery, mlfq, priorityaging, cfslike")
		numTasks   = flag.Int("tasks", 4, "number of demo tasks")
		steps      = flag.Int("steps", 20, "checkpoints each task performs before terminating")
		verbose    = flag.Bool("v", false, "verbose (debug) logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	k := aikart.NewKernel(aikart.Config{
		StackWords:     128,
		MaxTasks:       *numTasks + 1,
		DefaultQuantum: 4,
	})

	policy, err := newPolicy(*policyName, *numTasks, k)
	if err != nil {
		logger.Error("failed to construct scheduler policy", "error", err)
		os.Exit(1)
	}
	k.Init(policy)

	k.RegisterSchedulerEventHandler(func(evt sched.Event) sched.Decision {
		if evt == sched.EventEDFDeadlineMiss {
			logger.Warn("deadline miss observed")
		}
		return sched.DecisionContinue
	})

	counts := make([]int, *numTasks)
	for i := 0; i < *numTasks; i++ {
		idx := i
		cfg := demoTaskFlags(*policyName, idx)
		if _, err := k.AddTask(func(ctx task.Suspender) {
			for counts[idx] < *steps {
				counts[idx]++
				ctx.CheckPoint()
			}
		}, cfg); err != nil {
			logger.Error("failed to add task", "task_index", idx, "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("launching kernel", "policy", *policyName, "tasks", *numTasks)
	if err := k.Launch(ctx, 4); err != nil && err != context.Canceled {
		logger.Error("kernel run loop exited with error", "error", err)
		os.Exit(1)
	}

	snap := k.Metrics().Snapshot()
	fmt.Printf("policy: %s\n", *policyName)
	for i, c := range counts {
		fmt.Printf("  task %d: %d checkpoints\n", i, c)
	}
	fmt.Printf("context switches: %d\n", snap.ContextSwitches)
	fmt.Printf("ticks elapsed:    %d\n", snap.TicksElapsed)
	fmt.Printf("tasks completed:  %d\n", snap.TasksCompleted)

	if stats := k.SchedulerStatistics(); stats != nil {
		fmt.Println("mlfq final levels (task index order):")
		for i := 0; i < stats.Size(); i++ {
			level, ok := stats.GetField(i, sched.FieldMLFQLevel)
			if !ok {
				continue
			}
			used, _ := stats.GetField(i, sched.FieldMLFQQuantumUsed)
			fmt.Printf("  slot %d: level=%v quantum_used=%v\n", i, level, used)
		}
	}
}

// newPolicy constructs the named scheduler policy, wiring the kernel in as
// both its EventSink and Clock the same way every sched.NewXxx constructor
// expects.
func newPolicy(name string, numTasks int, k *aikart.Kernel) (sched.Policy, error) {
	capacity := numTasks + 1
	switch name {
	case "roundrobin":
		return sched.NewRoundRobin(capacity, k, k), nil
	case "fixedpriority":
		return sched.NewFixedPriority(capacity, k, k), nil
	case "priorityaging":
		return sched.NewPriorityAging(capacity, k, k), nil
	case "edf":
		return sched.NewEDF(capacity, k, k), nil
	case "coop":
		return sched.NewCoopPreemptive(capacity, k, k), nil
	case "lottery":
		return sched.NewLottery(capacity, k, k), nil
	case "weightedlottery":
		return sched.NewWeightedLottery(capacity, k, k), nil
	case "mlfq":
		return sched.NewMLFQ(capacity, k, k), nil
	case "cfslike":
		return sched.NewCFSLike(capacity, k, k), nil
	default:
		return nil, aikart.NewError("SCHED", aikart.ErrCodeInternal, fmt.Sprintf("unknown policy %q", name))
	}
}

// demoTaskFlags builds the per-task configuration a policy needs, if any.
// Policies that ignore unrecognized flags (everything but
// FixedPriority/PriorityAging/EDF) are unaffected by a flags blob they
// don't read.
func demoTaskFlags(policyName string, idx int) *task.TaskFlags {
	switch policyName {
	case "fixedpriority", "priorityaging":
		return (&task.TaskFlags{}).Set(sched.FlagPriority, uint8(idx%3))
	case "edf":
		return (&task.TaskFlags{}).Set(sched.FlagDeadline, uint32(50+idx*10))
	default:
		return nil
	}
}
