// Package arch is the platform shim (spec.md component J): the thin
// layer the kernel core and allocators call through for anything that
// would, on real Cortex-M hardware, be a register write or an
// architectural primitive — IRQ masking around a critical section here,
// memory-mapped region reservation there.
//
// On Cortex-M, "disable interrupts" is a CPSID instruction and a region
// reservation is a linker symbol. Neither exists on the host this rewrite
// actually runs on, so both are grounded on the nearest POSIX analogue
// the teacher's own dependency already supplies:
// golang.org/x/sys/unix. Signal masking via unix.PthreadSigmask stands in
// for IRQ disable/enable (both "stop the scheduler from interrupting me
// here" in spirit), and unix.Mmap/unix.Munmap stand in for a
// region-backed allocator's memory source, grounded on the same
// unix.Mmap call the teacher's internal/uring/minimal.go uses to map its
// submission/completion queues.
package arch

import (
	"sync"

	"golang.org/x/sys/unix"
)

var criticalMu sync.Mutex

// Critical runs fn with SIGALRM-class asynchronous signal delivery
// blocked on the calling OS thread, the userspace analogue of Cortex-M's
// disable-IRQs/do-work/restore-IRQs pattern. Its only callers are the
// process-wide allocator functions in internal/alloc/global.go; the
// kernel guards its task list with its own mutex instead (spec.md
// §4.3: "alloc/free execute inside an IRQ-disabled critical section").
func Critical(fn func()) {
	criticalMu.Lock()
	defer criticalMu.Unlock()

	var old unix.Sigset_t
	masked := maskAsyncSignals(&old)
	defer func() {
		if masked {
			unix.PthreadSigmask(unix.SIG_SETMASK, &old, nil)
		}
	}()
	fn()
}

func maskAsyncSignals(old *unix.Sigset_t) bool {
	var set unix.Sigset_t
	set.Val[0] = 1 << (unix.SIGALRM - 1)
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, old); err != nil {
		return false
	}
	return true
}

// MapRegion reserves an anonymous, read-write memory region of size
// bytes for a Region-variant allocator (internal/alloc's Buddy/TLSF
// Region constructors), grounded on the Mmap call in
// internal/uring/minimal.go.
func MapRegion(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

// UnmapRegion releases a region obtained from MapRegion.
func UnmapRegion(region []byte) error {
	return unix.Munmap(region)
}
