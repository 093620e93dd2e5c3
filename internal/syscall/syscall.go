// Package syscall implements the kernel's supervisor-call gate: a fixed
// table of syscall numbers dispatched to a Handler, modeling the
// register-frame-in/register-frame-out shape of a real SVC trap without
// depending on an actual SVC instruction.
package syscall

// Syscall numbers, matching the original's SVC immediate values.
const (
	Yield   uint32 = 1
	Sleep   uint32 = 2
	AddTask uint32 = 3
)

// Handler is implemented by the kernel and receives dispatched syscalls.
// Its methods mirror the argument order a real SVC handler would pull out
// of r0..r3.
type Handler interface {
	SyscallYield()
	SyscallSleep(ticks uint32)
	SyscallAddTask(taskPtr uintptr, priority uint32) uintptr
}

// Result codes Dispatch itself places in the frame's r0 slot: ResultOK
// after a call that has no return value, ResultUnknownCall for a number
// it does not recognise. AddTask's own return value is forwarded verbatim.
const (
	ResultOK          uintptr = 0
	ResultUnknownCall uintptr = ^uintptr(0)
)

// Dispatch decodes number and args (modeling r0..r3) and invokes the
// matching method on h, returning what would be placed back into r0.
// args[0] is the first argument for calls that take one; AddTask also
// consumes args[1] as the priority.
func Dispatch(h Handler, number uint32, args [4]uintptr) uintptr {
	switch number {
	case Yield:
		h.SyscallYield()
		return ResultOK
	case Sleep:
		h.SyscallSleep(uint32(args[0]))
		return ResultOK
	case AddTask:
		return h.SyscallAddTask(args[0], uint32(args[1]))
	default:
		return ResultUnknownCall
	}
}
