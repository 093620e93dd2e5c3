// Package pool provides a fixed-capacity object pool, grounded on
// aikartos/inc/aikartos/utils/object_pool.hpp: a bitset tracks slot
// occupancy, Alloc finds the first clear bit and hands back a pointer into
// a preallocated backing array, and Free clears the bit by index.
//
// This is the allocator the scheduler framework uses for per-task
// scheduler state (spec.md §3 "Scheduler per-task state"): one Pool[T] per
// scheduling policy, sized to the kernel's configured maximum task count.
package pool

import (
	"unsafe"

	"github.com/aikart-go/aikart/internal/bitset"
)

// Pool is a fixed-capacity, slot-stable allocator for values of type T.
// Pointers returned by Alloc remain valid (and are not moved) until the
// corresponding Free call.
type Pool[T any] struct {
	storage  []T
	occupied *bitset.Set
}

// New creates a Pool with room for "capacity" live objects.
func New[T any](capacity int) *Pool[T] {
	return &Pool[T]{
		storage:  make([]T, capacity),
		occupied: bitset.New(capacity),
	}
}

// Cap returns the pool's fixed capacity.
func (p *Pool[T]) Cap() int { return len(p.storage) }

// Len returns the number of currently live allocations.
func (p *Pool[T]) Len() int { return p.occupied.PopCount() }

// Alloc reserves a slot, resets it to the zero value of T, and returns a
// pointer to it. It returns nil when the pool is exhausted.
func (p *Pool[T]) Alloc() *T {
	idx := p.occupied.FindZero()
	if idx < 0 {
		return nil
	}
	p.occupied.Set(idx)
	p.storage[idx] = *new(T)
	return &p.storage[idx]
}

// Free releases the slot owned by ptr. ptr must have been returned by a
// prior call to Alloc on the same Pool; any other value is ignored.
func (p *Pool[T]) Free(ptr *T) {
	idx := p.indexOf(ptr)
	if idx < 0 {
		return
	}
	p.occupied.Clear(idx)
}

// IndexOf returns the slot position ptr occupies, or -1 if ptr was not
// allocated from this Pool. Used by callers that key a side table (e.g.
// Statistics) by slot position rather than by pointer identity.
func (p *Pool[T]) IndexOf(ptr *T) int {
	return p.indexOf(ptr)
}

func (p *Pool[T]) indexOf(ptr *T) int {
	if ptr == nil || len(p.storage) == 0 {
		return -1
	}
	var zero T
	elemSize := unsafe.Sizeof(zero)
	base := uintptr(unsafe.Pointer(&p.storage[0]))
	target := uintptr(unsafe.Pointer(ptr))
	if target < base {
		return -1
	}
	offset := target - base
	if offset%elemSize != 0 {
		return -1
	}
	idx := int(offset / elemSize)
	if idx >= len(p.storage) {
		return -1
	}
	return idx
}
