package alloc

import "github.com/aikart-go/aikart/internal/arch"

// Allocator is the abstract surface both Buddy and TLSF present: the
// common alloc/free/total contract of spec.md §4.3.
type Allocator interface {
	Alloc(size int) []byte
	Free(ptr []byte)
	Total() int
}

// Reallocator is additionally implemented by allocators that support
// growing or shrinking a live allocation in place — TLSF only, per
// spec.md §4.3 ("realloc -> pointer or nullptr (TLSF only)").
type Reallocator interface {
	Allocator
	Realloc(ptr []byte, newSize int) []byte
}

var current Allocator

// SetCurrent installs a as the process-wide allocator that Malloc,
// Calloc, Realloc and Free forward to, grounded on
// aikartos/inc/aikartos/mem/global.hpp's current_allocator singleton.
func SetCurrent(a Allocator) { current = a }

// Current returns the installed allocator, or nil if none has been set.
func Current() Allocator { return current }

// Malloc forwards to the current allocator inside an IRQ-critical
// section. It returns nil if no allocator is installed or the request
// cannot be satisfied.
func Malloc(size int) []byte {
	var out []byte
	arch.Critical(func() {
		if current == nil {
			return
		}
		out = current.Alloc(size)
	})
	return out
}

// Calloc is Malloc followed by zeroing the returned memory.
func Calloc(size int) []byte {
	p := Malloc(size)
	if p == nil {
		return nil
	}
	for i := range p {
		p[i] = 0
	}
	return p
}

// Realloc forwards to the current allocator's Realloc if it implements
// Reallocator (TLSF); it panics on a buddy-backed allocator, matching the
// original's static assertion that buddy has no realloc entry point.
func Realloc(ptr []byte, newSize int) []byte {
	var out []byte
	arch.Critical(func() {
		if current == nil {
			return
		}
		r, ok := current.(Reallocator)
		if !ok {
			panic("alloc: Realloc called on an allocator without realloc support")
		}
		out = r.Realloc(ptr, newSize)
	})
	return out
}

// Free forwards to the current allocator inside an IRQ-critical section.
func Free(ptr []byte) {
	arch.Critical(func() {
		if current != nil {
			current.Free(ptr)
		}
	})
}
