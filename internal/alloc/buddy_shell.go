package alloc

import "unsafe"

// Buddy is the allocator-facing shell around BuddyCore, exposing the
// pointer-shaped surface spec.md §4.3 gives every allocator: Alloc
// returns a live payload slice, Free accepts one back. Grounded on
// aikartos/inc/aikartos/mem/buddy/impl/fixed.hpp and
// aikartos/inc/aikartos/mem/buddy/impl/region.hpp, whose only difference
// is where the backing memory comes from — this rewrite keeps that as a
// single type with two constructors instead of two template
// instantiations, since Go has no equivalent of the original's
// compile-time storage-duration parameter.
type Buddy struct {
	core *BuddyCore
}

// NewBuddyFixed allocates its own backing array of sizeBytes, mirroring
// the original's fixed<N> variant that embeds a std::array member.
func NewBuddyFixed(sizeBytes int, minLog2 uint) *Buddy {
	return &Buddy{core: NewBuddyCore(make([]byte, sizeBytes), minLog2)}
}

// NewBuddyRegion manages caller-supplied memory — typically a region
// obtained from the platform shim's mmap wrapper (package arch) —
// mirroring the original's region variant that is handed a linker-defined
// or runtime-negotiated address range.
func NewBuddyRegion(region []byte, minLog2 uint) *Buddy {
	return &Buddy{core: NewBuddyCore(region, minLog2)}
}

// Total returns the number of bytes under management.
func (b *Buddy) Total() int { return b.core.Total() }

// Alloc returns a byte slice of at least size bytes, or nil if no block
// is large enough.
func (b *Buddy) Alloc(size int) []byte {
	off, ok := b.core.Alloc(size)
	if !ok {
		return nil
	}
	payload := b.core.PayloadOffset(off)
	return b.core.region[payload : payload+uint32(size) : len(b.core.region)]
}

// Free releases a slice previously returned by Alloc. A nil slice, or one
// that does not point into this allocator's region, is a no-op.
func (b *Buddy) Free(ptr []byte) {
	off, ok := b.offsetOf(ptr)
	if !ok {
		return
	}
	b.core.Free(b.core.HeaderOffset(off))
}

// offsetOf recovers the byte offset of ptr within the managed region
// using the same unsafe.Pointer/uintptr idiom as internal/pool's
// indexOf, since Go forbids direct pointer subtraction.
func (b *Buddy) offsetOf(ptr []byte) (uint32, bool) {
	if len(ptr) == 0 || len(b.core.region) == 0 {
		return 0, false
	}
	base := uintptr(unsafe.Pointer(&b.core.region[0]))
	target := uintptr(unsafe.Pointer(&ptr[0]))
	if target < base {
		return 0, false
	}
	offset := target - base
	if offset >= uintptr(len(b.core.region)) {
		return 0, false
	}
	return uint32(offset), true
}
