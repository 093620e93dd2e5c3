package alloc

import "unsafe"

// TLSF is the allocator-facing shell around TLSFCore, grounded on
// aikartos/inc/aikartos/mem/tlsf/impl/fixed.hpp and
// aikartos/inc/aikartos/mem/tlsf/impl/region.hpp — again collapsed into
// one type with two constructors, as with Buddy.
type TLSF struct {
	core *TLSFCore
}

// NewTLSFFixed allocates its own backing array of sizeBytes.
func NewTLSFFixed(sizeBytes int, minClassLog2, subclassBits uint) *TLSF {
	return &TLSF{core: NewTLSFCore(make([]byte, sizeBytes), minClassLog2, subclassBits)}
}

// NewTLSFRegion manages caller-supplied memory, typically obtained from
// package arch's mmap wrapper.
func NewTLSFRegion(region []byte, minClassLog2, subclassBits uint) *TLSF {
	return &TLSF{core: NewTLSFCore(region, minClassLog2, subclassBits)}
}

// Total returns the number of bytes under management.
func (t *TLSF) Total() int { return t.core.Total() }

// Alloc returns a byte slice of at least size bytes, or nil if no block
// is large enough.
func (t *TLSF) Alloc(size int) []byte {
	off, ok := t.core.Alloc(size)
	if !ok {
		return nil
	}
	return t.core.region[off : off+uint32(size) : len(t.core.region)]
}

// Calloc is Alloc followed by zeroing, matching spec.md §4.3.3's
// malloc/calloc/realloc/free forwarding contract at the allocator level.
func (t *TLSF) Calloc(size int) []byte {
	p := t.Alloc(size)
	if p == nil {
		return nil
	}
	for i := range p {
		p[i] = 0
	}
	return p
}

// Free releases a slice previously returned by Alloc/Calloc/Realloc. A
// nil slice, or one outside this allocator's region, is a no-op.
func (t *TLSF) Free(ptr []byte) {
	off, ok := t.offsetOf(ptr)
	if !ok {
		return
	}
	t.core.Free(off)
}

// Realloc grows or shrinks ptr to newSize, returning a (possibly new)
// slice with the original content preserved up to min(old, new) length.
// If ptr already has enough capacity it is returned unchanged, per
// spec.md §4.3.2.
func (t *TLSF) Realloc(ptr []byte, newSize int) []byte {
	if ptr == nil {
		return t.Alloc(newSize)
	}
	off, ok := t.offsetOf(ptr)
	if !ok {
		return nil
	}
	if t.core.CanSatisfy(off, newSize) {
		return t.core.region[off : off+uint32(newSize) : len(t.core.region)]
	}
	fresh := t.Alloc(newSize)
	if fresh == nil {
		return nil
	}
	copy(fresh, ptr)
	t.core.Free(off)
	return fresh
}

func (t *TLSF) offsetOf(ptr []byte) (uint32, bool) {
	if len(ptr) == 0 || len(t.core.region) == 0 {
		return 0, false
	}
	base := uintptr(unsafe.Pointer(&t.core.region[0]))
	target := uintptr(unsafe.Pointer(&ptr[0]))
	if target < base {
		return 0, false
	}
	offset := target - base
	if offset >= uintptr(len(t.core.region)) {
		return 0, false
	}
	return uint32(offset), true
}
