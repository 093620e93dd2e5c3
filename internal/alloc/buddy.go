// Package alloc implements the two general-purpose allocators the kernel
// can install as the active heap manager: a buddy allocator and a TLSF
// (two-level segregated fit) allocator. Both operate over a plain []byte
// region rather than raw pointers — "addresses" in this rewrite are byte
// offsets into that region, and a block header is a fixed byte layout
// written with encoding/binary, the same idiom the teacher uses for its
// wire structs in internal/uapi.
//
// Grounded on aikartos/inc/aikartos/mem/buddy/* and
// aikartos/inc/aikartos/mem/tlsf/* and spec.md §4.3.
package alloc

import "encoding/binary"

// noneOffset is the "no block" sentinel used throughout both allocators'
// linked lists, playing the role of a null pointer.
const noneOffset uint32 = 0xFFFFFFFF

// buddyHeaderSize is the on-disk size of a buddy block header: a 4-byte
// level-and-used word followed by two 4-byte free-list links, padded to
// keep the following payload 8-byte aligned.
const buddyHeaderSize = 16

// BuddyCore implements the buddy algorithm over a region handed to it at
// construction. It never allocates memory of its own beyond the per-level
// free-list head slice — the managed bytes all come from the region.
type BuddyCore struct {
	region  []byte
	minLog2 uint
	levels  int
	free    []uint32 // free[level] = offset of the free list head, or noneOffset
}

// NewBuddyCore builds a BuddyCore over region. minLog2 is the block-size
// exponent of the smallest block (spec.md requires ≥ 5, i.e. a 32-byte
// minimum block). The region is truncated down to the largest power of
// two multiple of the minimum block size it contains; any remainder is
// unmanaged padding.
func NewBuddyCore(region []byte, minLog2 uint) *BuddyCore {
	if minLog2 < 5 {
		minLog2 = 5
	}
	minSize := 1 << minLog2
	levels := 1
	for (minSize << levels) <= len(region) {
		levels++
	}
	managed := minSize << (levels - 1)
	c := &BuddyCore{
		region:  region[:managed],
		minLog2: minLog2,
		levels:  levels,
		free:    make([]uint32, levels),
	}
	for i := range c.free {
		c.free[i] = noneOffset
	}
	c.setHeader(0, uint32(levels-1), false)
	c.free[levels-1] = 0
	c.setLink(0, noneOffset, noneOffset)
	return c
}

// Total returns the number of bytes under management.
func (c *BuddyCore) Total() int { return len(c.region) }

func (c *BuddyCore) blockSize(level int) int { return 1 << (int(c.minLog2) + level) }

func (c *BuddyCore) setHeader(off uint32, level uint32, used bool) {
	v := level << 1
	if used {
		v |= 1
	}
	binary.LittleEndian.PutUint32(c.region[off:off+4], v)
}

func (c *BuddyCore) header(off uint32) (level uint32, used bool) {
	v := binary.LittleEndian.Uint32(c.region[off : off+4])
	return v >> 1, v&1 != 0
}

func (c *BuddyCore) setLink(off, prev, next uint32) {
	binary.LittleEndian.PutUint32(c.region[off+4:off+8], prev)
	binary.LittleEndian.PutUint32(c.region[off+8:off+12], next)
}

func (c *BuddyCore) prevOf(off uint32) uint32 {
	return binary.LittleEndian.Uint32(c.region[off+4 : off+8])
}

func (c *BuddyCore) nextOf(off uint32) uint32 {
	return binary.LittleEndian.Uint32(c.region[off+8 : off+12])
}

func (c *BuddyCore) setPrev(off, prev uint32) {
	binary.LittleEndian.PutUint32(c.region[off+4:off+8], prev)
}

func (c *BuddyCore) setNext(off, next uint32) {
	binary.LittleEndian.PutUint32(c.region[off+8:off+12], next)
}

func (c *BuddyCore) listPush(level int, off uint32) {
	head := c.free[level]
	c.setLink(off, noneOffset, head)
	if head != noneOffset {
		c.setPrev(head, off)
	}
	c.free[level] = off
}

func (c *BuddyCore) listPop(level int) (uint32, bool) {
	head := c.free[level]
	if head == noneOffset {
		return 0, false
	}
	next := c.nextOf(head)
	c.free[level] = next
	if next != noneOffset {
		c.setPrev(next, noneOffset)
	}
	return head, true
}

func (c *BuddyCore) listRemove(level int, off uint32) {
	prev := c.prevOf(off)
	next := c.nextOf(off)
	if prev != noneOffset {
		c.setNext(prev, next)
	} else {
		c.free[level] = next
	}
	if next != noneOffset {
		c.setPrev(next, prev)
	}
}

func (c *BuddyCore) levelFor(total int) int {
	size := 1 << c.minLog2
	level := 0
	for size < total {
		size <<= 1
		level++
	}
	return level
}

// Alloc reserves a block able to hold size bytes of payload and returns
// the offset of its header (not its payload) and true, or (0, false) if
// the region has no block large enough.
func (c *BuddyCore) Alloc(size int) (uint32, bool) {
	target := c.levelFor(buddyHeaderSize + size)
	if target >= c.levels {
		return 0, false
	}
	lvl := target
	for lvl < c.levels && c.free[lvl] == noneOffset {
		lvl++
	}
	if lvl >= c.levels {
		return 0, false
	}
	off, _ := c.listPop(lvl)
	for lvl > target {
		lvl--
		buddyOff := off + uint32(c.blockSize(lvl))
		c.setHeader(buddyOff, uint32(lvl), false)
		c.listPush(lvl, buddyOff)
	}
	c.setHeader(off, uint32(target), true)
	return off, true
}

// Free releases the block headed at off, coalescing with its buddy
// repeatedly while possible.
func (c *BuddyCore) Free(off uint32) {
	level, _ := c.header(off)
	c.setHeader(off, level, false)
	for int(level)+1 < c.levels {
		buddyOff := off ^ uint32(c.blockSize(int(level)))
		if buddyOff >= uint32(len(c.region)) {
			break
		}
		buddyLevel, buddyUsed := c.header(buddyOff)
		if buddyUsed || buddyLevel != level {
			break
		}
		c.listRemove(int(level), buddyOff)
		if buddyOff < off {
			off = buddyOff
		}
		level++
		c.setHeader(off, level, false)
	}
	c.listPush(int(level), off)
}

// PayloadOffset returns the byte offset of the payload owned by the block
// headed at off.
func (c *BuddyCore) PayloadOffset(off uint32) uint32 { return off + buddyHeaderSize }

// HeaderOffset returns the byte offset of the header owning the payload
// at payloadOff.
func (c *BuddyCore) HeaderOffset(payloadOff uint32) uint32 { return payloadOff - buddyHeaderSize }
