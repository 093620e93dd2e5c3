// Package bitset provides a fixed-capacity bitset sized once, when New is
// called, by its count argument, used anywhere the kernel needs to track occupancy of
// a bounded slot array without allocating.
//
// Grounded on aikartos/inc/aikartos/utils/light_bitset.hpp: a bucketed array
// of machine words with O(1) set/clear/test and an O(buckets) scan for the
// first unset bit, using bits.TrailingZeros in place of __builtin_ffs.
package bitset

import "math/bits"

const wordBits = 32

// Set is a fixed-capacity bitset over "count" bits, backed by uint32 words.
type Set struct {
	words []uint32
	count int
}

// New allocates a Set large enough to hold "count" bits.
func New(count int) *Set {
	buckets := (count + wordBits - 1) / wordBits
	if buckets == 0 {
		buckets = 1
	}
	return &Set{words: make([]uint32, buckets), count: count}
}

// Len reports the bit capacity of the set.
func (s *Set) Len() int { return s.count }

// Set marks bit at the given position.
func (s *Set) Set(pos int) {
	if pos < 0 || pos >= s.count {
		return
	}
	s.words[pos/wordBits] |= 1 << uint(pos%wordBits)
}

// Clear unmarks bit at the given position.
func (s *Set) Clear(pos int) {
	if pos < 0 || pos >= s.count {
		return
	}
	s.words[pos/wordBits] &^= 1 << uint(pos%wordBits)
}

// Reset clears every bit.
func (s *Set) Reset() {
	for i := range s.words {
		s.words[i] = 0
	}
}

// Test reports whether the bit at pos is set.
func (s *Set) Test(pos int) bool {
	if pos < 0 || pos >= s.count {
		return false
	}
	return s.words[pos/wordBits]&(1<<uint(pos%wordBits)) != 0
}

// FindZero returns the index of the first clear bit, or -1 if every bit
// within the set's capacity is set.
func (s *Set) FindZero() int {
	for b, word := range s.words {
		if word == ^uint32(0) {
			continue
		}
		pos := b*wordBits + bits.TrailingZeros32(^word)
		if pos >= s.count {
			return -1
		}
		return pos
	}
	return -1
}

// PopCount returns the number of set bits.
func (s *Set) PopCount() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount32(w)
	}
	return n
}
