// Package rnd provides the small seedable pseudorandom generators used by
// the lottery-family schedulers. None of these are cryptographically
// secure; they exist purely to pick a ticket winner cheaply and
// deterministically from a reseed value (spec.md §4.2.4: "RNG is xorshift32
// re-seeded from SysTick's subtick counter at each add_task").
package rnd

// Source is satisfied by every generator in this package.
type Source interface {
	Next() uint32
	Reset(seed uint32)
}

const defaultSeed = 0xABCDEFFF

func fixSeed(seed uint32) uint32 {
	if seed == 0 {
		return defaultSeed
	}
	return seed
}

// XorShift32 is grounded on aikartos/Inc/aikartos/rnd/xorshift32.hpp.
type XorShift32 struct{ state uint32 }

// NewXorShift32 constructs a generator seeded as the original defaults to.
func NewXorShift32(seed uint32) *XorShift32 { return &XorShift32{state: fixSeed(seed)} }

// Next returns the next pseudorandom value and advances the state.
func (x *XorShift32) Next() uint32 {
	v := x.state
	v ^= v << 13
	v ^= v >> 17
	v ^= v << 5
	x.state = v
	return v
}

// Reset reseeds the generator.
func (x *XorShift32) Reset(seed uint32) { x.state = fixSeed(seed) }

// XorShift128 is grounded on aikartos/inc/aikartos/rnd/xorshift128.hpp
// ("xor128" from Marsaglia, "Xorshift RNGs").
type XorShift128 struct{ state [4]uint32 }

// NewXorShift128 constructs a generator seeded as the original defaults to.
func NewXorShift128(seed uint32) *XorShift128 {
	x := &XorShift128{}
	x.Reset(seed)
	return x
}

// Next returns the next pseudorandom value and advances the state.
func (x *XorShift128) Next() uint32 {
	t := x.state[3]
	s := x.state[0]
	x.state[3] = x.state[2]
	x.state[2] = x.state[1]
	x.state[1] = s
	t ^= t << 11
	t ^= t >> 8
	x.state[0] = t ^ s ^ (s >> 19)
	return x.state[0]
}

// Reset reseeds every lane of the generator to the same seed.
func (x *XorShift128) Reset(seed uint32) {
	s := fixSeed(seed)
	x.state = [4]uint32{s, s, s, s}
}

// LFSR is grounded on aikartos/Inc/aikartos/rnd/lfsr.hpp: a 32-bit
// Fibonacci linear feedback shift register with taps at bits 0, 2, 3, 5.
type LFSR struct{ state uint32 }

// NewLFSR constructs a generator seeded as the original defaults to.
func NewLFSR(seed uint32) *LFSR { return &LFSR{state: fixSeed(seed)} }

// Next returns the next pseudorandom value and advances the state.
func (l *LFSR) Next() uint32 {
	bit := ((l.state >> 0) ^ (l.state >> 2) ^ (l.state >> 3) ^ (l.state >> 5)) & 1
	l.state = (l.state >> 1) | (bit << 31)
	return l.state
}

// Reset reseeds the generator.
func (l *LFSR) Reset(seed uint32) { l.state = fixSeed(seed) }
