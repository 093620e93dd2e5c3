package task

import "math/bits"

// Flag is a one-hot bitmask identifying a single configuration slot,
// matching the original's "config_flags" enums (one flag per scheduler
// policy, e.g. tasks::priority or weighted_lottery::config_flags::tickets).
type Flag uint32

// maxFlags bounds how many distinct one-hot flags a TaskFlags blob can
// hold; the original's flagged_storage/sparse_storage is parameterized on
// MaximumElements (16 for tasks::config) but every concrete scheduler
// config in this rewrite fits comfortably in a 32-bit word's worth of bits.
const maxFlags = 32

// TaskFlags is the sparse keyed configuration blob passed from AddTask to
// a scheduler's ConfigureTask (spec.md §3 "Configuration blob"). Grounded
// on aikartos/inc/aikartos/utils/flagged_storage.hpp and
// aikartos/inc/aikartos/utils/sparse_storage.hpp: a bitset of "is this
// slot set" paired with a fixed array of values, indexed by the position
// of the flag's single set bit.
//
// The original distinguishes a debug build (value + type tag) from a
// release build (value only) to catch a caller reading a flag back with
// the wrong static type. Go's `any` always carries its dynamic type at
// essentially the same cost either way, so UpdateValue's type-assertion
// failure mode (silently leave dst unchanged) folds both of the
// original's build modes into one code path.
type TaskFlags struct {
	present uint32
	values  [maxFlags]any
}

func position(flag Flag) int {
	if flag == 0 {
		return -1
	}
	return bits.TrailingZeros32(uint32(flag))
}

// Set stores value under flag, returning the same TaskFlags for chaining
// (the original's set<Flag>(value) returns *this for the same reason).
func (f *TaskFlags) Set(flag Flag, value any) *TaskFlags {
	pos := position(flag)
	if pos < 0 || pos >= maxFlags {
		return f
	}
	f.present |= 1 << uint(pos)
	f.values[pos] = value
	return f
}

// Get returns the stored value for flag and whether it was set.
func (f *TaskFlags) Get(flag Flag) (any, bool) {
	pos := position(flag)
	if pos < 0 || pos >= maxFlags || f.present&(1<<uint(pos)) == 0 {
		return nil, false
	}
	return f.values[pos], true
}

// UpdateValue overwrites *dst with the stored value for flag if, and only
// if, flag was set and the stored value's dynamic type matches T — a
// no-op otherwise, matching spec.md §3: "a no-op when unset and otherwise
// overwrites dst".
func UpdateValue[T any](f *TaskFlags, flag Flag, dst *T) {
	raw, ok := f.Get(flag)
	if !ok {
		return
	}
	if v, ok := raw.(T); ok {
		*dst = v
	}
}
