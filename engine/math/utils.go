package math

import "golang.org/x/exp/constraints"

// AlignUp returns the smallest multiple of `align` that is greater or equal to `v`.
// An alignment of zero leaves the value untouched. Works for non power-of-two alignments too.
func AlignUp[T constraints.Unsigned](v, align T) T {
	if align == 0 {
		return v
	}
	if r := v % align; r != 0 {
		return v + (align - r)
	}
	return v
}

// IsAligned reports whether `v` is a multiple of `align`.
func IsAligned[T constraints.Unsigned](v, align T) bool {
	return align != 0 && v%align == 0
}
