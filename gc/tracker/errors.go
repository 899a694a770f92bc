package tracker

import "github.com/cockroachdb/errors"

var (
	// ErrOverlap indicates an insert whose range intersects a tracked range.
	// Errors wrapping it also carry an assertion failure marker.
	ErrOverlap = errors.New("tracker: overlapping external allocation")

	// ErrZeroSize indicates an insert of an empty range.
	ErrZeroSize = errors.New("tracker: zero-sized range")

	// ErrRangeOverflow indicates addr+size wraps around the address space.
	ErrRangeOverflow = errors.New("tracker: range overflows address space")

	// ErrCorrupt is returned by Check when a structural invariant does not hold.
	ErrCorrupt = errors.New("tracker: invariant violated")
)
