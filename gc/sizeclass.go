package gc

import (
	"math"

	"github.com/cockroachdb/errors"
)

// SizeClassConfig defines the pool size class strategy.
type SizeClassConfig struct {
	// Name for this configuration (for stats and benchmarks)
	Name string

	// Small classes (linear increments)
	SmallMin       uintptr // Smallest cell size
	SmallMax       uintptr // Last linearly spaced cell size
	SmallIncrement uintptr // Step between small classes

	// Medium classes (geometric growth); the last class is MediumMax
	MediumMax    uintptr
	GrowthFactor float64
}

// Predefined configurations.
var (
	// ConfigFine: 8-256 step 8 (32 classes) + 256-4K log growth.
	ConfigFine = SizeClassConfig{
		Name:           "Fine",
		SmallMin:       8,
		SmallMax:       256,
		SmallIncrement: 8,
		MediumMax:      4096,
		GrowthFactor:   1.25,
	}

	// ConfigBalanced: 16-256 step 16 (16 classes) + 256-2K log growth (~6 classes).
	ConfigBalanced = SizeClassConfig{
		Name:           "Balanced",
		SmallMin:       16,
		SmallMax:       256,
		SmallIncrement: 16,
		MediumMax:      2048,
		GrowthFactor:   1.5,
	}

	// ConfigCoarse: 16-512 step 32 + 512-2K doubling. Fewer pools, more slack per cell.
	ConfigCoarse = SizeClassConfig{
		Name:           "Coarse",
		SmallMin:       16,
		SmallMax:       512,
		SmallIncrement: 32,
		MediumMax:      2048,
		GrowthFactor:   2.0,
	}

	// DefaultSizeClasses is used when Options.SizeClasses is nil.
	DefaultSizeClasses = ConfigBalanced
)

const classAlign = 16

func (c *SizeClassConfig) validate() error {
	switch {
	case c.SmallMin == 0 || c.SmallIncrement == 0:
		return errors.Wrapf(ErrInvalidOptions, "size classes %q: zero minimum or increment", c.Name)
	case c.SmallMax < c.SmallMin:
		return errors.Wrapf(ErrInvalidOptions, "size classes %q: SmallMax %d below SmallMin %d", c.Name, c.SmallMax, c.SmallMin)
	case c.MediumMax < c.SmallMax:
		return errors.Wrapf(ErrInvalidOptions, "size classes %q: MediumMax %d below SmallMax %d", c.Name, c.MediumMax, c.SmallMax)
	case c.MediumMax > c.SmallMax && c.GrowthFactor <= 1:
		return errors.Wrapf(ErrInvalidOptions, "size classes %q: growth factor %v must exceed 1", c.Name, c.GrowthFactor)
	case c.SmallMin%wordSize != 0 || c.SmallIncrement%wordSize != 0:
		return errors.Wrapf(ErrInvalidOptions, "size classes %q: sizes must be word multiples", c.Name)
	}
	return nil
}

// maxSize is the largest cell size the configuration produces.
func (c *SizeClassConfig) maxSize() uintptr {
	return newSizeClassTable(*c).maxSize()
}

// sizeClassTable holds the computed cell sizes, ascending.
type sizeClassTable struct {
	config SizeClassConfig
	sizes  []uintptr
}

func newSizeClassTable(config SizeClassConfig) *sizeClassTable {
	t := &sizeClassTable{
		config: config,
		sizes:  make([]uintptr, 0, 32),
	}

	// Phase 1: linear small classes
	for size := config.SmallMin; size <= config.SmallMax; size += config.SmallIncrement {
		t.sizes = append(t.sizes, size)
	}

	// Phase 2: geometric medium classes
	size := t.sizes[len(t.sizes)-1]
	for size < config.MediumMax {
		next := uintptr(math.Ceil(float64(size) * config.GrowthFactor))
		next = (next + classAlign - 1) &^ (classAlign - 1)
		if next <= size {
			next = size + classAlign // ensure progress
		}
		if next > config.MediumMax {
			next = config.MediumMax
		}
		t.sizes = append(t.sizes, next)
		size = next
	}
	return t
}

// classFor returns the smallest class holding size, or -1 when size exceeds
// every class and must be allocated externally.
func (t *sizeClassTable) classFor(size uintptr) int {
	lo, hi := 0, len(t.sizes)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if size <= t.sizes[mid] {
			if mid == 0 || size > t.sizes[mid-1] {
				return mid
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return -1
}

func (t *sizeClassTable) maxSize() uintptr {
	return t.sizes[len(t.sizes)-1]
}

// NumClasses returns the number of pool size classes.
func (t *sizeClassTable) NumClasses() int {
	return len(t.sizes)
}

func (t *sizeClassTable) String() string {
	return t.config.Name
}
