//go:build unix

package extmem

import (
	"math"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

type systemAllocator struct{}

// PageSize returns the OS page size.
func PageSize() uintptr {
	return uintptr(unix.Getpagesize())
}

// Alloc maps size bytes (rounded up to whole pages) of anonymous memory.
func (systemAllocator) Alloc(size uintptr) ([]byte, error) {
	if size == 0 {
		return nil, ErrZeroSize
	}
	n := roundUp(size, PageSize())
	if n < size || n > math.MaxInt {
		return nil, errors.Wrapf(ErrExhausted, "mapping of %d bytes too large", size)
	}
	data, err := unix.Mmap(-1, 0, int(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(ErrExhausted, "mmap %d bytes: %v", n, err)
	}
	return data[:size], nil
}

// Free unmaps a block returned by Alloc.
func (systemAllocator) Free(b []byte) error {
	if cap(b) == 0 {
		return ErrForeignBlock
	}
	err := unix.Munmap(b[:cap(b)])
	if errors.Is(err, unix.EINVAL) {
		// Unknown or already unmapped block.
		return ErrForeignBlock
	}
	return err
}
