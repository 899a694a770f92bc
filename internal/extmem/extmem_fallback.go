//go:build !unix

package extmem

const fallbackPageSize = 4096

type systemAllocator struct{}

// PageSize returns the page size used for rounding when mmap is not available.
func PageSize() uintptr {
	return fallbackPageSize
}

// Alloc allocates from the Go heap when mmap is not available.
func (systemAllocator) Alloc(size uintptr) ([]byte, error) {
	if size == 0 {
		return nil, ErrZeroSize
	}
	b := make([]byte, roundUp(size, fallbackPageSize))
	return b[:size], nil
}

// Free is a no-op; the Go collector reclaims the slice.
func (systemAllocator) Free(b []byte) error {
	if cap(b) == 0 {
		return ErrForeignBlock
	}
	return nil
}
