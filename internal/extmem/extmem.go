// Package extmem provides memory obtained outside the collector's pools.
//
// External objects and pool pages are backed by an Allocator. On unix the
// System allocator maps anonymous memory so that backing pages never live on
// the Go heap; other platforms fall back to heap slices.
package extmem

import (
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	// ErrZeroSize is returned when a zero-byte block is requested.
	ErrZeroSize = errors.New("extmem: zero-sized allocation")

	// ErrExhausted is returned when an allocator cannot satisfy a request.
	ErrExhausted = errors.New("extmem: memory exhausted")

	// ErrForeignBlock is returned when freeing a block the allocator did not hand out.
	ErrForeignBlock = errors.New("extmem: block not owned by allocator")
)

// Allocator hands out zeroed byte blocks and takes them back.
//
// The returned slice has len == size. Its capacity may be larger (rounded up
// to the page size); Free must be given a slice with the same base and capacity.
type Allocator interface {
	Alloc(size uintptr) ([]byte, error)
	Free(b []byte) error
}

// System is the platform allocator (anonymous mmap on unix).
var System Allocator = systemAllocator{}

// Heap allocates from the Go heap. Useful when mmap is unwanted, e.g. in tests
// that allocate many tiny blocks.
var Heap Allocator = heapAllocator{}

type heapAllocator struct{}

func (heapAllocator) Alloc(size uintptr) ([]byte, error) {
	if size == 0 {
		return nil, ErrZeroSize
	}
	return make([]byte, size), nil
}

func (heapAllocator) Free(b []byte) error {
	if cap(b) == 0 {
		return ErrForeignBlock
	}
	return nil
}

// Limited wraps an Allocator with a byte budget. Requests that would push the
// in-use total past the limit fail with ErrExhausted.
type Limited struct {
	mu    sync.Mutex
	next  Allocator
	limit uintptr
	inuse uintptr
}

// NewLimited returns an allocator that refuses to hold more than limit bytes.
func NewLimited(next Allocator, limit uintptr) *Limited {
	return &Limited{next: next, limit: limit}
}

// Alloc implements Allocator.
func (l *Limited) Alloc(size uintptr) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inuse+size > l.limit || l.inuse+size < l.inuse {
		return nil, errors.Wrapf(ErrExhausted, "request %d bytes, %d of %d in use", size, l.inuse, l.limit)
	}
	b, err := l.next.Alloc(size)
	if err != nil {
		return nil, err
	}
	l.inuse += uintptr(len(b))
	return b, nil
}

// Free implements Allocator.
func (l *Limited) Free(b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := uintptr(len(b))
	if err := l.next.Free(b); err != nil {
		return err
	}
	if n > l.inuse {
		n = l.inuse
	}
	l.inuse -= n
	return nil
}

// InUse reports the bytes currently held.
func (l *Limited) InUse() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inuse
}

func roundUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}
