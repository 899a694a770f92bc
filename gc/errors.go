package gc

import "github.com/cockroachdb/errors"

var (
	// ErrNilHook indicates a nil listener passed to a HookTable.
	ErrNilHook = errors.New("gc: nil hook function")

	// ErrDuplicateType indicates a second registration of a qualified type name.
	ErrDuplicateType = errors.New("gc: duplicate type registration")

	// ErrInvalidType indicates a registration with an empty name or a missing ForeignType.
	ErrInvalidType = errors.New("gc: invalid type descriptor")

	// ErrOutOfMemory indicates the backing allocator could not satisfy a request,
	// even after a collection.
	ErrOutOfMemory = errors.New("gc: out of memory")

	// ErrCollecting indicates a mutator call from inside a cycle driven by the
	// same thread.
	ErrCollecting = errors.New("gc: mutator call during own collection")

	// ErrUnknownObject indicates a freed or foreign object handed to the collector.
	ErrUnknownObject = errors.New("gc: unknown object")

	// ErrClosed indicates use of a collector after Close.
	ErrClosed = errors.New("gc: collector closed")

	// ErrInvalidOptions indicates an Options value that cannot be used.
	ErrInvalidOptions = errors.New("gc: invalid options")
)

// fatal panics with err marked as an assertion failure.
func (c *Collector) fatal(err error) {
	err = errors.WithAssertionFailure(err)
	c.log.Error("contract violation", "error", err)
	panic(err)
}
