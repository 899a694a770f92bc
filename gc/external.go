package gc

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/joshuapare/gcext/gc/tracker"
	"github.com/joshuapare/gcext/internal/extmem"
)

// externalHeap holds objects allocated outside the pools. ranges classifies
// addresses; objs maps a range start to its object.
type externalHeap struct {
	mem    extmem.Allocator
	ranges *tracker.Tracker
	objs   *xsync.MapOf[uintptr, *Object]
}

func newExternalHeap(opts *Options) *externalHeap {
	topts := []tracker.Option{}
	if opts.Seed != 0 {
		topts = append(topts, tracker.WithSeed(opts.Seed))
	}
	return &externalHeap{
		mem:    opts.ExternalMemory,
		ranges: tracker.New(topts...),
		objs:   xsync.NewMapOf[uintptr, *Object](),
	}
}

// alloc backs obj with external memory and records its range. A tracker
// overlap means the backing allocator handed out live memory twice; the
// error is returned with its assertion failure intact.
func (h *externalHeap) alloc(obj *Object) error {
	size := max(obj.size, 1)
	mem, err := h.mem.Alloc(size)
	if err != nil {
		return errors.Wrapf(ErrOutOfMemory, "external object of %d bytes: %v", obj.size, err)
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	if _, err := h.ranges.Insert(addr, size); err != nil {
		return err
	}
	obj.mem = mem[:obj.size]
	obj.addr = addr
	h.objs.Store(addr, obj)
	return nil
}

// release forgets obj and returns its memory.
func (h *externalHeap) release(obj *Object) error {
	if !h.ranges.Delete(obj.addr) {
		return errors.Wrapf(ErrUnknownObject, "external object %#x not tracked", obj.addr)
	}
	h.objs.Delete(obj.addr)
	mem := obj.mem[:max(obj.size, 1)]
	obj.mem = nil
	return h.mem.Free(mem)
}

// lookup resolves addr to the external object containing it. With exact
// set, only the start address matches.
func (h *externalHeap) lookup(addr uintptr, exact bool) (*Object, bool) {
	rec, ok := h.ranges.Find(addr)
	if !ok || (exact && rec.Address != addr) {
		return nil, false
	}
	return h.objs.Load(rec.Address)
}

func (h *externalHeap) forEach(fn func(*Object)) {
	h.objs.Range(func(_ uintptr, obj *Object) bool {
		fn(obj)
		return true
	})
}

func (h *externalHeap) close() error {
	var errs error
	h.forEach(func(obj *Object) {
		if err := h.release(obj); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
		obj.freed.Store(true)
	})
	return errs
}
