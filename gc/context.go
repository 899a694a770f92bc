package gc

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Slot indexes a worker context slot.
type Slot int

const (
	SlotTLS   Slot = iota // the worker's *Context
	SlotCache             // the worker's *MarkCache
	SlotSP                // mark stack depth when the slot was installed
)

// ContextSize is the number of slots in a worker context.
const ContextSize = 3

func (s Slot) String() string {
	switch s {
	case SlotTLS:
		return "tls"
	case SlotCache:
		return "cache"
	case SlotSP:
		return "sp"
	}
	return fmt.Sprintf("Slot(%d)", int(s))
}

// MarkCache accumulates per-worker counters for one cycle.
type MarkCache struct {
	Marked       int // objects moved to Marked
	ForeignMarks int // Mark dispatches to foreign types
	Enqueued     int // successful Enqueue transitions
}

// Context is one mark worker's view of a collection. It is created at the
// start of a cycle, handed to scanners and Mark functions, and discarded
// when the cycle ends. A Context must only be used by the goroutine it was
// passed to.
type Context struct {
	c     *Collector
	tid   int
	full  bool
	slots [ContextSize]any
	stack []*Object
	cache MarkCache

	// Young referents observed while scanning the current object.
	scanning  *Object
	youngSeen int64
}

func newContext(c *Collector, tid int, full bool) *Context {
	ctx := &Context{c: c, tid: tid, full: full}
	ctx.slots[SlotTLS] = ctx
	ctx.slots[SlotCache] = &ctx.cache
	ctx.slots[SlotSP] = 0
	return ctx
}

// TID returns the worker index.
func (ctx *Context) TID() int { return ctx.tid }

// Full reports whether the current cycle is a full collection.
func (ctx *Context) Full() bool { return ctx.full }

// Slot returns the value installed in slot s.
func (ctx *Context) Slot(s Slot) any {
	if s < 0 || s >= ContextSize {
		return nil
	}
	return ctx.slots[s]
}

// Collector returns the collector running the cycle.
func (ctx *Context) Collector() *Collector { return ctx.c }

// Enqueue moves obj from Unmarked to Queued and reports whether this call
// made the transition. nil and already queued or marked objects report false.
func (ctx *Context) Enqueue(obj *Object) bool {
	if obj == nil {
		return false
	}
	if obj.freed.Load() {
		ctx.c.fatal(errors.Wrapf(ErrUnknownObject, "enqueue of freed object %#x", obj.addr))
	}
	if ctx.scanning != nil && !obj.Old() {
		ctx.youngSeen++
	}
	if !obj.state.CompareAndSwap(uint32(Unmarked), uint32(Queued)) {
		return false
	}
	ctx.cache.Enqueued++
	ctx.stack = append(ctx.stack, obj)
	return true
}

// EnqueueAddr classifies addr and enqueues the object it designates. Without
// Options.ConservativeScanning only object base addresses are recognised.
// Unknown addresses report false.
func (ctx *Context) EnqueueAddr(addr uintptr) bool {
	obj, ok := ctx.c.lookup(addr, !ctx.c.opts.ConservativeScanning)
	if !ok {
		return false
	}
	return ctx.Enqueue(obj)
}

// EnqueueAll enqueues every object in objs on behalf of parent and returns
// the number of transitions made. parent is only used for diagnostics and
// may be nil.
func (ctx *Context) EnqueueAll(parent *Object, objs ...*Object) int {
	if parent != nil && parent.freed.Load() {
		ctx.c.fatal(errors.Wrapf(ErrUnknownObject, "array parent %#x already freed", parent.addr))
	}
	n := 0
	for _, obj := range objs {
		if ctx.Enqueue(obj) {
			n++
		}
	}
	return n
}

// Remember records that obj holds n references into the young generation,
// so it is kept in the remembered set after this cycle if it is old.
func (ctx *Context) Remember(obj *Object, n uintptr) {
	if obj == nil {
		return
	}
	obj.youngRefs.Add(int64(n))
}
