package gc

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Thread is a mutator. It allocates objects, mutates their reference slots
// through the write barrier, and owns a root Task.
//
// Threads run concurrently with each other; a Thread itself belongs to one
// goroutine at a time. Operations on other threads pause while a cycle runs.
// Using the thread that drives a cycle from inside that cycle (pre-GC hooks,
// scanners, mark functions, finalizers) is a contract violation.
type Thread struct {
	c    *Collector
	task *Task

	collecting atomic.Bool // this thread is driving a cycle
}

// NewThread creates a mutator with its own root task.
func (c *Collector) NewThread() *Thread {
	return &Thread{c: c, task: c.NewTask()}
}

// Task returns the thread's root task.
func (t *Thread) Task() *Task { return t.task }

// Collector returns the owning collector.
func (t *Thread) Collector() *Collector { return t.c }

// Release drops the thread's root task.
func (t *Thread) Release() { t.task.Release() }

// Alloc allocates a zeroed object of typ with a size-byte payload.
//
// Objects up to MaxInternalObjSize come from the pools unless typ is Large;
// everything else is allocated externally, tracked, and announced to the
// external-alloc hooks. If the backing memory is exhausted the allocation is
// retried once after a full collection; a second failure returns an error
// wrapping ErrOutOfMemory. Allocating from inside a cycle this thread drives
// is fatal.
//
// The result stays alive through cycles started by other threads until this
// thread allocates again or collects, so it can be stored or pushed as a
// root in between.
func (t *Thread) Alloc(size uintptr, typ *Type) (*Object, error) {
	c := t.c
	t.checkMutator("alloc")
	if typ == nil {
		return nil, errors.Wrapf(ErrInvalidType, "alloc of %d bytes without a type", size)
	}
	t.maybeCollect(size)

	var gcRan bool
	for {
		obj, err := c.alloc(size, typ, t.task)
		if err == nil {
			return obj, nil
		}
		if gcRan || !errors.Is(err, ErrOutOfMemory) {
			return nil, err
		}
		c.log.Debug("allocation failed, collecting", "size", size, "type", typ.QualifiedName())
		t.Collect(true)
		gcRan = true
	}
}

// Store writes child into parent's reference slot i and applies the write
// barrier.
func (t *Thread) Store(parent *Object, i int, child *Object) {
	c := t.c
	t.checkMutator("store")
	c.world.RLock()
	defer c.world.RUnlock()
	parent.refs[i] = child
	t.WriteBarrier(parent, child)
}

// Mutate runs fn while no collection can start, for updates that touch
// several slots or payload words at once. fn must apply its own write
// barriers with WriteBarrier or WriteBarrierBack and must not allocate,
// collect, or call Store.
func (t *Thread) Mutate(fn func()) {
	c := t.c
	t.checkMutator("mutate")
	c.world.RLock()
	defer c.world.RUnlock()
	fn()
}

// WriteBarrier records parent in the remembered set when an old parent now
// references a young child. Foreign code calls it after storing a reference
// inside a foreign object.
func (t *Thread) WriteBarrier(parent, child *Object) {
	if parent == nil || child == nil {
		return
	}
	if parent.Old() && !child.Old() {
		t.c.remset.add(parent)
	}
}

// WriteBarrierBack records an old parent unconditionally, for bulk updates
// where the individual children are not checked.
func (t *Thread) WriteBarrierBack(parent *Object) {
	if parent != nil && parent.Old() {
		t.c.remset.add(parent)
	}
}

// Remember records that obj holds n references to young objects. Only old
// objects enter the remembered set; young ones are traced anyway.
func (t *Thread) Remember(obj *Object, n uintptr) {
	if obj == nil || !obj.Old() {
		return
	}
	obj.youngRefs.Add(int64(n))
	t.c.remset.add(obj)
}

// EnableFinalizer requests that obj's Finalize run when a cycle finds it
// unreachable. Foreign objects are not finalized unless enabled; obj must be
// of a foreign type.
func (t *Thread) EnableFinalizer(obj *Object) error {
	t.checkMutator("enable finalizer")
	if obj == nil || !obj.typ.IsForeign() {
		return errors.Wrap(ErrInvalidType, "finalizers require a foreign object")
	}
	if obj.Freed() {
		return errors.Wrapf(ErrUnknownObject, "enable finalizer on freed object %#x", obj.addr)
	}
	obj.needsFinalizer.Store(true)
	return nil
}

// Collect runs a collection driven by this thread. Calling it again from
// inside the cycle is fatal.
func (t *Thread) Collect(full bool) CycleStats {
	return t.c.runCycle(t, full)
}

// checkMutator panics when a mutator operation runs on a closed collector
// or from inside a cycle this thread drives.
func (t *Thread) checkMutator(op string) {
	c := t.c
	if c.closed.Load() {
		c.fatal(errors.Wrap(ErrClosed, op))
	}
	if t.collecting.Load() {
		c.fatal(errors.Wrapf(ErrCollecting, "%s while a collection is in progress", op))
	}
}

// maybeCollect runs an automatic collection once CollectInterval bytes have
// been allocated since the last cycle. Only one thread starts it; the others
// keep allocating and pause when the world stops.
func (t *Thread) maybeCollect(size uintptr) {
	c := t.c
	interval := uint64(c.opts.CollectInterval)
	if interval == 0 || c.allocated.Load()+uint64(size) <= interval {
		return
	}
	if !c.autoPending.CompareAndSwap(false, true) {
		return
	}
	defer c.autoPending.Store(false)

	n := c.autoCycles.Add(1)
	full := n%uint64(c.opts.FullEvery) == 0
	c.log.Debug("automatic collection", "allocated", c.allocated.Load(), "full", full)
	t.Collect(full)
}
