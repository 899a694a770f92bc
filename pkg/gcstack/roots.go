package gcstack

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/gcext/gc"
)

// NumRoots is the number of slots in a Roots table.
const NumRoots = 1024

// Roots is a fixed table of global roots. Every non-nil slot is enqueued by a
// root scanner on each collection, full or incremental.
type Roots struct {
	mu     sync.RWMutex
	slots  [NumRoots]*gc.Object
	hooks  *gc.HookTable
	handle gc.Handle
}

// NewRoots creates an empty table and registers its root scanner with hooks.
func NewRoots(hooks *gc.HookTable) (*Roots, error) {
	r := &Roots{hooks: hooks}
	h, err := hooks.OnRootScan(r.scan)
	if err != nil {
		return nil, err
	}
	r.handle = h
	return r, nil
}

func (r *Roots) scan(ctx *gc.Context, _ bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, obj := range r.slots {
		if obj != nil {
			ctx.Enqueue(obj)
		}
	}
}

func checkIndex(op string, i int) error {
	if i < 0 || i >= NumRoots {
		return errors.Wrapf(ErrRootIndex, "%s: index %d", op, i)
	}
	return nil
}

// Get returns slot i.
func (r *Roots) Get(i int) (*gc.Object, error) {
	if err := checkIndex("get", i); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slots[i], nil
}

// Set stores obj in slot i. A nil obj clears the slot.
func (r *Roots) Set(i int, obj *gc.Object) error {
	if err := checkIndex("set", i); err != nil {
		return err
	}
	r.mu.Lock()
	r.slots[i] = obj
	r.mu.Unlock()
	return nil
}

// Len returns the number of occupied slots.
func (r *Roots) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, obj := range r.slots {
		if obj != nil {
			n++
		}
	}
	return n
}

// Close deregisters the root scanner. The slots are no longer traced.
func (r *Roots) Close() {
	r.hooks.Deregister(r.handle)
}
