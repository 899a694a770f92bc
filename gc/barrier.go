package gc

import "sync"

// remset is the remembered set: old objects that may reference young ones.
// Membership is flagged on the object so an object is listed at most once.
type remset struct {
	mu   sync.Mutex
	objs []*Object
}

func (r *remset) add(obj *Object) {
	if !obj.remembered.CompareAndSwap(false, true) {
		return
	}
	r.mu.Lock()
	r.objs = append(r.objs, obj)
	r.mu.Unlock()
}

// snapshot returns the current members.
func (r *remset) snapshot() []*Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Object, len(r.objs))
	copy(out, r.objs)
	return out
}

// replace swaps in a rebuilt member list. Callers set the remembered flags.
func (r *remset) replace(objs []*Object) {
	r.mu.Lock()
	r.objs = objs
	r.mu.Unlock()
}

func (r *remset) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objs)
}

// scanRemset traces the young referents of every remembered object. Used by
// incremental cycles, where old objects are not traced themselves.
func (c *Collector) scanRemset(ctx *Context) int {
	objs := c.remset.snapshot()
	for _, obj := range objs {
		if obj.freed.Load() {
			continue
		}
		obj.youngRefs.Store(0)
		ctx.scanFields(obj)
	}
	return len(objs)
}
