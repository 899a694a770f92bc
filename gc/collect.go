package gc

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Collect runs one stop-the-world cycle and returns its statistics. With
// full unset only the young generation is traced; DisableGenerational makes
// every cycle full. Post-GC hooks run after the world restarts.
//
// Concurrent calls are serialised. Collect treats every thread as stopped at
// a safepoint, so allocations not yet stored anywhere reachable are not
// roots; mutators running concurrently collect through Thread.Collect
// instead. Callbacks running inside a cycle must not call Collect.
func (c *Collector) Collect(full bool) CycleStats {
	return c.runCycle(nil, full)
}

// runCycle collects on behalf of t, which may be nil. t is marked as driving
// the cycle until the world restarts, so its own mutator calls from inside
// the cycle are caught.
func (c *Collector) runCycle(t *Thread, full bool) CycleStats {
	if c.opts.DisableGenerational {
		full = true
	}

	cs := func() CycleStats {
		if t != nil {
			if !t.collecting.CompareAndSwap(false, true) {
				c.fatal(errors.Wrap(ErrCollecting, "nested collection"))
			}
			defer t.collecting.Store(false)
		}
		return c.collect(t, full)
	}()
	c.hooks.postGC(full)
	return cs
}

func (c *Collector) collect(driver *Thread, full bool) CycleStats {
	c.world.Lock()
	defer c.world.Unlock()
	if c.closed.Load() {
		c.fatal(errors.Wrap(ErrClosed, "collect"))
	}

	start := time.Now()
	cs := CycleStats{Full: full}
	c.log.Debug("cycle start", "full", full)

	c.hooks.preGC(full)

	ctxs := c.installContexts(full)
	c.resetMarks(full)

	// Phase 1: global roots on the first worker.
	root := ctxs[0]
	c.pinned.Range(func(obj *Object, _ int) bool {
		root.Enqueue(obj)
		return true
	})
	c.hooks.rootScan(root, full)
	if !full {
		cs.RememberedScanned = c.scanRemset(root)
	}

	// Phase 2: task roots, split across workers.
	q := newMarkQueue(len(ctxs))
	tasks := c.Tasks()
	q.run(ctxs, func(ctx *Context) {
		for i := ctx.tid; i < len(tasks); i += len(ctxs) {
			tasks[i].scanRoots(ctx, driver)
			c.hooks.taskScan(ctx, tasks[i], full)
		}
	})

	// Phase 3: parallel drain.
	q.drain(ctxs)
	for _, ctx := range ctxs {
		cs.Marked += ctx.cache.Marked
		cs.ForeignMarks += ctx.cache.ForeignMarks
	}

	// Phase 4: finalize, then sweep.
	c.sweep(full, &cs)

	c.allocated.Store(0)
	cs.Duration = time.Since(start)
	c.recordCycle(cs)
	c.log.Debug("cycle end",
		"full", full,
		"marked", cs.Marked,
		"finalized", cs.Finalized,
		"swept_pool", cs.SweptPool,
		"swept_external", cs.SweptExternal,
		"external_bytes_freed", cs.ExternalBytesFreed,
		"promoted", cs.Promoted,
		"remembered", cs.Remembered,
		"duration", cs.Duration)
	return cs
}

// installContexts creates this cycle's worker contexts and announces every
// slot to the context-install hooks.
func (c *Collector) installContexts(full bool) []*Context {
	ctxs := make([]*Context, c.opts.Workers)
	for tid := range ctxs {
		ctx := newContext(c, tid, full)
		ctxs[tid] = ctx
		for s := Slot(0); s < ContextSize; s++ {
			c.hooks.contextInstall(tid, s, ctx.slots[s])
		}
	}
	return ctxs
}

// resetMarks prepares mark states: a full cycle clears every object, an
// incremental one clears only young objects so old ones count as reached.
func (c *Collector) resetMarks(full bool) {
	c.forEachObject(func(obj *Object) {
		if full || !obj.Old() {
			obj.state.Store(uint32(Unmarked))
			obj.youngRefs.Store(0)
		}
	})
}

// sweep finalizes unreached foreign objects that enabled a finalizer, reclaims every unreached
// object, ages survivors and rebuilds the remembered set.
func (c *Collector) sweep(full bool, cs *CycleStats) {
	var dead, survivors []*Object
	c.forEachObject(func(obj *Object) {
		if obj.loadState() == Marked {
			survivors = append(survivors, obj)
		} else {
			dead = append(dead, obj)
		}
	})

	for _, obj := range dead {
		if ft := obj.typ.Foreign; ft != nil && obj.needsFinalizer.Load() && !obj.finalized {
			obj.finalized = true
			ft.Finalize(obj)
			cs.Finalized++
		}
	}

	for _, obj := range dead {
		obj.freed.Store(true)
		if obj.page != nil {
			c.pools.release(obj)
			cs.SweptPool++
			continue
		}
		addr, size := obj.addr, obj.size
		if err := c.ext.release(obj); err != nil {
			c.log.Warn("releasing external object", "address", addr, "error", err)
		}
		c.hooks.externalFree(addr)
		cs.SweptExternal++
		cs.ExternalBytesFreed += size
	}
	for _, obj := range dead {
		clear(obj.refs)
	}

	released, err := c.pools.releaseEmptyPages()
	if err != nil {
		c.log.Warn("releasing pool pages", "error", err)
	}
	cs.PagesReleased = released

	generational := !c.opts.DisableGenerational
	var members []*Object
	for _, obj := range survivors {
		if generational && !obj.Old() {
			obj.age++
			if int(obj.age) >= c.opts.PromoteAge {
				obj.old.Store(true)
				cs.Promoted++
			}
		}
		if generational && obj.Old() && obj.youngRefs.Load() > 0 {
			obj.remembered.Store(true)
			members = append(members, obj)
		} else {
			obj.remembered.Store(false)
		}
	}
	c.remset.replace(members)
	cs.Remembered = len(members)
}
