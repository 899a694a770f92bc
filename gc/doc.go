// Package gc is a small generational, parallel mark-sweep collector with an
// extension layer for foreign object types and externally allocated memory.
//
// # Overview
//
// The collector manages Objects. Small objects are carved from size-class
// pools whose pages come from Options.PageMemory; objects above
// MaxInternalObjSize, and every object of a Large type, are allocated
// externally through Options.ExternalMemory and indexed by a
// tracker.Tracker so any address can be classified in expected O(log n).
//
// Foreign code extends the collector in three ways:
//
//   - Types: Registry.RegisterForeign binds a ForeignType (Mark + Finalize)
//     to a named type. Mark is dispatched once per reachable instance per cycle.
//   - Hooks: HookTable holds listener lists for every lifecycle point (pre-GC,
//     root scanning, task scanning, post-GC, external alloc/free notification,
//     context installation).
//   - Barriers: Thread.WriteBarrier and Thread.WriteBarrierBack record
//     old-to-young edges in the remembered set.
//
// # Cycle
//
// Collector.Collect stops the world and runs:
//
//	pre-GC hooks
//	context install (once per worker per slot)
//	root scan: pinned objects, task roots, root scanners, task scanners, remembered set
//	parallel mark drain
//	finalize unreached foreign objects with an enabled finalizer
//	sweep: pool cells, external objects (tracker delete, free hooks), empty pages
//	post-GC hooks
//
// An incremental cycle only traces young objects; old objects are considered
// live and the remembered set supplies their young referents. A full cycle
// traces everything.
//
// # Usage Example
//
//	c, err := gc.New(nil, nil)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	node, _ := c.Types().RegisterNative("demo", "Node", nil, 2)
//	th := c.NewThread()
//	parent, _ := th.Alloc(32, node)
//	child, _ := th.Alloc(32, node)
//	th.Store(parent, 0, child)
//	th.Task().Push(parent)
//
//	th.Collect(true)
//
// # Threads
//
// Threads allocate and store concurrently. A cycle stops the world: mutator
// calls on other threads wait until it ends. The thread driving a cycle must
// not allocate, store or collect from inside it.
//
// # Contract Violations
//
// Breaking a contract the collector relies on for memory safety (overlapping
// external ranges, duplicate type registration, re-entry into a cycle,
// enqueueing a freed object) panics with an error carrying
// errors.WithAssertionFailure. Use errors.HasAssertionFailure on the
// recovered value to recognise them.
package gc
