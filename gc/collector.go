package gc

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/joshuapare/gcext/gc/tracker"
	"github.com/joshuapare/gcext/internal/logger"
)

// Collector is a reference host collector driving the extension hooks.
type Collector struct {
	opts  Options
	log   *slog.Logger
	hooks *HookTable
	types *Registry

	pools *poolHeap
	ext   *externalHeap

	// world is held shared by mutator operations and exclusively by a cycle.
	// Mutators arriving during a cycle block on it until the world restarts.
	world       sync.RWMutex
	closed      atomic.Bool
	autoPending atomic.Bool // an automatic collection is being started

	tasksMu sync.Mutex
	tasks   map[int]*Task
	nextID  int

	pinned *xsync.MapOf[*Object, int]
	remset remset

	allocated  atomic.Uint64 // bytes since the last cycle
	autoCycles atomic.Uint64

	statsMu sync.Mutex
	stats   Stats
}

// New creates a collector. A nil hooks gets a fresh HookTable; nil opts
// means DefaultOptions.
func New(hooks *HookTable, opts *Options) (*Collector, error) {
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if hooks == nil {
		hooks = NewHookTable()
	}
	log := o.Logger
	if log == nil {
		log = logger.FromEnv()
	}
	c := &Collector{
		opts:   o,
		log:    log.With("component", "gc"),
		hooks:  hooks,
		types:  NewRegistry(),
		pools:  newPoolHeap(&o),
		ext:    newExternalHeap(&o),
		tasks:  make(map[int]*Task),
		pinned: xsync.NewMapOf[*Object, int](),
	}
	c.log.Debug("collector created",
		"workers", o.Workers,
		"size_classes", c.pools.classes.String(),
		"classes", c.pools.classes.NumClasses(),
		"max_pool_object", c.MaxInternalObjSize(),
		"generational", !o.DisableGenerational)
	return c, nil
}

// Close releases every pool page and external object without running
// finalizers or hooks. The collector must not be used afterwards.
func (c *Collector) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.world.Lock()
	defer c.world.Unlock()
	c.pools.forEach(func(obj *Object) { obj.freed.Store(true) })
	err := errors.CombineErrors(c.ext.close(), c.pools.close())
	c.remset.replace(nil)
	c.pinned.Clear()
	return err
}

// Hooks returns the collector's hook table.
func (c *Collector) Hooks() *HookTable { return c.hooks }

// Types returns the collector's type registry.
func (c *Collector) Types() *Registry { return c.types }

// Options returns the effective options.
func (c *Collector) Options() Options { return c.opts }

// Logger returns the collector's logger.
func (c *Collector) Logger() *slog.Logger { return c.log }

// MaxInternalObjSize is the largest payload served from the pools.
func (c *Collector) MaxInternalObjSize() uintptr { return c.pools.classes.maxSize() }

// NewTask registers a task whose roots are traced every cycle.
func (c *Collector) NewTask() *Task {
	c.tasksMu.Lock()
	defer c.tasksMu.Unlock()
	c.nextID++
	t := &Task{c: c, id: c.nextID}
	c.tasks[t.id] = t
	return t
}

// Tasks returns the live tasks ordered by ID.
func (c *Collector) Tasks() []*Task {
	c.tasksMu.Lock()
	defer c.tasksMu.Unlock()
	out := make([]*Task, 0, len(c.tasks))
	for id := 1; id <= c.nextID && len(out) < len(c.tasks); id++ {
		if t, ok := c.tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Pin makes obj a root until a matching Unpin. Pins nest.
func (c *Collector) Pin(obj *Object) {
	if obj == nil {
		return
	}
	c.pinned.Compute(obj, func(n int, _ bool) (int, bool) { return n + 1, false })
}

// Unpin undoes one Pin. It reports false if obj was not pinned.
func (c *Collector) Unpin(obj *Object) bool {
	found := false
	c.pinned.Compute(obj, func(n int, loaded bool) (int, bool) {
		found = loaded
		return n - 1, !loaded || n <= 1
	})
	return found
}

// State returns obj's mark state.
func (c *Collector) State(obj *Object) MarkState { return obj.loadState() }

// ObjectAt resolves an address inside any live object, pooled or external.
func (c *Collector) ObjectAt(addr uintptr) (*Object, bool) {
	return c.lookup(addr, false)
}

// ExternalObjectAt resolves an address inside a live external object.
func (c *Collector) ExternalObjectAt(addr uintptr) (*Object, bool) {
	return c.ext.lookup(addr, false)
}

// FindExternal returns the tracker record of the external allocation
// containing addr.
func (c *Collector) FindExternal(addr uintptr) (tracker.Record, bool) {
	return c.ext.ranges.Find(addr)
}

// ExternalTracker exposes the tracker indexing external objects. It must
// only be read.
func (c *Collector) ExternalTracker() *tracker.Tracker { return c.ext.ranges }

// InternalObjectBase returns the pool object whose cell contains addr.
func (c *Collector) InternalObjectBase(addr uintptr) (*Object, bool) {
	return c.pools.lookup(addr, false)
}

// IsInternalAlloc reports whether addr lies in pool memory, whether or not
// the cell is currently allocated.
func (c *Collector) IsInternalAlloc(addr uintptr) bool {
	return c.pools.contains(addr)
}

// AllocSize returns the bytes reserved for obj: the cell size for pool
// objects, the tracked range size for external ones.
func (c *Collector) AllocSize(obj *Object) uintptr {
	if obj.page != nil {
		return obj.page.cellSize
	}
	if rec, ok := c.ext.ranges.Find(obj.addr); ok && rec.Address == obj.addr {
		return rec.Size
	}
	return 0
}

func (c *Collector) lookup(addr uintptr, exact bool) (*Object, bool) {
	if obj, ok := c.pools.lookup(addr, exact); ok {
		return obj, true
	}
	return c.ext.lookup(addr, exact)
}

// alloc allocates obj and, with a non-nil task, records it as the task's
// recent allocation before the world can stop again.
func (c *Collector) alloc(size uintptr, typ *Type, task *Task) (*Object, error) {
	c.world.RLock()
	defer c.world.RUnlock()

	obj := &Object{typ: typ, size: size}
	obj.refs = make([]*Object, refSlots(typ, size))

	class := -1
	if !typ.Large {
		class = c.pools.classes.classFor(size)
	}
	if class >= 0 {
		if err := c.pools.alloc(class, obj); err != nil {
			return nil, err
		}
	} else {
		if err := c.ext.alloc(obj); err != nil {
			if errors.HasAssertionFailure(err) {
				c.fatal(err)
			}
			return nil, err
		}
		c.hooks.externalAlloc(obj.addr, size)
	}

	if task != nil {
		task.setRecent(obj)
	}
	c.allocated.Add(uint64(size))
	c.statsMu.Lock()
	c.stats.Allocations++
	c.stats.AllocatedBytes += uint64(size)
	c.statsMu.Unlock()
	return obj, nil
}

// forEachObject visits every allocated object. World must be stopped.
func (c *Collector) forEachObject(fn func(*Object)) {
	c.pools.forEach(fn)
	c.ext.forEach(fn)
}
