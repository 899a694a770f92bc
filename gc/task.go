package gc

import "sync"

// Task is a unit of execution with a private root stack. Its roots are
// traced natively and the task is handed to every task scanner each cycle.
type Task struct {
	c     *Collector
	id    int
	mu    sync.Mutex
	roots []*Object
	data  any

	// recent is the owning thread's latest allocation, kept alive across
	// cycles other threads start until the owner reaches its next safepoint.
	recent *Object
}

// ID returns the task's identifier, unique within its collector.
func (t *Task) ID() int { return t.id }

// SetData attaches an arbitrary value for task scanners to use.
func (t *Task) SetData(v any) {
	t.mu.Lock()
	t.data = v
	t.mu.Unlock()
}

// Data returns the value set with SetData.
func (t *Task) Data() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data
}

// Push adds obj to the task's roots.
func (t *Task) Push(obj *Object) {
	t.mu.Lock()
	t.roots = append(t.roots, obj)
	t.mu.Unlock()
}

// Pop removes and returns the most recently pushed root, or nil.
func (t *Task) Pop() *Object {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.roots)
	if n == 0 {
		return nil
	}
	obj := t.roots[n-1]
	t.roots[n-1] = nil
	t.roots = t.roots[:n-1]
	return obj
}

// Len returns the number of roots.
func (t *Task) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.roots)
}

// Release detaches the task from its collector. Its roots stop being traced.
func (t *Task) Release() {
	t.c.tasksMu.Lock()
	delete(t.c.tasks, t.id)
	t.c.tasksMu.Unlock()
}

func (t *Task) setRecent(obj *Object) {
	t.mu.Lock()
	t.recent = obj
	t.mu.Unlock()
}

// scanRoots enqueues the task's roots. The recent allocation is traced only
// when another thread drives the cycle; otherwise the owner is at a
// safepoint and the slot is dropped.
func (t *Task) scanRoots(ctx *Context, driver *Thread) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, obj := range t.roots {
		ctx.Enqueue(obj)
	}
	if t.recent == nil {
		return
	}
	if driver != nil && driver.task != t {
		ctx.Enqueue(t.recent)
	} else {
		t.recent = nil
	}
}
