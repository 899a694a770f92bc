package gc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// HookKind names a collector lifecycle point.
type HookKind uint8

const (
	HookPreGC HookKind = iota
	HookRootScanner
	HookTaskScanner
	HookPostGC
	HookExternalAlloc
	HookExternalFree
	HookContextInstall
	numHookKinds
)

var hookKindNames = [numHookKinds]string{
	HookPreGC:          "pre-gc",
	HookRootScanner:    "root-scanner",
	HookTaskScanner:    "task-scanner",
	HookPostGC:         "post-gc",
	HookExternalAlloc:  "external-alloc",
	HookExternalFree:   "external-free",
	HookContextInstall: "context-install",
}

func (k HookKind) String() string {
	if k < numHookKinds {
		return hookKindNames[k]
	}
	return fmt.Sprintf("HookKind(%d)", uint8(k))
}

// Listener signatures, one per HookKind.
type (
	// PreGCFunc runs before a collection. It must not allocate.
	PreGCFunc func(full bool)
	// RootScannerFunc must enqueue every root held outside the collector.
	RootScannerFunc func(ctx *Context, full bool)
	// TaskScannerFunc scans one task's private roots.
	TaskScannerFunc func(ctx *Context, task *Task, full bool)
	// PostGCFunc runs after sweeping. Allocation is allowed again.
	PostGCFunc func(full bool)
	// ExternalAllocFunc observes a new external object.
	ExternalAllocFunc func(addr, size uintptr)
	// ExternalFreeFunc observes a reclaimed external object.
	ExternalFreeFunc func(addr uintptr)
	// ContextInstallFunc receives one worker context slot at cycle start.
	ContextInstallFunc func(tid int, slot Slot, value any)
)

// Handle identifies one registered listener.
type Handle struct {
	kind HookKind
	id   uint64
}

// Kind returns the hook kind the handle was registered under.
func (h Handle) Kind() HookKind { return h.kind }

type listener struct {
	id uint64
	fn any
}

// HookTable holds the listener lists of one collector. Registration is
// copy-on-write; dispatch reads a snapshot without locking, so listeners may
// be registered or removed while a cycle runs and take effect at the next
// dispatch.
type HookTable struct {
	mu     sync.Mutex // serialises writers
	nextID uint64
	lists  [numHookKinds]atomic.Pointer[[]listener]
}

// NewHookTable returns an empty table.
func NewHookTable() *HookTable {
	return &HookTable{}
}

func (h *HookTable) add(kind HookKind, fn any, isNil bool) (Handle, error) {
	if isNil {
		return Handle{}, errors.Wrapf(ErrNilHook, "register %s", kind)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	l := listener{id: h.nextID, fn: fn}
	var next []listener
	if cur := h.lists[kind].Load(); cur != nil {
		next = make([]listener, len(*cur), len(*cur)+1)
		copy(next, *cur)
	}
	next = append(next, l)
	h.lists[kind].Store(&next)
	return Handle{kind: kind, id: l.id}, nil
}

// Deregister removes the listener behind handle. It reports false when the
// handle is unknown or already removed.
func (h *HookTable) Deregister(handle Handle) bool {
	if handle.kind >= numHookKinds {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	cur := h.lists[handle.kind].Load()
	if cur == nil {
		return false
	}
	for i, l := range *cur {
		if l.id != handle.id {
			continue
		}
		next := make([]listener, 0, len(*cur)-1)
		next = append(next, (*cur)[:i]...)
		next = append(next, (*cur)[i+1:]...)
		h.lists[handle.kind].Store(&next)
		return true
	}
	return false
}

// Len returns the number of listeners registered for kind.
func (h *HookTable) Len(kind HookKind) int {
	if kind >= numHookKinds {
		return 0
	}
	return len(h.snapshot(kind))
}

func (h *HookTable) snapshot(kind HookKind) []listener {
	if p := h.lists[kind].Load(); p != nil {
		return *p
	}
	return nil
}

// OnPreGC registers fn to run before every collection.
func (h *HookTable) OnPreGC(fn PreGCFunc) (Handle, error) {
	return h.add(HookPreGC, fn, fn == nil)
}

// OnRootScan registers a root scanner.
func (h *HookTable) OnRootScan(fn RootScannerFunc) (Handle, error) {
	return h.add(HookRootScanner, fn, fn == nil)
}

// OnTaskScan registers a task scanner, called once per live task per cycle.
func (h *HookTable) OnTaskScan(fn TaskScannerFunc) (Handle, error) {
	return h.add(HookTaskScanner, fn, fn == nil)
}

// OnPostGC registers fn to run after every collection.
func (h *HookTable) OnPostGC(fn PostGCFunc) (Handle, error) {
	return h.add(HookPostGC, fn, fn == nil)
}

// OnExternalAlloc registers an external allocation listener.
func (h *HookTable) OnExternalAlloc(fn ExternalAllocFunc) (Handle, error) {
	return h.add(HookExternalAlloc, fn, fn == nil)
}

// OnExternalFree registers an external free listener.
func (h *HookTable) OnExternalFree(fn ExternalFreeFunc) (Handle, error) {
	return h.add(HookExternalFree, fn, fn == nil)
}

// OnContextInstall registers a context slot listener.
func (h *HookTable) OnContextInstall(fn ContextInstallFunc) (Handle, error) {
	return h.add(HookContextInstall, fn, fn == nil)
}

func (h *HookTable) preGC(full bool) {
	for _, l := range h.snapshot(HookPreGC) {
		l.fn.(PreGCFunc)(full)
	}
}

func (h *HookTable) rootScan(ctx *Context, full bool) {
	for _, l := range h.snapshot(HookRootScanner) {
		l.fn.(RootScannerFunc)(ctx, full)
	}
}

func (h *HookTable) taskScan(ctx *Context, task *Task, full bool) {
	for _, l := range h.snapshot(HookTaskScanner) {
		l.fn.(TaskScannerFunc)(ctx, task, full)
	}
}

func (h *HookTable) postGC(full bool) {
	for _, l := range h.snapshot(HookPostGC) {
		l.fn.(PostGCFunc)(full)
	}
}

func (h *HookTable) externalAlloc(addr, size uintptr) {
	for _, l := range h.snapshot(HookExternalAlloc) {
		l.fn.(ExternalAllocFunc)(addr, size)
	}
}

func (h *HookTable) externalFree(addr uintptr) {
	for _, l := range h.snapshot(HookExternalFree) {
		l.fn.(ExternalFreeFunc)(addr)
	}
}

func (h *HookTable) contextInstall(tid int, slot Slot, value any) {
	for _, l := range h.snapshot(HookContextInstall) {
		l.fn.(ContextInstallFunc)(tid, slot, value)
	}
}
