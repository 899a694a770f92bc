package testutil

import (
	"sync"
	"testing"

	"github.com/joshuapare/gcext/gc"
)

// CountingType is a foreign type whose instances reference every object in
// their reference slots. It records how often each object was marked and
// finalized.
type CountingType struct {
	mu        sync.Mutex
	marks     map[*gc.Object]int
	finalized map[*gc.Object]int
	order     []*gc.Object
}

// NewCountingType returns an empty CountingType.
func NewCountingType() *CountingType {
	return &CountingType{
		marks:     make(map[*gc.Object]int),
		finalized: make(map[*gc.Object]int),
	}
}

// Mark implements gc.ForeignType.
func (ct *CountingType) Mark(ctx *gc.Context, obj *gc.Object) uintptr {
	ct.mu.Lock()
	ct.marks[obj]++
	ct.mu.Unlock()

	var young uintptr
	for i := range obj.NumRefs() {
		ref := obj.Ref(i)
		if ref == nil {
			continue
		}
		ctx.Enqueue(ref)
		if !ref.Old() {
			young++
		}
	}
	return young
}

// Finalize implements gc.ForeignType.
func (ct *CountingType) Finalize(obj *gc.Object) {
	ct.mu.Lock()
	ct.finalized[obj]++
	ct.order = append(ct.order, obj)
	ct.mu.Unlock()
}

// Marks returns how many times obj was marked since the last Reset.
func (ct *CountingType) Marks(obj *gc.Object) int {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.marks[obj]
}

// MaxMarks returns the highest per-object mark count since the last Reset.
func (ct *CountingType) MaxMarks() int {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	m := 0
	for _, n := range ct.marks {
		m = max(m, n)
	}
	return m
}

// Finalized returns how many times obj was finalized.
func (ct *CountingType) Finalized(obj *gc.Object) int {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.finalized[obj]
}

// FinalizedCount returns the number of finalize calls overall.
func (ct *CountingType) FinalizedCount() int {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return len(ct.order)
}

// Reset clears the mark counts, typically between cycles.
func (ct *CountingType) Reset() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	clear(ct.marks)
}

// RegisterCounting registers a CountingType under module "test".
func RegisterCounting(t testing.TB, c *gc.Collector, name string, large bool) (*gc.Type, *CountingType) {
	t.Helper()
	ct := NewCountingType()
	typ, err := c.Types().RegisterForeign("test", name, nil, ct, true, large)
	if err != nil {
		t.Fatalf("Failed to register %s: %v", name, err)
	}
	return typ, ct
}

// MustAlloc allocates or fails the test.
func MustAlloc(t testing.TB, th *gc.Thread, size uintptr, typ *gc.Type) *gc.Object {
	t.Helper()
	obj, err := th.Alloc(size, typ)
	if err != nil {
		t.Fatalf("Failed to allocate %d bytes of %s: %v", size, typ, err)
	}
	return obj
}
