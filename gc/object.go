package gc

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

const wordSize = unsafe.Sizeof(uintptr(0))

// MarkState is an object's position in the per-cycle mark state machine.
type MarkState uint32

const (
	Unmarked MarkState = iota
	Queued
	Marked
)

func (s MarkState) String() string {
	switch s {
	case Unmarked:
		return "unmarked"
	case Queued:
		return "queued"
	case Marked:
		return "marked"
	}
	return "invalid"
}

// Object is one collector-managed allocation. The payload lives in pool or
// external memory; reference slots are held alongside it so the Go runtime
// keeps seeing them.
type Object struct {
	typ  *Type
	addr uintptr
	size uintptr
	mem  []byte
	refs []*Object

	state      atomic.Uint32
	freed      atomic.Bool
	remembered atomic.Bool  // in the remembered set
	youngRefs  atomic.Int64 // young referents counted by the last scan

	needsFinalizer atomic.Bool // set by Thread.EnableFinalizer

	// Written only with the world stopped.
	age       uint8
	old       atomic.Bool
	finalized bool

	// Pool placement; page is nil for external objects.
	page *page
	cell int32
}

// Type returns the object's type.
func (o *Object) Type() *Type { return o.typ }

// Addr returns the address of the payload.
func (o *Object) Addr() uintptr { return o.addr }

// Size returns the requested payload size.
func (o *Object) Size() uintptr { return o.size }

// Bytes returns the payload. It must not be retained past the object's life.
func (o *Object) Bytes() []byte { return o.mem }

// External reports whether the object was allocated outside the pools.
func (o *Object) External() bool { return o.page == nil }

// Old reports whether the object has been promoted to the old generation.
func (o *Object) Old() bool { return o.old.Load() }

// NeedsFinalizer reports whether Finalize runs when obj is reclaimed.
func (o *Object) NeedsFinalizer() bool { return o.needsFinalizer.Load() }

// Freed reports whether the object has been reclaimed.
func (o *Object) Freed() bool { return o.freed.Load() }

// NumRefs returns the number of reference slots.
func (o *Object) NumRefs() int { return len(o.refs) }

// Ref returns reference slot i.
func (o *Object) Ref(i int) *Object { return o.refs[i] }

// SetRef stores child in slot i without a write barrier. It is only safe
// while initialising a freshly allocated object; use Thread.Store otherwise.
func (o *Object) SetRef(i int, child *Object) { o.refs[i] = child }

// Word reads payload word i.
func (o *Object) Word(i int) uint64 {
	return binary.NativeEndian.Uint64(o.mem[i*8:])
}

// SetWord writes payload word i.
func (o *Object) SetWord(i int, v uint64) {
	binary.NativeEndian.PutUint64(o.mem[i*8:], v)
}

func (o *Object) loadState() MarkState { return MarkState(o.state.Load()) }

// refSlots is the number of reference slots an instance of typ with the given
// payload size carries.
func refSlots(typ *Type, size uintptr) int {
	if !typ.HasPointers {
		return 0
	}
	if typ.Foreign == nil {
		return typ.pointerWords
	}
	return int(size / wordSize)
}
