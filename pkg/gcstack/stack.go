package gcstack

import (
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/gcext/gc"
)

// Module is the module name the stack types are registered under.
const Module = "GCStack"

// InitialCapacity is the capacity of a new stack.
const InitialCapacity = 8

const (
	wordSize = unsafe.Sizeof(uintptr(0))

	// Data object payload layout: size, capacity, then one slot per element.
	wordLen     = 0
	wordCap     = 1
	headerWords = 2
)

// Types holds the stack types registered with one collector.
type Types struct {
	c         *gc.Collector
	Stack     *gc.Type
	Data      *gc.Type
	DataLarge *gc.Type
}

// Register registers Stack, StackData and StackDataLarge with c.
func Register(c *gc.Collector) (*Types, error) {
	reg := c.Types()
	ts := &Types{c: c}
	var err error
	if ts.Stack, err = reg.RegisterForeign(Module, "Stack", nil,
		gc.ForeignFuncs{MarkFunc: markHeader}, true, false); err != nil {
		return nil, err
	}
	data := gc.ForeignFuncs{MarkFunc: markData}
	if ts.Data, err = reg.RegisterForeign(Module, "StackData", nil, data, true, false); err != nil {
		return nil, err
	}
	if ts.DataLarge, err = reg.RegisterForeign(Module, "StackDataLarge", nil, data, true, true); err != nil {
		return nil, err
	}
	return ts, nil
}

// markHeader traces the data object of a stack header.
func markHeader(ctx *gc.Context, hdr *gc.Object) uintptr {
	data := hdr.Ref(0)
	if data == nil {
		return 0
	}
	ctx.Enqueue(data)
	if data.Old() {
		return 0
	}
	return 1
}

// markData traces the live elements of a data object.
func markData(ctx *gc.Context, data *gc.Object) uintptr {
	var young uintptr
	n := int(data.Word(wordLen))
	for i := range n {
		v := data.Ref(headerWords + i)
		if v == nil {
			continue
		}
		ctx.Enqueue(v)
		if !v.Old() {
			young++
		}
	}
	return young
}

// allocData allocates an empty data object with room for capacity elements.
func (ts *Types) allocData(th *gc.Thread, capacity int) (*gc.Object, error) {
	size := uintptr(headerWords+capacity) * wordSize
	typ := ts.Data
	if size > ts.c.MaxInternalObjSize() {
		typ = ts.DataLarge
	}
	data, err := th.Alloc(size, typ)
	if err != nil {
		return nil, err
	}
	data.SetWord(wordCap, uint64(capacity))
	return data, nil
}

// New allocates an empty stack with InitialCapacity slots.
func (ts *Types) New(th *gc.Thread) (*gc.Object, error) {
	hdr, err := th.Alloc(wordSize, ts.Stack)
	if err != nil {
		return nil, err
	}
	// Both objects stay rooted until the header references the data object.
	task := th.Task()
	task.Push(hdr)
	defer task.Pop()

	data, err := ts.allocData(th, InitialCapacity)
	if err != nil {
		return nil, err
	}
	task.Push(data)
	defer task.Pop()
	th.Store(hdr, 0, data)
	return hdr, nil
}

func (ts *Types) data(op string, s *gc.Object) (*gc.Object, error) {
	if s == nil || s.Type() != ts.Stack {
		return nil, errors.Wrapf(ErrNotStack, "%s: got %v", op, typeOf(s))
	}
	return s.Ref(0), nil
}

func typeOf(obj *gc.Object) any {
	if obj == nil {
		return "nil"
	}
	return obj.Type()
}

// Push appends v to s. When s is full its elements move to a new data object
// with capacity*3/2+1 slots. A stack must not be pushed or popped from two
// threads at once.
func (ts *Types) Push(th *gc.Thread, s, v *gc.Object) error {
	data, err := ts.data("push", s)
	if err != nil {
		return err
	}
	n, capacity := int(data.Word(wordLen)), int(data.Word(wordCap))
	if n < capacity {
		th.Mutate(func() {
			data.SetRef(headerWords+n, v)
			data.SetWord(wordLen, uint64(n+1))
			th.WriteBarrier(data, v)
		})
		return nil
	}

	// s and v stay rooted while the larger data object is allocated, and the
	// new object stays rooted until it is published.
	task := th.Task()
	task.Push(s)
	task.Push(v)
	defer func() {
		task.Pop()
		task.Pop()
	}()
	grown, err := ts.allocData(th, capacity*3/2+1)
	if err != nil {
		return err
	}
	task.Push(grown)
	defer task.Pop()

	th.Mutate(func() {
		for i := range n {
			grown.SetRef(headerWords+i, data.Ref(headerWords+i))
		}
		grown.SetRef(headerWords+n, v)
		grown.SetWord(wordLen, uint64(n+1))
		th.WriteBarrierBack(grown)
	})
	th.Store(s, 0, grown)
	return nil
}

// Top returns the most recently pushed element.
func (ts *Types) Top(s *gc.Object) (*gc.Object, error) {
	data, err := ts.data("top", s)
	if err != nil {
		return nil, err
	}
	n := int(data.Word(wordLen))
	if n == 0 {
		return nil, errors.Wrap(ErrEmpty, "top")
	}
	return data.Ref(headerWords + n - 1), nil
}

// Pop removes and returns the most recently pushed element.
func (ts *Types) Pop(th *gc.Thread, s *gc.Object) (*gc.Object, error) {
	data, err := ts.data("pop", s)
	if err != nil {
		return nil, err
	}
	var (
		v     *gc.Object
		empty bool
	)
	th.Mutate(func() {
		n := int(data.Word(wordLen))
		if n == 0 {
			empty = true
			return
		}
		v = data.Ref(headerWords + n - 1)
		data.SetRef(headerWords+n-1, nil)
		data.SetWord(wordLen, uint64(n-1))
	})
	if empty {
		return nil, errors.Wrap(ErrEmpty, "pop")
	}
	return v, nil
}

// Size returns the number of elements in s.
func (ts *Types) Size(s *gc.Object) (int, error) {
	data, err := ts.data("size", s)
	if err != nil {
		return 0, err
	}
	return int(data.Word(wordLen)), nil
}

// Capacity returns the number of elements s holds before it grows.
func (ts *Types) Capacity(s *gc.Object) (int, error) {
	data, err := ts.data("capacity", s)
	if err != nil {
		return 0, err
	}
	return int(data.Word(wordCap)), nil
}
