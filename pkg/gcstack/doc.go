// Package gcstack is a small foreign-type library built on the gc extension
// layer. It exercises every part of the extension API the way an embedding
// runtime would.
//
// # Types
//
// A Stack is a one-word header object whose only reference slot points at a
// separately allocated data object. The data object carries the element
// count and capacity in its first two payload words followed by one slot per
// element. Data objects that fit in a pool cell use the StackData type; larger
// ones use StackDataLarge, which the collector always allocates externally.
//
//	hdr := ts.New(th)          // header + 8-slot StackData
//	ts.Push(th, hdr, v)        // write barrier on the data object
//	...                        // on growth: new data, WriteBarrierBack + WriteBarrier
//
// # Roots and Counters
//
// Roots is a fixed table of NumRoots slots traced by a root scanner hook.
// Counters counts collections by kind from a pre-GC hook. Both deregister
// their hooks on Close.
package gcstack
