// Package tracker indexes externally allocated memory ranges so that an
// arbitrary address can be classified in expected O(log n).
//
// # Overview
//
// A Tracker holds a set of pairwise-disjoint half-open ranges [Address,
// Address+Size). It is a treap: a binary search tree ordered by Address whose
// nodes also carry a random Priority kept in max-heap order. Random priorities
// keep the expected height logarithmic regardless of insertion order, so an
// adversarial allocation pattern (for example monotonically increasing mmap
// addresses) cannot degrade lookups into a linear scan.
//
// # Operations
//
//   - Insert(addr, size): add a range; overlapping an existing range is a
//     contract violation reported as an assertion failure (ErrOverlap)
//   - Delete(addr): remove the range starting at addr; absent ranges report false
//   - Find(p): return the range containing p, if any
//
// # Usage Example
//
//	t := tracker.New()
//	if _, err := t.Insert(addr, size); err != nil {
//	    return err
//	}
//
//	if rec, ok := t.Find(p); ok {
//	    // p points into [rec.Address, rec.End())
//	}
//
//	t.Delete(addr)
//
// # Node Arena
//
// Nodes live in a slice and reference their children by index. Deleted nodes
// are pushed onto a free-index stack and reused by later inserts, so a steady
// insert/delete workload does not allocate.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Find, Len, Bytes and Walk take a
// read lock; Insert and Delete take the write lock.
package tracker
