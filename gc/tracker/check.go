package tracker

import (
	"github.com/cockroachdb/errors"
)

// Walk calls fn for every record in increasing address order until fn
// returns false. fn must not call back into the tracker's mutating methods.
func (t *Tracker) Walk(fn func(Record) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var stack []nodeID
	id := t.root
	for id != none || len(stack) > 0 {
		for id != none {
			stack = append(stack, id)
			id = t.arena.at(id).left
		}
		id = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.arena.at(id)
		if !fn(n.rec) {
			return
		}
		id = n.right
	}
}

// Records returns a snapshot of all records in address order.
func (t *Tracker) Records() []Record {
	out := make([]Record, 0, t.Len())
	t.Walk(func(r Record) bool {
		out = append(out, r)
		return true
	})
	return out
}

// Height returns the number of nodes on the longest root-to-leaf path.
func (t *Tracker) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.height(t.root)
}

func (t *Tracker) height(id nodeID) int {
	if id == none {
		return 0
	}
	n := t.arena.at(id)
	return 1 + max(t.height(n.left), t.height(n.right))
}

// Check validates the structural invariants: strictly increasing, disjoint
// ranges in order; parent priority >= child priority; counters consistent
// with the arena. Any failure wraps ErrCorrupt.
func (t *Tracker) Check() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		count int
		bytes uintptr
		prev  *Record
		err   error
	)
	var visit func(id nodeID)
	visit = func(id nodeID) {
		if id == none || err != nil {
			return
		}
		n := t.arena.at(id)
		for _, c := range [2]nodeID{n.left, n.right} {
			if c != none && t.arena.at(c).rec.Priority > n.rec.Priority {
				err = errors.Wrapf(ErrCorrupt, "heap order: child %#x priority %d above parent %#x priority %d",
					t.arena.at(c).rec.Address, t.arena.at(c).rec.Priority, n.rec.Address, n.rec.Priority)
				return
			}
		}
		visit(n.left)
		if err != nil {
			return
		}
		if n.rec.Size == 0 {
			err = errors.Wrapf(ErrCorrupt, "empty range at %#x", n.rec.Address)
			return
		}
		if prev != nil {
			if n.rec.Address <= prev.Address {
				err = errors.Wrapf(ErrCorrupt, "order: %#x follows %#x", n.rec.Address, prev.Address)
				return
			}
			if prev.End() > n.rec.Address {
				err = errors.Wrapf(ErrCorrupt, "overlap: [%#x, %#x) and [%#x, %#x)",
					prev.Address, prev.End(), n.rec.Address, n.rec.End())
				return
			}
		}
		rec := n.rec
		prev = &rec
		count++
		bytes += n.rec.Size
		visit(n.right)
	}
	visit(t.root)
	if err != nil {
		return err
	}

	if count != t.count {
		return errors.Wrapf(ErrCorrupt, "count: walked %d nodes, recorded %d", count, t.count)
	}
	if bytes != t.bytes {
		return errors.Wrapf(ErrCorrupt, "bytes: walked %d, recorded %d", bytes, t.bytes)
	}
	total, free := t.arena.slots()
	if total-free != count {
		return errors.Wrapf(ErrCorrupt, "arena: %d slots, %d free, %d reachable", total, free, count)
	}
	return nil
}
