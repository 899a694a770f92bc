package tracker

import (
	"math/rand/v2"
	"sync"

	"github.com/cockroachdb/errors"
)

// Record is one tracked range [Address, Address+Size).
type Record struct {
	Address  uintptr
	Size     uintptr
	Priority uint64
}

// End returns the first address past the range.
func (r Record) End() uintptr {
	return r.Address + r.Size
}

// Contains reports whether p lies inside the range.
func (r Record) Contains(p uintptr) bool {
	return p >= r.Address && p < r.End()
}

// classify returns -1 when p is below the range, 0 inside, 1 above.
func (r Record) classify(p uintptr) int {
	if p < r.Address {
		return -1
	}
	if p >= r.End() {
		return 1
	}
	return 0
}

// Tracker is a treap of disjoint address ranges.
type Tracker struct {
	mu    sync.RWMutex
	root  nodeID
	arena arena
	rng   xorshift
	count int
	bytes uintptr
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSeed fixes the priority generator seed, making tree shapes reproducible.
func WithSeed(seed uint64) Option {
	return func(t *Tracker) { t.rng = newXorshift(seed) }
}

// WithCapacity preallocates room for n nodes.
func WithCapacity(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.arena.nodes = make([]node, 0, n)
		}
	}
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		root: none,
		rng:  newXorshift(rand.Uint64()),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Insert tracks [addr, addr+size) and returns the new record.
//
// The range must not intersect any tracked range. A violation returns an
// error wrapping ErrOverlap and carrying an assertion failure; the tree is
// left unchanged.
func (t *Tracker) Insert(addr, size uintptr) (Record, error) {
	if size == 0 {
		return Record{}, errors.Wrapf(ErrZeroSize, "insert at %#x", addr)
	}
	if addr+size < addr {
		return Record{}, errors.Wrapf(ErrRangeOverflow, "insert [%#x, +%d)", addr, size)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if hit, ok := t.overlapping(addr, size); ok {
		return Record{}, errors.WithAssertionFailure(errors.Wrapf(ErrOverlap,
			"[%#x, %#x) intersects [%#x, %#x)", addr, addr+size, hit.Address, hit.End()))
	}

	rec := Record{Address: addr, Size: size, Priority: t.rng.next()}
	id := t.arena.alloc(rec)
	t.root = t.insert(t.root, id)
	t.count++
	t.bytes += size
	return rec, nil
}

// MustInsert is Insert that panics on error.
func (t *Tracker) MustInsert(addr, size uintptr) Record {
	rec, err := t.Insert(addr, size)
	if err != nil {
		panic(err)
	}
	return rec
}

// overlapping searches the insertion path of addr for a range intersecting
// [addr, addr+size). The in-order neighbours of the insertion point always lie
// on that path, so no other node needs to be examined.
func (t *Tracker) overlapping(addr, size uintptr) (Record, bool) {
	end := addr + size
	id := t.root
	for id != none {
		n := t.arena.at(id)
		if addr < n.rec.End() && n.rec.Address < end {
			return n.rec, true
		}
		if addr < n.rec.Address {
			id = n.left
		} else {
			id = n.right
		}
	}
	return Record{}, false
}

// insert places id under root and returns the new subtree root, rotating the
// node upward while its priority exceeds its parent's.
func (t *Tracker) insert(root, id nodeID) nodeID {
	if root == none {
		return id
	}
	r := t.arena.at(root)
	if t.arena.at(id).rec.Address < r.rec.Address {
		r.left = t.insert(r.left, id)
		if t.arena.at(r.left).rec.Priority > r.rec.Priority {
			return t.rotateRight(root)
		}
	} else {
		r.right = t.insert(r.right, id)
		if t.arena.at(r.right).rec.Priority > r.rec.Priority {
			return t.rotateLeft(root)
		}
	}
	return root
}

// Delete removes the range starting exactly at addr. It reports false, and
// leaves the tree untouched, when no such range exists.
func (t *Tracker) Delete(addr uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	link := &t.root
	for *link != none {
		n := t.arena.at(*link)
		switch {
		case addr == n.rec.Address:
			t.deleteAt(link)
			return true
		case addr < n.rec.Address:
			link = &n.left
		default:
			link = &n.right
		}
	}
	return false
}

// deleteAt rotates the node referenced by link toward the leaves, always
// lifting the child with the higher priority, until it can be spliced out.
func (t *Tracker) deleteAt(link *nodeID) {
	for {
		id := *link
		n := t.arena.at(id)
		switch {
		case n.left == none:
			*link = n.right
		case n.right == none:
			*link = n.left
		case t.arena.at(n.left).rec.Priority > t.arena.at(n.right).rec.Priority:
			*link = t.rotateRight(id)
			link = &t.arena.at(*link).right
			continue
		default:
			*link = t.rotateLeft(id)
			link = &t.arena.at(*link).left
			continue
		}
		t.count--
		t.bytes -= n.rec.Size
		t.arena.release(id)
		return
	}
}

// Find returns the record whose range contains p.
func (t *Tracker) Find(p uintptr) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	id := t.root
	for id != none {
		n := t.arena.at(id)
		switch n.rec.classify(p) {
		case 0:
			return n.rec, true
		case -1:
			id = n.left
		default:
			id = n.right
		}
	}
	return Record{}, false
}

// Len returns the number of tracked ranges.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Bytes returns the total size of all tracked ranges.
func (t *Tracker) Bytes() uintptr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bytes
}

// Reset drops every range. Arena capacity is kept.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = none
	t.arena.reset()
	t.count = 0
	t.bytes = 0
}

//	    t                 l
//	  /   \             /   \
//	 l     r    -->    a     t
//	/ \                     / \
//	a   b                   b   r
func (t *Tracker) rotateRight(id nodeID) nodeID {
	n := t.arena.at(id)
	l := n.left
	ln := t.arena.at(l)
	n.left = ln.right
	ln.right = id
	return l
}

//	  t                   r
//	/   \               /   \
//	l     r    -->      t     b
//	     / \           / \
//	    a   b         l   a
func (t *Tracker) rotateLeft(id nodeID) nodeID {
	n := t.arena.at(id)
	r := n.right
	rn := t.arena.at(r)
	n.right = rn.left
	rn.left = id
	return r
}
