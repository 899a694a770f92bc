package main

import (
	"math/rand/v2"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/joshuapare/gcext/gc/tracker"
)

type treapOptions struct {
	Ops        int
	Slots      int
	Seed       uint64
	CheckEvery int
	Detailed   bool
}

var treapOpts = treapOptions{
	Ops:        200_000,
	Slots:      4096,
	CheckEvery: 1000,
}

func init() {
	cmd := newTreapCmd()
	f := cmd.Flags()
	f.IntVar(&treapOpts.Ops, "ops", treapOpts.Ops, "Number of insert/delete/find operations")
	f.IntVar(&treapOpts.Slots, "slots", treapOpts.Slots, "Number of 4 KiB address slots ranges are placed in")
	f.Uint64Var(&treapOpts.Seed, "seed", 1, "Workload and priority seed")
	f.IntVar(&treapOpts.CheckEvery, "check-every", treapOpts.CheckEvery, "Validate tree invariants every N operations (0 = only at the end)")
	f.BoolVar(&treapOpts.Detailed, "detailed", false, "Include every range in --json output")
	rootCmd.AddCommand(cmd)
}

func newTreapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "treap",
		Short: "Run a randomized interval tracker workload",
		Long: `The treap command inserts, deletes and looks up random address ranges in
an interval tracker and compares every answer with a reference map. The tree's
ordering, heap and size invariants are checked periodically.

Example:
  gcextctl treap
  gcextctl treap --ops 1000000 --check-every 0
  gcextctl treap --slots 64 --json --detailed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, res, err := runTreap(treapOpts)
			if err != nil {
				return err
			}
			return printTreap(t, res)
		},
	}
}

type treapResult struct {
	Inserts  int
	Overlaps int
	Deletes  int
	Finds    int
	Hits     int
	Checks   int
}

const slotSize = 4096

func runTreap(o treapOptions) (*tracker.Tracker, treapResult, error) {
	var res treapResult
	if o.Slots < 1 {
		return nil, res, errors.New("--slots must be positive")
	}

	t := tracker.New(tracker.WithSeed(o.Seed), tracker.WithCapacity(o.Slots))
	const base = uintptr(1) << 20
	model := newRangeModel(base)
	rng := rand.New(rand.NewPCG(o.Seed, o.Seed>>1|1))

	check := func(op int) error {
		res.Checks++
		if err := t.Check(); err != nil {
			return errors.Wrapf(err, "after operation %d", op)
		}
		if t.Len() != len(model.sizes) {
			return errors.AssertionFailedf("after operation %d: %d ranges tracked, want %d", op, t.Len(), len(model.sizes))
		}
		return nil
	}

	for op := range o.Ops {
		slot := uintptr(rng.IntN(o.Slots))
		// Ranges may spill into the next slot so overlaps occur.
		addr := base + slot*slotSize + uintptr(rng.IntN(slotSize/2))
		switch rng.IntN(3) {
		case 0:
			size := uintptr(1 + rng.IntN(slotSize))
			_, err := t.Insert(addr, size)
			_, overlaps := model.overlapping(addr, size)
			switch {
			case err == nil && overlaps:
				return nil, res, errors.AssertionFailedf("insert [%#x, %#x) accepted over a tracked range", addr, addr+size)
			case err != nil && !errors.Is(err, tracker.ErrOverlap):
				return nil, res, err
			case err != nil && !overlaps:
				return nil, res, errors.Wrapf(err, "insert [%#x, %#x) rejected", addr, addr+size)
			case err != nil:
				res.Overlaps++
			default:
				model.add(addr, size)
				res.Inserts++
			}
		case 1:
			target := addr
			if rng.IntN(2) == 0 {
				// Prefer a tracked base near addr so deletions actually hit.
				if a, ok := model.find(addr); ok {
					target = a
				}
			}
			deleted := t.Delete(target)
			if deleted != model.remove(target) {
				return nil, res, errors.AssertionFailedf("delete %#x: tracker and model disagree", target)
			}
			if deleted {
				res.Deletes++
			}
		default:
			res.Finds++
			rec, ok := t.Find(addr)
			wantBase, wantOK := model.find(addr)
			if ok != wantOK || (ok && rec.Address != wantBase) {
				return nil, res, errors.AssertionFailedf("find %#x: got (%#x, %v), want (%#x, %v)", addr, rec.Address, ok, wantBase, wantOK)
			}
			if ok {
				res.Hits++
			}
		}

		if o.CheckEvery > 0 && (op+1)%o.CheckEvery == 0 {
			if err := check(op); err != nil {
				return nil, res, err
			}
		}
	}
	if err := check(o.Ops); err != nil {
		return nil, res, err
	}
	printVerbose("%d ranges, height %d\n", t.Len(), t.Height())
	return t, res, nil
}

// rangeModel is the reference the tracker is compared against. Ranges are
// bucketed by the slot their base falls in; a range never reaches past the
// slot after its own.
type rangeModel struct {
	base   uintptr
	sizes  map[uintptr]uintptr
	bySlot map[uintptr]map[uintptr]struct{}
}

func newRangeModel(base uintptr) *rangeModel {
	return &rangeModel{
		base:   base,
		sizes:  make(map[uintptr]uintptr),
		bySlot: make(map[uintptr]map[uintptr]struct{}),
	}
}

func (m *rangeModel) slot(addr uintptr) uintptr { return (addr - m.base) / slotSize }

func (m *rangeModel) add(addr, size uintptr) {
	m.sizes[addr] = size
	sl := m.slot(addr)
	if m.bySlot[sl] == nil {
		m.bySlot[sl] = make(map[uintptr]struct{})
	}
	m.bySlot[sl][addr] = struct{}{}
}

func (m *rangeModel) remove(addr uintptr) bool {
	if _, ok := m.sizes[addr]; !ok {
		return false
	}
	delete(m.sizes, addr)
	delete(m.bySlot[m.slot(addr)], addr)
	return true
}

// overlapping returns the base of a tracked range intersecting [addr, addr+size).
func (m *rangeModel) overlapping(addr, size uintptr) (uintptr, bool) {
	first := m.slot(addr)
	if first > 0 {
		first--
	}
	for sl := first; sl <= m.slot(addr+size-1); sl++ {
		for a := range m.bySlot[sl] {
			if a < addr+size && addr < a+m.sizes[a] {
				return a, true
			}
		}
	}
	return 0, false
}

func (m *rangeModel) find(addr uintptr) (uintptr, bool) {
	return m.overlapping(addr, 1)
}

func printTreap(t *tracker.Tracker, res treapResult) error {
	if jsonOut {
		return printJSON(func(w *jwriter.Writer) {
			obj := w.Object()
			obj.Name("Inserts").Int(res.Inserts)
			obj.Name("Overlaps").Int(res.Overlaps)
			obj.Name("Deletes").Int(res.Deletes)
			obj.Name("Finds").Int(res.Finds)
			obj.Name("Hits").Int(res.Hits)
			obj.Name("Checks").Int(res.Checks)
			t.WriteJSON(obj.Name("Tracker"), treapOpts.Detailed)
			obj.End()
		})
	}

	printInfo("Inserts:   %d (%d rejected as overlapping)\n", res.Inserts, res.Overlaps)
	printInfo("Deletes:   %d\n", res.Deletes)
	printInfo("Finds:     %d (%d hits)\n", res.Finds, res.Hits)
	printInfo("Checks:    %d passed\n", res.Checks)
	printInfo("Ranges:    %d (%d bytes)\n", t.Len(), t.Bytes())
	printInfo("Height:    %d\n", t.Height())
	return nil
}
