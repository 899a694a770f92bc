package tracker

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// model is the reference implementation the treap is checked against: a
// plain map from start address to size.
type model map[uintptr]uintptr

func (m model) find(p uintptr) (uintptr, bool) {
	for a, s := range m {
		if p >= a && p < a+s {
			return a, true
		}
	}
	return 0, false
}

func (m model) overlaps(addr, size uintptr) bool {
	for a, s := range m {
		if addr < a+s && a < addr+size {
			return true
		}
	}
	return false
}

func TestRandomOperationsAgainstModel(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3, 42, 0xdeadbeef} {
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		tr := New(WithSeed(seed))
		ref := model{}

		for step := range 2000 {
			op := rng.IntN(10)
			switch {
			case op < 5:
				addr := uintptr(rng.IntN(1 << 16))
				size := uintptr(1 + rng.IntN(64))
				_, err := tr.Insert(addr, size)
				if ref.overlaps(addr, size) {
					require.ErrorIs(t, err, ErrOverlap, "seed %d step %d", seed, step)
				} else {
					require.NoError(t, err, "seed %d step %d", seed, step)
					ref[addr] = size
				}
			case op < 8:
				var addr uintptr
				if len(ref) > 0 && rng.IntN(4) > 0 {
					addr = randomKey(rng, ref)
				} else {
					addr = uintptr(rng.IntN(1 << 16))
				}
				_, want := ref[addr]
				require.Equal(t, want, tr.Delete(addr), "seed %d step %d delete %#x", seed, step, addr)
				delete(ref, addr)
			default:
				p := uintptr(rng.IntN(1<<16 + 64))
				rec, ok := tr.Find(p)
				wantAddr, wantOK := ref.find(p)
				require.Equal(t, wantOK, ok, "seed %d step %d find %#x", seed, step, p)
				if ok {
					require.Equal(t, wantAddr, rec.Address)
				}
			}
			if op < 8 {
				require.NoError(t, tr.Check(), "seed %d step %d", seed, step)
				require.Equal(t, len(ref), tr.Len(), "seed %d step %d", seed, step)
			}
		}

		require.NoError(t, tr.Check())
		require.Equal(t, len(ref), tr.Len())
		starts := make([]uintptr, 0, len(ref))
		for a := range ref {
			starts = append(starts, a)
		}
		sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
		recs := tr.Records()
		for i, r := range recs {
			assert.Equal(t, starts[i], r.Address)
			assert.Equal(t, ref[r.Address], r.Size)
		}
	}
}

func randomKey(rng *rand.Rand, m model) uintptr {
	n := rng.IntN(len(m))
	for a := range m {
		if n == 0 {
			return a
		}
		n--
	}
	panic("unreachable")
}

// TestSortedInsertHeight checks that ascending inserts, the worst case for an
// unbalanced tree, still produce logarithmic depth.
func TestSortedInsertHeight(t *testing.T) {
	const n = 1 << 14
	tr := New(WithSeed(99), WithCapacity(n))
	for i := range n {
		tr.MustInsert(uintptr(i)*16, 16)
	}
	require.NoError(t, tr.Check())
	assert.Less(t, tr.Height(), 60, "height %d for %d sorted inserts", tr.Height(), n)

	for i := 0; i < n; i += 2 {
		require.True(t, tr.Delete(uintptr(i)*16))
	}
	require.NoError(t, tr.Check())
	assert.Equal(t, n/2, tr.Len())
	assert.Less(t, tr.Height(), 60)
}

func TestSeedReproducesShape(t *testing.T) {
	build := func() []Record {
		tr := New(WithSeed(1234))
		for _, a := range []uintptr{500, 100, 900, 300, 700, 200, 800} {
			tr.MustInsert(a, 10)
		}
		return tr.Records()
	}
	assert.Equal(t, build(), build())
}

func TestXorshiftZeroSeed(t *testing.T) {
	a, b := newXorshift(0), newXorshift(1)
	assert.Equal(t, a.next(), b.next(), "seed 0 is remapped to 1")
	assert.NotZero(t, a.next())
}
