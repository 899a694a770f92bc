package tracker

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestThreeRangesEveryOrder inserts three ranges in every order and checks half-open
// containment and lookup after deletion.
func TestThreeRangesEveryOrder(t *testing.T) {
	ranges := [][2]uintptr{{100, 50}, {200, 60}, {300, 5}}
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	for _, order := range orders {
		tr := New(WithSeed(7))
		for _, i := range order {
			_, err := tr.Insert(ranges[i][0], ranges[i][1])
			require.NoError(t, err)
		}
		require.NoError(t, tr.Check())

		rec, ok := tr.Find(225)
		require.True(t, ok, "order %v: 225 should be inside [200,260)", order)
		assert.Equal(t, uintptr(200), rec.Address)
		assert.Equal(t, uintptr(60), rec.Size)

		_, ok = tr.Find(150)
		assert.False(t, ok, "order %v: 150 is the exclusive end of [100,150)", order)

		require.True(t, tr.Delete(200))
		_, ok = tr.Find(225)
		assert.False(t, ok, "order %v: 225 should miss after delete", order)
		require.NoError(t, tr.Check())
	}
}

func TestFindRoundTrip(t *testing.T) {
	tr := New()
	const a, s = uintptr(0x1000), uintptr(0x40)
	_, err := tr.Insert(a, s)
	require.NoError(t, err)

	for _, p := range []uintptr{a, a + 1, a + s - 1} {
		rec, ok := tr.Find(p)
		require.True(t, ok, "find(%#x)", p)
		assert.Equal(t, a, rec.Address)
	}
	for _, p := range []uintptr{a - 1, a + s} {
		_, ok := tr.Find(p)
		assert.False(t, ok, "find(%#x) should miss", p)
	}
}

func TestFindEmpty(t *testing.T) {
	tr := New()
	_, ok := tr.Find(0)
	assert.False(t, ok)
	_, ok = tr.Find(^uintptr(0))
	assert.False(t, ok)
	assert.False(t, tr.Delete(42))
	assert.Equal(t, 0, tr.Len())
}

func TestDeleteIdempotent(t *testing.T) {
	tr := New(WithSeed(3))
	for _, a := range []uintptr{10, 20, 30, 40} {
		tr.MustInsert(a, 5)
	}
	before := tr.Records()

	assert.False(t, tr.Delete(25), "25 is inside no range start")
	assert.False(t, tr.Delete(12), "interior address is not a range start")
	assert.Equal(t, before, tr.Records())

	assert.True(t, tr.Delete(30))
	assert.False(t, tr.Delete(30), "second delete must report not found")
	assert.Equal(t, 3, tr.Len())
	require.NoError(t, tr.Check())
}

func TestInsertOverlapIsAssertionFailure(t *testing.T) {
	tr := New()
	tr.MustInsert(100, 50)
	tr.MustInsert(200, 10)

	tests := []struct {
		name       string
		addr, size uintptr
	}{
		{"same start", 100, 1},
		{"tail overlap", 90, 11},
		{"head overlap", 149, 10},
		{"covering", 50, 500},
		{"inside", 120, 5},
		{"bridging", 140, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Insert(tt.addr, tt.size)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrOverlap))
			assert.True(t, errors.HasAssertionFailure(err))
			assert.Equal(t, 2, tr.Len(), "failed insert must not change the tree")
			require.NoError(t, tr.Check())
		})
	}

	// Adjacent ranges touch but do not overlap.
	_, err := tr.Insert(150, 50)
	require.NoError(t, err)
	_, err = tr.Insert(90, 10)
	require.NoError(t, err)
}

func TestInsertRejectsEmptyAndWrapping(t *testing.T) {
	tr := New()
	_, err := tr.Insert(10, 0)
	assert.True(t, errors.Is(err, ErrZeroSize))

	_, err = tr.Insert(^uintptr(0)-1, 4)
	assert.True(t, errors.Is(err, ErrRangeOverflow))
	assert.Equal(t, 0, tr.Len())
}

func TestMustInsertPanicsOnOverlap(t *testing.T) {
	tr := New()
	tr.MustInsert(0x10, 0x10)
	assert.Panics(t, func() { tr.MustInsert(0x18, 4) })
}

func TestArenaReusesFreedSlots(t *testing.T) {
	tr := New(WithSeed(11))
	for i := range 16 {
		tr.MustInsert(uintptr(i*100), 10)
	}
	total, _ := tr.arena.slots()
	require.Equal(t, 16, total)

	for i := range 8 {
		require.True(t, tr.Delete(uintptr(i*100)))
	}
	_, free := tr.arena.slots()
	assert.Equal(t, 8, free)

	for i := range 8 {
		tr.MustInsert(uintptr(5000+i*100), 10)
	}
	total, free = tr.arena.slots()
	assert.Equal(t, 16, total, "inserts after deletes must reuse arena slots")
	assert.Equal(t, 0, free)
	require.NoError(t, tr.Check())
}

func TestBytesAndReset(t *testing.T) {
	tr := New()
	tr.MustInsert(0, 10)
	tr.MustInsert(100, 20)
	assert.Equal(t, uintptr(30), tr.Bytes())

	tr.Delete(0)
	assert.Equal(t, uintptr(20), tr.Bytes())

	tr.Reset()
	assert.Equal(t, 0, tr.Len())
	assert.Equal(t, uintptr(0), tr.Bytes())
	_, ok := tr.Find(105)
	assert.False(t, ok)
	require.NoError(t, tr.Check())
}

func TestWalkStopsEarly(t *testing.T) {
	tr := New()
	for _, a := range []uintptr{50, 10, 40, 20, 30} {
		tr.MustInsert(a, 1)
	}
	var seen []uintptr
	tr.Walk(func(r Record) bool {
		seen = append(seen, r.Address)
		return len(seen) < 3
	})
	assert.Equal(t, []uintptr{10, 20, 30}, seen)
}

func TestMarshalJSON(t *testing.T) {
	tr := New()
	tr.MustInsert(0x2000, 16)
	tr.MustInsert(0x1000, 8)

	data, err := tr.MarshalJSON()
	require.NoError(t, err)

	var out struct {
		Ranges      int
		Bytes       int
		Allocations []struct {
			Address string
			Size    int
		}
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 2, out.Ranges)
	assert.Equal(t, 24, out.Bytes)
	require.Len(t, out.Allocations, 2)
	assert.Equal(t, "0x1000", out.Allocations[0].Address)
	assert.Equal(t, 16, out.Allocations[1].Size)
}

// TestConcurrentDisjointMutation runs inserts and deletes on disjoint ranges
// from several goroutines while readers call Find.
func TestConcurrentDisjointMutation(t *testing.T) {
	tr := New()
	const workers, perWorker = 8, 200

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(base uintptr) {
			defer wg.Done()
			for i := range perWorker {
				a := base + uintptr(i)*0x100
				if _, err := tr.Insert(a, 0x80); err != nil {
					t.Errorf("insert %#x: %v", a, err)
					return
				}
				if i%2 == 1 {
					tr.Delete(a)
				}
			}
		}(uintptr(w+1) << 32)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				tr.Find(uintptr(i) * 0x40)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker/2, tr.Len())
	require.NoError(t, tr.Check())
}
