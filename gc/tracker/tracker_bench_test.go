package tracker

import (
	"math/rand/v2"
	"testing"
)

func BenchmarkInsertDelete(b *testing.B) {
	tr := New(WithSeed(1), WithCapacity(1024))
	for i := range 1024 {
		tr.MustInsert(uintptr(i)<<12, 1<<11)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := range b.N {
		a := uintptr(1024+i%1024) << 12
		tr.MustInsert(a, 1<<11)
		tr.Delete(a)
	}
}

func BenchmarkFind(b *testing.B) {
	for _, n := range []int{64, 4096, 1 << 16} {
		b.Run(sizeName(n), func(b *testing.B) {
			tr := New(WithSeed(2), WithCapacity(n))
			for i := range n {
				tr.MustInsert(uintptr(i)<<12, 1<<11)
			}
			rng := rand.New(rand.NewPCG(3, 4))
			probes := make([]uintptr, 1024)
			for i := range probes {
				probes[i] = uintptr(rng.IntN(n << 12))
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := range b.N {
				tr.Find(probes[i%len(probes)])
			}
		})
	}
}

// BenchmarkSortedInsert measures the monotonically increasing address
// pattern typical of mmap-backed allocations.
func BenchmarkSortedInsert(b *testing.B) {
	b.ReportAllocs()
	for range b.N {
		tr := New(WithSeed(5), WithCapacity(4096))
		for i := range 4096 {
			tr.MustInsert(uintptr(i)<<12, 1<<12)
		}
	}
}

func sizeName(n int) string {
	switch {
	case n >= 1<<16:
		return "64K"
	case n >= 4096:
		return "4K"
	default:
		return "64"
	}
}
