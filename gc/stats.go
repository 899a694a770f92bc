package gc

import (
	"time"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// CycleStats describes one collection.
type CycleStats struct {
	Full               bool
	Marked             int // objects moved to Marked
	ForeignMarks       int // foreign Mark dispatches
	RememberedScanned  int // remembered objects traced (incremental only)
	Finalized          int
	SweptPool          int
	SweptExternal      int
	ExternalBytesFreed uintptr
	PagesReleased      int
	Promoted           int
	Remembered         int // remembered set size after the cycle
	Duration           time.Duration
}

// Stats accumulates collector activity.
type Stats struct {
	Collections            int
	FullCollections        int
	IncrementalCollections int
	Allocations            uint64
	AllocatedBytes         uint64
	Freed                  uint64
	Finalized              uint64
	TotalPause             time.Duration
	Last                   CycleStats
}

func (c *Collector) recordCycle(cs CycleStats) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	s := &c.stats
	s.Collections++
	if cs.Full {
		s.FullCollections++
	} else {
		s.IncrementalCollections++
	}
	s.Freed += uint64(cs.SweptPool + cs.SweptExternal)
	s.Finalized += uint64(cs.Finalized)
	s.TotalPause += cs.Duration
	s.Last = cs
}

// Stats returns a snapshot of the cumulative statistics.
func (c *Collector) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// HeapStats describes current heap occupancy.
type HeapStats struct {
	PoolPages       int
	PoolLiveBytes   uintptr
	ExternalObjects int
	ExternalBytes   uintptr
	RememberedSet   int
	Tasks           int
}

// HeapStats returns current heap occupancy.
func (c *Collector) HeapStats() HeapStats {
	pages, live := c.pools.usage()
	c.tasksMu.Lock()
	tasks := len(c.tasks)
	c.tasksMu.Unlock()
	return HeapStats{
		PoolPages:       pages,
		PoolLiveBytes:   live,
		ExternalObjects: c.ext.ranges.Len(),
		ExternalBytes:   c.ext.ranges.Bytes(),
		RememberedSet:   c.remset.len(),
		Tasks:           tasks,
	}
}

// WriteStatsJSON writes cumulative, last-cycle and heap statistics as one
// JSON object.
func (c *Collector) WriteStatsJSON(w *jwriter.Writer) {
	s := c.Stats()
	h := c.HeapStats()

	obj := w.Object()
	obj.Name("Collections").Int(s.Collections)
	obj.Name("FullCollections").Int(s.FullCollections)
	obj.Name("IncrementalCollections").Int(s.IncrementalCollections)
	obj.Name("Allocations").Int(int(s.Allocations))
	obj.Name("AllocatedBytes").Int(int(s.AllocatedBytes))
	obj.Name("Freed").Int(int(s.Freed))
	obj.Name("Finalized").Int(int(s.Finalized))
	obj.Name("TotalPauseMicros").Int(int(s.TotalPause.Microseconds()))

	last := obj.Name("LastCycle").Object()
	writeCycleJSON(last, s.Last)
	last.End()

	heap := obj.Name("Heap").Object()
	heap.Name("PoolPages").Int(h.PoolPages)
	heap.Name("PoolLiveBytes").Int(int(h.PoolLiveBytes))
	heap.Name("ExternalObjects").Int(h.ExternalObjects)
	heap.Name("ExternalBytes").Int(int(h.ExternalBytes))
	heap.Name("RememberedSet").Int(h.RememberedSet)
	heap.Name("Tasks").Int(h.Tasks)
	heap.End()

	obj.End()
}

func writeCycleJSON(obj jwriter.ObjectState, cs CycleStats) {
	obj.Name("Full").Bool(cs.Full)
	obj.Name("Marked").Int(cs.Marked)
	obj.Name("ForeignMarks").Int(cs.ForeignMarks)
	obj.Name("RememberedScanned").Int(cs.RememberedScanned)
	obj.Name("Finalized").Int(cs.Finalized)
	obj.Name("SweptPool").Int(cs.SweptPool)
	obj.Name("SweptExternal").Int(cs.SweptExternal)
	obj.Name("ExternalBytesFreed").Int(int(cs.ExternalBytesFreed))
	obj.Name("PagesReleased").Int(cs.PagesReleased)
	obj.Name("Promoted").Int(cs.Promoted)
	obj.Name("Remembered").Int(cs.Remembered)
	obj.Name("DurationMicros").Int(int(cs.Duration.Microseconds()))
}

// StatsJSON returns WriteStatsJSON's output as bytes.
func (c *Collector) StatsJSON() ([]byte, error) {
	w := jwriter.NewWriter()
	c.WriteStatsJSON(&w)
	return w.Bytes(), w.Error()
}
