package gcstack

import (
	"sync/atomic"

	"github.com/joshuapare/gcext/gc"
)

// Counters counts collections by kind.
type Counters struct {
	full   atomic.Uint64
	inc    atomic.Uint64
	hooks  *gc.HookTable
	handle gc.Handle
}

// NewCounters registers a pre-GC hook with hooks that counts every cycle.
func NewCounters(hooks *gc.HookTable) (*Counters, error) {
	c := &Counters{hooks: hooks}
	h, err := hooks.OnPreGC(func(full bool) {
		if full {
			c.full.Add(1)
		} else {
			c.inc.Add(1)
		}
	})
	if err != nil {
		return nil, err
	}
	c.handle = h
	return c, nil
}

// Get returns the number of full or incremental collections seen.
func (c *Counters) Get(full bool) uint64 {
	if full {
		return c.full.Load()
	}
	return c.inc.Load()
}

// Close stops counting.
func (c *Counters) Close() {
	c.hooks.Deregister(c.handle)
}
