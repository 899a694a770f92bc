package testutil

import (
	"testing"

	"github.com/joshuapare/gcext/gc"
	"github.com/joshuapare/gcext/internal/extmem"
	"github.com/joshuapare/gcext/internal/logger"
)

// TestOptions returns deterministic collector options for tests: a fixed
// tracker seed, two workers, no automatic collection and discarded logs.
func TestOptions() *gc.Options {
	opts := gc.DefaultOptions()
	opts.Workers = 2
	opts.Seed = 0x5eed
	opts.Logger = logger.Discard()
	return opts
}

// SetupCollector creates a collector with TestOptions and closes it when the
// test ends.
//
// Example:
//
//	c := testutil.SetupCollector(t)
//	th := c.NewThread()
func SetupCollector(t testing.TB) *gc.Collector {
	t.Helper()
	return SetupCollectorWith(t, nil, TestOptions())
}

// SetupCollectorWith creates a collector from hooks and opts and closes it
// when the test ends. A nil opts means TestOptions.
func SetupCollectorWith(t testing.TB, hooks *gc.HookTable, opts *gc.Options) *gc.Collector {
	t.Helper()
	if opts == nil {
		opts = TestOptions()
	}
	c, err := gc.New(hooks, opts)
	if err != nil {
		t.Fatalf("Failed to create collector: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Failed to close collector: %v", err)
		}
	})
	return c
}

// LimitedOptions returns TestOptions whose external objects draw from a
// heap-backed allocator capped at limit bytes.
func LimitedOptions(limit uintptr) (*gc.Options, *extmem.Limited) {
	lim := extmem.NewLimited(extmem.Heap, limit)
	opts := TestOptions()
	opts.ExternalMemory = lim
	return opts, lim
}

// RecoverFatal runs fn and returns the value it panicked with, or nil.
func RecoverFatal(fn func()) (recovered any) {
	defer func() { recovered = recover() }()
	fn()
	return nil
}
